// Package scheduler runs recurring tick tasks on the world loop goroutine.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
)

var ErrDuplicateTask = errors.New("task already running for key")

// Task is invoked once every delay ticks until it reports it is no longer running.
type Task interface {
	Key() string
	Execute(ctx context.Context)
	Stop()
	Running() bool
}

type entry struct {
	task      Task
	delay     int
	countdown int
}

// Scheduler is not safe for concurrent use.
type Scheduler struct {
	entries []*entry
	byKey   map[string]*entry
	log     *log.Logger
}

func New(logger *log.Logger) *Scheduler {
	return &Scheduler{byKey: map[string]*entry{}, log: logger}
}

// Submit registers t. At most one running task may exist per key.
func (s *Scheduler) Submit(t Task, delay int) error {
	if t == nil {
		return fmt.Errorf("submit: nil task")
	}
	if delay <= 0 {
		delay = 1
	}
	if e, ok := s.byKey[t.Key()]; ok && e.task.Running() {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, t.Key())
	}
	e := &entry{task: t, delay: delay, countdown: delay}
	s.entries = append(s.entries, e)
	s.byKey[t.Key()] = e
	return nil
}

func (s *Scheduler) Active(key string) bool {
	e, ok := s.byKey[key]
	return ok && e.task.Running()
}

func (s *Scheduler) Len() int { return len(s.entries) }

// Tick invokes every due task once, in submit order, and returns the number of invocations.
// Tasks submitted during Tick first run on the next tick.
func (s *Scheduler) Tick(ctx context.Context) int {
	due := s.entries
	n := 0
	for _, e := range due {
		if !e.task.Running() {
			continue
		}
		e.countdown--
		if e.countdown > 0 {
			continue
		}
		e.countdown = e.delay
		s.execute(ctx, e.task)
		n++
	}
	s.compact()
	return n
}

func (s *Scheduler) execute(ctx context.Context, t Task) {
	defer func() {
		if r := recover(); r != nil {
			t.Stop()
			if s.log != nil {
				s.log.Printf("scheduler: task %s panicked: %v", t.Key(), r)
			}
		}
	}()
	t.Execute(ctx)
}

func (s *Scheduler) compact() {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.task.Running() {
			kept = append(kept, e)
			continue
		}
		if s.byKey[e.task.Key()] == e {
			delete(s.byKey, e.task.Key())
		}
	}
	for i := len(kept); i < len(s.entries); i++ {
		s.entries[i] = nil
	}
	s.entries = kept
}
