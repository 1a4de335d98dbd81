package scheduler

import (
	"context"
	"errors"
	"testing"
)

type countTask struct {
	key     string
	limit   int
	calls   int
	stopped bool
	panicAt int
}

func (t *countTask) Key() string   { return t.key }
func (t *countTask) Running() bool { return !t.stopped }
func (t *countTask) Stop()         { t.stopped = true }
func (t *countTask) Execute(context.Context) {
	t.calls++
	if t.panicAt > 0 && t.calls == t.panicAt {
		panic("boom")
	}
	if t.calls >= t.limit {
		t.Stop()
	}
}

func TestScheduler_RunsUntilStopped(t *testing.T) {
	s := New(nil)
	task := &countTask{key: "P1", limit: 3}
	if err := s.Submit(task, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for i := 0; i < 10; i++ {
		s.Tick(context.Background())
	}
	if task.calls != 3 {
		t.Fatalf("expected 3 invocations, got %d", task.calls)
	}
	if s.Len() != 0 || s.Active("P1") {
		t.Fatalf("stopped task must be dropped")
	}
}

func TestScheduler_RejectsDuplicateKey(t *testing.T) {
	s := New(nil)
	if err := s.Submit(&countTask{key: "P1", limit: 5}, 1); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	err := s.Submit(&countTask{key: "P1", limit: 5}, 1)
	if !errors.Is(err, ErrDuplicateTask) {
		t.Fatalf("expected ErrDuplicateTask, got %v", err)
	}
	if err := s.Submit(&countTask{key: "P2", limit: 5}, 1); err != nil {
		t.Fatalf("other key must be accepted: %v", err)
	}
}

func TestScheduler_ResubmitAfterStop(t *testing.T) {
	s := New(nil)
	first := &countTask{key: "P1", limit: 1}
	_ = s.Submit(first, 1)
	s.Tick(context.Background())
	if err := s.Submit(&countTask{key: "P1", limit: 1}, 1); err != nil {
		t.Fatalf("resubmit after stop: %v", err)
	}
}

func TestScheduler_Delay(t *testing.T) {
	s := New(nil)
	task := &countTask{key: "P1", limit: 100}
	_ = s.Submit(task, 3)
	for i := 0; i < 9; i++ {
		s.Tick(context.Background())
	}
	if task.calls != 3 {
		t.Fatalf("expected 3 calls over 9 ticks with delay 3, got %d", task.calls)
	}
}

func TestScheduler_PanicStopsTask(t *testing.T) {
	s := New(nil)
	task := &countTask{key: "P1", limit: 100, panicAt: 2}
	_ = s.Submit(task, 1)
	for i := 0; i < 5; i++ {
		s.Tick(context.Background())
	}
	if task.calls != 2 || !task.stopped {
		t.Fatalf("panicking task must be stopped, calls=%d", task.calls)
	}
}
