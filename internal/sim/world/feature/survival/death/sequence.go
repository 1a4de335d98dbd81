// Package death runs the multi-tick death sequence of an entity.
package death

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"pkworld.ai/internal/protocol"
	"pkworld.ai/internal/sim/catalogs"
	itemspkg "pkworld.ai/internal/sim/world/feature/entities/items"
	"pkworld.ai/internal/sim/world/feature/survival/disposition"
	"pkworld.ai/internal/sim/world/feature/survival/restore"
	"pkworld.ai/internal/sim/world/feature/survival/retention"
	"pkworld.ai/internal/sim/world/feature/zones"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

const DeathNotice = "Oh dear, you are dead!"

var tracer = otel.Tracer("pkworld.ai/death")

// RespawnEvent tells the client its entity now stands at pos.
func RespawnEvent(pos modelpkg.Vec3i) protocol.Event {
	return protocol.Event{"type": "RESPAWN", "pos": pos.ToArray()}
}

// Hooks are the collaborators a sequence drives. Nil hooks are skipped.
// Any returned error (or panic) ends the sequence through recovery.
type Hooks struct {
	ResetCombat       func(e *modelpkg.Entity) error
	CloseInterfaces   func(e *modelpkg.Entity) error
	Animate           func(e *modelpkg.Entity, animationID int) error
	Retaliate         func(victim, killer *modelpkg.Entity) error
	Notify            func(e *modelpkg.Entity, text string) error
	PlaceLoot         func(d itemspkg.Drop) error
	RewardKill        func(killer, victim *modelpkg.Entity) error
	RefreshContainers func(e *modelpkg.Entity) error
	AddItem           func(e *modelpkg.Entity, it modelpkg.Item) error
	Relocate          func(e *modelpkg.Entity, pos modelpkg.Vec3i) error

	Audit func(action string, e *modelpkg.Entity, details map[string]any)
}

type Config struct {
	AnimationID  int
	RepairNPC    string
	DefaultSpawn modelpkg.Vec3i
	Loot         disposition.Params
	Baseline     retention.Baseline
}

// Sequence is one entity's death. It implements scheduler.Task and must only be
// driven from the world loop goroutine.
type Sequence struct {
	entity *modelpkg.Entity
	// killer is captured once and never re-resolved; it may be nil.
	killer   *modelpkg.Entity
	zone     zones.Zone
	forfeit  bool
	startPos modelpkg.Vec3i

	stage   Stage
	idle    int
	running bool

	retainedState retainedState
	retained      []modelpkg.Item
	plan          disposition.Plan
	failure       error

	cats  *catalogs.Catalogs
	cfg   Config
	hooks Hooks
	log   *log.Logger
}

func New(entity, killer *modelpkg.Entity, zone zones.Zone, cats *catalogs.Catalogs, cfg Config, hooks Hooks, logger *log.Logger) *Sequence {
	if zone == nil {
		zone = zones.Ordinary()
	}
	s := &Sequence{
		entity:  entity,
		killer:  killer,
		zone:    zone,
		forfeit: zone.Forfeits(),
		stage:   Locking,
		running: true,
		cats:    cats,
		cfg:     cfg,
		hooks:   hooks,
		log:     logger,
	}
	if entity != nil {
		s.startPos = entity.Pos
	}
	return s
}

func (s *Sequence) Key() string {
	if s.entity == nil {
		return ""
	}
	return s.entity.ID
}

func (s *Sequence) Running() bool            { return s.running }
func (s *Sequence) Stop()                    { s.running = false }
func (s *Sequence) Stage() Stage             { return s.stage }
func (s *Sequence) Zone() zones.Zone         { return s.zone }
func (s *Sequence) StartPos() modelpkg.Vec3i { return s.startPos }
func (s *Sequence) Plan() disposition.Plan   { return s.plan }
func (s *Sequence) Failure() error           { return s.failure }
func (s *Sequence) Killer() *modelpkg.Entity { return s.killer }
func (s *Sequence) RetainedItems() []modelpkg.Item {
	return append([]modelpkg.Item(nil), s.retained...)
}

// Execute advances the sequence by one tick.
func (s *Sequence) Execute(ctx context.Context) {
	if !s.running {
		return
	}
	if s.entity == nil {
		s.Stop()
		return
	}
	if s.idle > 0 {
		s.idle--
		return
	}

	stage := s.stage
	attrs := []attribute.KeyValue{
		attribute.String("entity.id", s.entity.ID),
		attribute.String("zone", s.zone.Name()),
		attribute.Bool("killer.present", s.killer != nil),
	}
	ctx, span := tracer.Start(ctx, "death."+stage.String(), trace.WithAttributes(attrs...))
	defer span.End()

	if err := s.runStage(ctx, stage); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.fail(stage, err)
		return
	}
	s.audit("DEATH_STAGE", map[string]any{"stage": stage.String()})
	if stage == Restoring {
		s.stage = Done
		s.audit("DEATH_COMPLETE", map[string]any{"forfeit": s.forfeit})
		return
	}
	s.idle = idleAfter[stage]
	s.stage = next(stage)
}

// runStage is the failure boundary: errors and panics of any stage come out as one error.
func (s *Sequence) runStage(ctx context.Context, stage Stage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", stage, r)
		}
	}()
	switch stage {
	case Locking:
		err = s.lock()
	case Announcing:
		err = s.announce()
	case Disposing:
		err = s.dispose(ctx)
	case Restoring:
		err = s.restore()
	}
	if err != nil {
		err = fmt.Errorf("%s: %w", stage, err)
	}
	return err
}

// fail ends a failed sequence: the entity respawns at the default spawn with full hit points.
func (s *Sequence) fail(stage Stage, err error) {
	s.Stop()
	s.failure = err
	if s.log != nil {
		s.log.Printf("death: entity=%s stage=%s failed: %v", s.Key(), stage, err)
	}
	e := s.entity
	if e == nil {
		return
	}
	e.Pos = s.cfg.DefaultSpawn
	e.HP = e.MaxHP
	e.Untargetable = false
	e.Movement = modelpkg.MovementFree
	e.Path = nil
	e.AddEvent(RespawnEvent(e.Pos))
	s.audit("DEATH_FAILED", map[string]any{"stage": stage.String(), "error": err.Error()})
}

func (s *Sequence) lock() error {
	e := s.entity
	e.ResetCombat()
	if s.hooks.ResetCombat != nil {
		if err := s.hooks.ResetCombat(e); err != nil {
			return fmt.Errorf("reset combat: %w", err)
		}
	}
	e.Untargetable = true
	e.OpenInterface = ""
	if s.hooks.CloseInterfaces != nil {
		if err := s.hooks.CloseInterfaces(e); err != nil {
			return fmt.Errorf("close interfaces: %w", err)
		}
	}
	e.FreezeMovement()
	return nil
}

func (s *Sequence) announce() error {
	e := s.entity
	e.Animation = s.cfg.AnimationID
	if s.hooks.Animate != nil {
		if err := s.hooks.Animate(e, s.cfg.AnimationID); err != nil {
			return fmt.Errorf("animate: %w", err)
		}
	}
	if e.PrayerActive(modelpkg.PrayerRetribution) && s.killer != nil && s.hooks.Retaliate != nil {
		if err := s.hooks.Retaliate(e, s.killer); err != nil {
			return fmt.Errorf("retaliate: %w", err)
		}
	}
	return s.notify(e, DeathNotice)
}

func (s *Sequence) dispose(ctx context.Context) error {
	if !s.forfeit {
		return nil
	}
	e := s.entity
	carried := retention.CarriedItems(e)
	kept := retention.Retain(e, carried, s.cats.Items, s.cfg.Baseline)
	s.retained = make([]modelpkg.Item, 0, kept.Len())
	for _, c := range kept.Items() {
		s.retained = append(s.retained, c.Item)
	}
	s.retainedState = retainedPopulated

	s.plan = disposition.Decide(disposition.Input{
		Victim:   e,
		Killer:   s.killer,
		Pos:      e.Pos,
		Carried:  carried,
		Retained: kept,
		Catalogs: s.cats,
		Params:   s.cfg.Loot,
	})
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.Int("items.carried", len(carried)),
		attribute.Int("items.retained", kept.Len()),
		attribute.Int("items.dropped", len(s.plan.Drops)),
	)

	if s.hooks.PlaceLoot != nil {
		for _, d := range s.plan.Drops {
			if err := s.hooks.PlaceLoot(d); err != nil {
				return fmt.Errorf("place %d: %w", d.Item.ID, err)
			}
		}
	}
	if s.killer != nil {
		for _, n := range s.plan.KillerNotices {
			if err := s.notify(s.killer, n); err != nil {
				return err
			}
		}
		if s.plan.NothingOfValue {
			if err := s.notify(s.killer, disposition.NothingOfValueNotice(e)); err != nil {
				return err
			}
		}
		if s.plan.Reward && s.hooks.RewardKill != nil {
			if err := s.hooks.RewardKill(s.killer, e); err != nil {
				return fmt.Errorf("reward: %w", err)
			}
		}
	}

	e.Inventory.Reset()
	e.Equipment.Reset()
	if s.hooks.RefreshContainers != nil {
		if err := s.hooks.RefreshContainers(e); err != nil {
			return fmt.Errorf("refresh containers: %w", err)
		}
	}
	return nil
}

func (s *Sequence) restore() error {
	e := s.entity
	// Overflow drops land where the entity respawns.
	e.Pos = s.cfg.DefaultSpawn
	if s.retainedState == retainedPopulated {
		_, err := restore.Restore(e, s.retained, s.cats, s.cfg.RepairNPC, restore.Hooks{
			Add:    s.addItem,
			Notify: s.notify,
		})
		if err != nil {
			return err
		}
		s.retained = nil
		s.retainedState = retainedConsumed
	} else if !s.forfeit && e.Duel.MarkLost() {
		s.audit("DUEL_LOST", map[string]any{"opponent": e.Duel.OpponentID})
	}

	e.Restart()
	if err := s.zone.OnDeath(e); err != nil {
		return fmt.Errorf("zone %s on death: %w", s.zone.Name(), err)
	}
	if s.hooks.Relocate != nil {
		if err := s.hooks.Relocate(e, s.cfg.DefaultSpawn); err != nil {
			return fmt.Errorf("relocate: %w", err)
		}
	}
	e.Pos = s.cfg.DefaultSpawn
	e.Untargetable = false
	s.Stop()
	return nil
}

func (s *Sequence) addItem(e *modelpkg.Entity, it modelpkg.Item) error {
	if s.hooks.AddItem != nil {
		return s.hooks.AddItem(e, it)
	}
	d, _ := s.cats.Items.Def(it.ID)
	return e.Inventory.Add(it, d.Stackable)
}

func (s *Sequence) notify(e *modelpkg.Entity, text string) error {
	if e == nil || s.hooks.Notify == nil {
		return nil
	}
	if err := s.hooks.Notify(e, text); err != nil {
		return fmt.Errorf("notify %s: %w", e.ID, err)
	}
	return nil
}

func (s *Sequence) audit(action string, details map[string]any) {
	if s.hooks.Audit == nil || s.entity == nil {
		return
	}
	if details == nil {
		details = map[string]any{}
	}
	details["zone"] = s.zone.Name()
	if s.killer != nil {
		details["killer"] = s.killer.ID
	}
	s.hooks.Audit(action, s.entity, details)
}
