package world

import (
	"errors"
	"fmt"

	"pkworld.ai/internal/protocol"
	itemspkg "pkworld.ai/internal/sim/world/feature/entities/items"
	"pkworld.ai/internal/sim/world/feature/survival/death"
	"pkworld.ai/internal/sim/world/feature/survival/disposition"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

const maxPendingEvents = 64

// KillEntity starts the death sequence of victimID.
// The killer is resolved once here and never revalidated: killerID when given,
// else the victim's last attacker. Unknown or disconnected killers resolve to nil.
func (w *World) KillEntity(victimID, killerID string) error {
	victim := w.entities[victimID]
	if victim == nil {
		return fmt.Errorf("%w: %s", ErrUnknownEntity, victimID)
	}
	killer := w.resolveKiller(victim, killerID)
	zone := w.zones.Classify(victim.Pos)

	seq := death.New(victim, killer, zone, w.cats, w.deathConfig(), w.deathHooks(), w.log)
	if err := w.sched.Submit(seq, 1); err != nil {
		return err
	}
	victim.HP = 0
	details := map[string]any{"zone": zone.Name()}
	if killer != nil {
		details["killer"] = killer.ID
	}
	w.auditEvent(w.tick.Load(), victim.ID, "DEATH_START", victim.Pos, "", details)
	return nil
}

// RecordAttack remembers attackerID as target's last attacker.
func (w *World) RecordAttack(attackerID, targetID string) error {
	a := w.entities[attackerID]
	t := w.entities[targetID]
	if a == nil || t == nil {
		return fmt.Errorf("%w: %s -> %s", ErrUnknownEntity, attackerID, targetID)
	}
	if a.ID == t.ID || t.Untargetable {
		return fmt.Errorf("invalid target %s", targetID)
	}
	t.LastAttacker = a.ID
	t.LastAttackerTick = w.tick.Load()
	a.Target = t.ID
	return nil
}

func (w *World) resolveKiller(victim *modelpkg.Entity, killerID string) *modelpkg.Entity {
	id := killerID
	if id == "" {
		id = victim.LastAttacker
	}
	if id == "" || id == victim.ID {
		return nil
	}
	k := w.entities[id]
	if k == nil || !k.Connected {
		return nil
	}
	return k
}

func (w *World) deathConfig() death.Config {
	t := w.cfg.Tuning
	return death.Config{
		AnimationID:  t.Death.AnimationID,
		RepairNPC:    t.Death.RepairNPC,
		DefaultSpawn: w.spawn,
		Loot: disposition.Params{
			ProtectionTicks: t.Loot.ProtectionTicks,
			GlobalTicks:     t.Loot.GlobalTicks,
		},
		Baseline: w.baseline,
	}
}

func (w *World) deathHooks() death.Hooks {
	return death.Hooks{
		ResetCombat: func(e *modelpkg.Entity) error {
			// Whoever was fighting the dying entity loses it as a target.
			for _, o := range w.entities {
				if o.Target == e.ID {
					o.Target = ""
				}
			}
			return nil
		},
		Animate: func(e *modelpkg.Entity, animationID int) error {
			w.addEvent(e, protocol.Event{"type": "ANIMATION", "id": animationID})
			return nil
		},
		Retaliate: w.retaliate,
		Notify:    w.notify,
		PlaceLoot: func(d itemspkg.Drop) error {
			_, err := w.ground.Place(w.tick.Load(), d)
			return err
		},
		RewardKill: func(killer, victim *modelpkg.Entity) error {
			_, err := w.ledger.OnDeath(w.tick.Load(), killer, victim)
			return err
		},
		RefreshContainers: func(e *modelpkg.Entity) error {
			inv := e.Inventory.TakeDirty()
			eq := e.Equipment.TakeDirty()
			if inv || eq {
				w.addEvent(e, protocol.Event{"type": "CONTAINERS", "inventory": len(e.Inventory.ValidItems()), "equipment": len(e.Equipment.ValidItems())})
			}
			return nil
		},
		AddItem: w.addItem,
		Relocate: func(e *modelpkg.Entity, pos modelpkg.Vec3i) error {
			e.Pos = pos
			w.addEvent(e, death.RespawnEvent(pos))
			return nil
		},
		Audit: w.deathAudit,
	}
}

// retaliate deals the Retribution prayer hit: a quarter of the victim's max hit
// points to the killer, who is left at no less than 1.
func (w *World) retaliate(victim, killer *modelpkg.Entity) error {
	dmg := victim.MaxHP / 4
	if dmg <= 0 {
		return nil
	}
	killer.HP -= dmg
	if killer.HP < 1 {
		killer.HP = 1
	}
	w.addEvent(killer, protocol.Event{"type": "HIT", "from": victim.ID, "damage": dmg})
	return nil
}

// addItem returns an item to the entity, overflowing onto the ground under its own protection.
func (w *World) addItem(e *modelpkg.Entity, it modelpkg.Item) error {
	def, _ := w.cats.Items.Def(it.ID)
	err := e.Inventory.Add(it, def.Stackable)
	if !errors.Is(err, modelpkg.ErrContainerFull) {
		return err
	}
	_, err = w.ground.Place(w.tick.Load(), itemspkg.Drop{
		Owner:             e.ID,
		Item:              it,
		Pos:               e.Pos,
		OriginName:        e.Name,
		OriginHost:        e.Host,
		ProtectionTicks:   w.cfg.Tuning.Loot.ProtectionTicks,
		GlobalAfterWindow: true,
		GlobalTicks:       w.cfg.Tuning.Loot.GlobalTicks,
	})
	return err
}

// notify queues a NOTICE event on e and pushes it to e's connection, if any.
func (w *World) notify(e *modelpkg.Entity, text string) error {
	tick := w.tick.Load()
	w.addEvent(e, protocol.Event{"t": tick, "type": protocol.TypeNotice, "text": text})
	c := w.clients[e.ID]
	if c == nil || c.Out == nil {
		return nil
	}
	b, err := protocol.Encode(protocol.NewNotice(tick, e.ID, text), w.cfg.StrictProtocol)
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	sendLatest(c.Out, b)
	return nil
}

func (w *World) addEvent(e *modelpkg.Entity, ev protocol.Event) {
	e.AddEvent(ev)
	if n := len(e.Events); n > maxPendingEvents {
		e.Events = append(e.Events[:0], e.Events[n-maxPendingEvents:]...)
	}
}
