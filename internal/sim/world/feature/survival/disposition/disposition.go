// Package disposition turns forfeited items into lootable drops.
package disposition

import (
	"fmt"

	"pkworld.ai/internal/sim/catalogs"
	itemspkg "pkworld.ai/internal/sim/world/feature/entities/items"
	"pkworld.ai/internal/sim/world/feature/survival/retention"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

type Outcome int

const (
	Retained   Outcome = iota + 1 // kept for restoration
	Dropped                       // placed as loot unchanged
	Downgraded                    // placed as loot one trophy tier lower
	Discarded                     // zero value, never dropped
	Lost                          // trophy that cannot be handed down
	Withheld                      // not processed: privileged rank stopped the drop loop
)

func (o Outcome) String() string {
	switch o {
	case Retained:
		return "RETAINED"
	case Dropped:
		return "DROPPED"
	case Downgraded:
		return "DOWNGRADED"
	case Discarded:
		return "DISCARDED"
	case Lost:
		return "LOST"
	case Withheld:
		return "WITHHELD"
	default:
		return "UNKNOWN"
	}
}

type Params struct {
	ProtectionTicks int
	GlobalTicks     int
}

type Input struct {
	Victim *modelpkg.Entity
	// Killer may be nil.
	Killer   *modelpkg.Entity
	Pos      modelpkg.Vec3i
	Carried  []retention.Carried
	Retained *retention.Set
	Catalogs *catalogs.Catalogs
	Params   Params
}

type Decision struct {
	Carried retention.Carried
	Outcome Outcome
	// DropIndex points into Plan.Drops for Dropped/Downgraded outcomes, else -1.
	DropIndex int
}

type Plan struct {
	Decisions     []Decision
	Drops         []itemspkg.Drop
	KillerNotices []string
	Dropped       bool
	// NothingOfValue is set when a killer exists and nothing was dropped.
	NothingOfValue bool
	// Reward is set when the killer must be credited.
	Reward bool
}

func (p Plan) Count(o Outcome) int {
	n := 0
	for _, d := range p.Decisions {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// Decide classifies every carried item exactly once and builds the drops.
// It is a pure function of its input.
func Decide(in Input) Plan {
	var p Plan
	if in.Victim == nil || in.Catalogs == nil {
		return p
	}
	halted := false
	for _, c := range in.Carried {
		if in.Retained.Contains(c) {
			p.Decisions = append(p.Decisions, Decision{Carried: c, Outcome: Retained, DropIndex: -1})
			continue
		}
		if halted {
			p.Decisions = append(p.Decisions, Decision{Carried: c, Outcome: Withheld, DropIndex: -1})
			continue
		}
		d, _ := in.Catalogs.Items.Def(c.Item.ID)
		if d.Value == 0 {
			p.Decisions = append(p.Decisions, Decision{Carried: c, Outcome: Discarded, DropIndex: -1})
			continue
		}
		if in.Victim.Rights.Privileged() {
			halted = true
			p.Decisions = append(p.Decisions, Decision{Carried: c, Outcome: Withheld, DropIndex: -1})
			continue
		}
		if tier, ok := in.Catalogs.Trophies.Lookup(c.Item.ID); ok {
			if tier.Lowest() || in.Killer == nil {
				p.Decisions = append(p.Decisions, Decision{Carried: c, Outcome: Lost, DropIndex: -1})
				continue
			}
			lower := modelpkg.Item{ID: tier.DowngradeTo, Amount: 1}
			p.Drops = append(p.Drops, newDrop(in, in.Killer.ID, lower))
			p.KillerNotices = append(p.KillerNotices,
				fmt.Sprintf("%s dropped a %s!", in.Victim.Name, in.Catalogs.Items.Name(lower.ID)))
			p.Decisions = append(p.Decisions, Decision{Carried: c, Outcome: Downgraded, DropIndex: len(p.Drops) - 1})
			p.Dropped = true
			continue
		}
		owner := in.Victim.ID
		if in.Killer != nil {
			owner = in.Killer.ID
		}
		p.Drops = append(p.Drops, newDrop(in, owner, c.Item))
		p.Decisions = append(p.Decisions, Decision{Carried: c, Outcome: Dropped, DropIndex: len(p.Drops) - 1})
		p.Dropped = true
	}
	if in.Killer != nil {
		p.NothingOfValue = !p.Dropped
		p.Reward = true
	}
	return p
}

func newDrop(in Input, owner string, it modelpkg.Item) itemspkg.Drop {
	return itemspkg.Drop{
		Owner:             owner,
		Item:              it,
		Pos:               in.Pos,
		OriginName:        in.Victim.Name,
		OriginHost:        in.Victim.Host,
		DeathDrop:         true,
		ProtectionTicks:   in.Params.ProtectionTicks,
		GlobalAfterWindow: true,
		GlobalTicks:       in.Params.GlobalTicks,
	}
}

func NothingOfValueNotice(victim *modelpkg.Entity) string {
	return fmt.Sprintf("%s had no valuable items to be dropped.", victim.Name)
}
