package zones

import (
	"pkworld.ai/internal/sim/tuning"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

const OrdinaryName = "ordinary"

// Zone classifies a position. Forfeiture zones make death drop eligible items.
type Zone interface {
	Name() string
	Forfeits() bool
	// OnDeath runs once at the end of a death sequence that started in this zone.
	OnDeath(e *modelpkg.Entity) error
}

type OnDeathFunc func(e *modelpkg.Entity) error

type zone struct {
	name    string
	min     modelpkg.Vec3i
	max     modelpkg.Vec3i
	forfeit bool
	onDeath OnDeathFunc
}

func (z *zone) Name() string   { return z.name }
func (z *zone) Forfeits() bool { return z.forfeit }

func (z *zone) OnDeath(e *modelpkg.Entity) error {
	if z.onDeath == nil || e == nil {
		return nil
	}
	return z.onDeath(e)
}

var ordinary = &zone{name: OrdinaryName}

func Ordinary() Zone { return ordinary }

func ClearSkull(e *modelpkg.Entity) error {
	e.Skulled = false
	return nil
}

func EndDuel(e *modelpkg.Entity) error {
	if e.Duel.InDuel() {
		e.Duel.Active = false
	}
	return nil
}

func hookFor(name string) OnDeathFunc {
	switch name {
	case "clear_skull":
		return ClearSkull
	case "end_duel":
		return EndDuel
	default:
		return nil
	}
}

// Map resolves positions to zones; the first configured zone containing a position wins.
type Map struct {
	zones []*zone
}

func NewMap(cfg []tuning.Zone) *Map {
	m := &Map{zones: make([]*zone, 0, len(cfg))}
	for _, z := range cfg {
		m.zones = append(m.zones, &zone{
			name:    z.Name,
			min:     modelpkg.VecFromSlice(z.Min),
			max:     modelpkg.VecFromSlice(z.Max),
			forfeit: z.Forfeit,
			onDeath: hookFor(z.OnDeath),
		})
	}
	return m
}

func (m *Map) Classify(pos modelpkg.Vec3i) Zone {
	if m == nil {
		return ordinary
	}
	for _, z := range m.zones {
		if pos.Within(z.min, z.max) {
			return z
		}
	}
	return ordinary
}

// Static returns a zone that is not tied to a map; used by tests and admin tooling.
func Static(name string, forfeit bool, onDeath OnDeathFunc) Zone {
	return &zone{name: name, forfeit: forfeit, onDeath: onDeath}
}
