package zones

import (
	"testing"

	"pkworld.ai/internal/sim/tuning"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

func TestMap_Classify(t *testing.T) {
	m := NewMap(tuning.Defaults().Zones)
	wild := m.Classify(modelpkg.Vec3i{X: 3100, Y: 3600, Z: 0})
	if wild.Name() != "wilderness" || !wild.Forfeits() {
		t.Fatalf("expected forfeiting wilderness, got %s forfeit=%v", wild.Name(), wild.Forfeits())
	}
	home := m.Classify(modelpkg.Vec3i{X: 3093, Y: 3493, Z: 0})
	if home.Name() != OrdinaryName || home.Forfeits() {
		t.Fatalf("expected ordinary zone at spawn, got %s", home.Name())
	}
	var nilMap *Map
	if nilMap.Classify(modelpkg.Vec3i{}).Name() != OrdinaryName {
		t.Fatalf("nil map must classify as ordinary")
	}
}

func TestOnDeathHooks(t *testing.T) {
	m := NewMap(tuning.Defaults().Zones)
	e := modelpkg.NewEntity("P1", "alice")
	e.Skulled = true
	if err := m.Classify(modelpkg.Vec3i{X: 3000, Y: 3600}).OnDeath(e); err != nil {
		t.Fatalf("OnDeath: %v", err)
	}
	if e.Skulled {
		t.Fatalf("wilderness death must clear skull")
	}

	e.Duel = &modelpkg.DuelSession{OpponentID: "P2", Active: true}
	if err := m.Classify(modelpkg.Vec3i{X: 3350, Y: 3220}).OnDeath(e); err != nil {
		t.Fatalf("OnDeath: %v", err)
	}
	if e.Duel.Active {
		t.Fatalf("arena death must end duel")
	}
	if err := Ordinary().OnDeath(nil); err != nil {
		t.Fatalf("ordinary OnDeath: %v", err)
	}
}
