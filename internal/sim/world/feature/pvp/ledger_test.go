package pvp

import (
	"errors"
	"testing"

	"pkworld.ai/internal/sim/tuning"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

type memStore struct{ saved []Stats }

func (m *memStore) SavePvPStats(s Stats) { m.saved = append(m.saved, s) }

func testCfg() tuning.PvP {
	return tuning.PvP{FarmWindowTicks: 100, BasePoints: 10, StreakBonus: 2, MaxPoints: 15, StreakMilestone: 2}
}

func pair() (*modelpkg.Entity, *modelpkg.Entity) {
	k := modelpkg.NewEntity("K", "killer")
	k.Host = "1.1.1.1"
	v := modelpkg.NewEntity("V", "victim")
	v.Host = "2.2.2.2"
	return k, v
}

func TestLedger_CreditsKill(t *testing.T) {
	store := &memStore{}
	var notices []string
	l := NewLedger(testCfg(), store, Hooks{Notify: func(e *modelpkg.Entity, text string) error {
		notices = append(notices, e.ID+":"+text)
		return nil
	}})
	k, v := pair()

	res, err := l.OnDeath(10, k, v)
	if err != nil {
		t.Fatalf("OnDeath: %v", err)
	}
	if res.Farmed || res.Points != 12 || res.Streak != 1 || res.Milestone {
		t.Fatalf("unexpected result: %+v", res)
	}
	ks := l.Stats("K")
	if ks.Kills != 1 || ks.Streak != 1 || ks.HighestStreak != 1 || ks.Points != 12 {
		t.Fatalf("killer stats: %+v", ks)
	}
	if vs := l.Stats("V"); vs.Deaths != 1 || vs.Streak != 0 {
		t.Fatalf("victim stats: %+v", vs)
	}
	if len(store.saved) != 2 {
		t.Fatalf("expected killer and victim saved, got %d", len(store.saved))
	}
	if len(notices) != 1 || notices[0] != "K:"+KillSummary("victim", 12, 1) {
		t.Fatalf("unexpected notices: %#v", notices)
	}
}

func TestLedger_AntiFarmByHost(t *testing.T) {
	store := &memStore{}
	var notices []string
	l := NewLedger(testCfg(), store, Hooks{Notify: func(e *modelpkg.Entity, text string) error {
		notices = append(notices, text)
		return nil
	}})
	k, v := pair()
	if _, err := l.OnDeath(10, k, v); err != nil {
		t.Fatalf("first kill: %v", err)
	}

	alt := modelpkg.NewEntity("V2", "alt")
	alt.Host = v.Host
	res, err := l.OnDeath(50, k, alt)
	if err != nil {
		t.Fatalf("farmed kill: %v", err)
	}
	if !res.Farmed {
		t.Fatalf("same host inside window must be farmed")
	}
	if got := l.Stats("K").Kills; got != 1 {
		t.Fatalf("farmed kill must not be credited, kills=%d", got)
	}
	if got := l.Stats("V2").Deaths; got != 0 {
		t.Fatalf("farmed kill must not count a death, deaths=%d", got)
	}
	if notices[len(notices)-1] != FarmWarning("alt") {
		t.Fatalf("expected farm warning, got %q", notices[len(notices)-1])
	}
	if len(store.saved) != 2 {
		t.Fatalf("farmed kill must not persist, saves=%d", len(store.saved))
	}

	res, err = l.OnDeath(110, k, alt)
	if err != nil || res.Farmed {
		t.Fatalf("kill after window must be credited: %+v %v", res, err)
	}
}

func TestLedger_StreakMilestoneAndCap(t *testing.T) {
	var notices []string
	l := NewLedger(testCfg(), nil, Hooks{Notify: func(e *modelpkg.Entity, text string) error {
		notices = append(notices, text)
		return nil
	}})
	k := modelpkg.NewEntity("K", "killer")
	for i, host := range []string{"a", "b", "c"} {
		v := modelpkg.NewEntity(host, host)
		v.Host = host
		if _, err := l.OnDeath(uint64(i), k, v); err != nil {
			t.Fatalf("kill %d: %v", i, err)
		}
	}
	ks := l.Stats("K")
	// 12, then 14, then 16 capped to 15.
	if ks.Points != 41 || ks.Streak != 3 || ks.HighestStreak != 3 {
		t.Fatalf("unexpected stats: %+v", ks)
	}
	found := false
	for _, n := range notices {
		if n == MilestoneNotice(2) {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing milestone notice: %#v", notices)
	}
}

func TestLedger_DeathResetsStreak(t *testing.T) {
	l := NewLedger(testCfg(), nil, Hooks{})
	k, v := pair()
	if _, err := l.OnDeath(1, k, v); err != nil {
		t.Fatal(err)
	}
	if _, err := l.OnDeath(2, v, k); err != nil {
		t.Fatal(err)
	}
	ks := l.Stats("K")
	if ks.Streak != 0 || ks.HighestStreak != 1 || ks.Deaths != 1 {
		t.Fatalf("streak not reset: %+v", ks)
	}
}

func TestLedger_LoadAndNotifyError(t *testing.T) {
	boom := errors.New("socket closed")
	l := NewLedger(testCfg(), nil, Hooks{Notify: func(*modelpkg.Entity, string) error { return boom }})
	l.Load([]Stats{{EntityID: "K", Kills: 7, Points: 70}, {}})
	if got := len(l.All()); got != 1 {
		t.Fatalf("blank entries must be skipped, got %d", got)
	}
	k, v := pair()
	if _, err := l.OnDeath(1, k, v); !errors.Is(err, boom) {
		t.Fatalf("expected notify error, got %v", err)
	}
	if got := l.Stats("K"); got.Kills != 8 || got.Points != 82 {
		t.Fatalf("credit must apply before notify: %+v", got)
	}
}

func TestLedger_IgnoresSelfAndNil(t *testing.T) {
	l := NewLedger(testCfg(), nil, Hooks{})
	k, _ := pair()
	if res, err := l.OnDeath(1, k, k); err != nil || res.Points != 0 {
		t.Fatalf("self kill must be ignored: %+v %v", res, err)
	}
	if res, err := l.OnDeath(1, nil, k); err != nil || res.Points != 0 {
		t.Fatalf("nil killer must be ignored: %+v %v", res, err)
	}
	if len(l.All()) != 0 {
		t.Fatalf("nothing should be recorded")
	}
}
