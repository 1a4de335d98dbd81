package restore

import (
	"errors"
	"testing"

	"pkworld.ai/internal/sim/catalogs"
	modelpkg "pkworld.ai/internal/sim/world/kernel/model"
)

func testCatalogs(t *testing.T) *catalogs.Catalogs {
	t.Helper()
	c, err := catalogs.New([]catalogs.ItemDef{
		{ID: 6570, Name: "Fire cape"},
		{ID: 20445, Name: "Fire cape (broken)"},
		{ID: 2, Name: "Amulet"},
	}, nil, []catalogs.BrokenItem{{ID: 6570, BrokenID: 20445}})
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	return c
}

func TestRestore_BreaksMappedItems(t *testing.T) {
	e := modelpkg.NewEntity("P1", "alice")
	var notices []string
	hooks := Hooks{
		Add: func(e *modelpkg.Entity, it modelpkg.Item) error {
			return e.Inventory.Add(it, false)
		},
		Notify: func(_ *modelpkg.Entity, text string) error {
			notices = append(notices, text)
			return nil
		},
	}
	res, err := Restore(e, []modelpkg.Item{{ID: 6570, Amount: 1}, {ID: 2, Amount: 3}}, testCatalogs(t), "Perdu", hooks)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if res.Broken != 1 || len(res.Restored) != 2 {
		t.Fatalf("unexpected result: %#v", res)
	}
	if e.Inventory.Count(20445) != 1 || e.Inventory.Count(6570) != 0 {
		t.Fatalf("fire cape must come back broken")
	}
	if e.Inventory.Count(2) != 3 {
		t.Fatalf("amulet quantity must be preserved, got %d", e.Inventory.Count(2))
	}
	if len(notices) != 1 || notices[0] != "Your Fire cape has been broken. You can fix it by talking to Perdu." {
		t.Fatalf("unexpected notices: %#v", notices)
	}
}

func TestRestore_StopsOnError(t *testing.T) {
	e := modelpkg.NewEntity("P1", "alice")
	boom := errors.New("boom")
	calls := 0
	_, err := Restore(e, []modelpkg.Item{{ID: 2, Amount: 1}, {ID: 2, Amount: 1}}, testCatalogs(t), "Perdu", Hooks{
		Add: func(*modelpkg.Entity, modelpkg.Item) error {
			calls++
			return boom
		},
	})
	if !errors.Is(err, boom) || calls != 1 {
		t.Fatalf("expected abort on first error, err=%v calls=%d", err, calls)
	}
}
