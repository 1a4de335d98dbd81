package indexdb

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"pkworld.ai/internal/sim/catalogs"
	"pkworld.ai/internal/sim/tuning"
	"pkworld.ai/internal/sim/world"
	"pkworld.ai/internal/sim/world/feature/pvp"
)

func TestSQLiteIndex_PvPStatsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index", "world.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s.SavePvPStats(pvp.Stats{EntityID: "K", Kills: 1, Streak: 1, HighestStreak: 1, Points: 12})
	s.SavePvPStats(pvp.Stats{EntityID: "V", Deaths: 1})
	s.SavePvPStats(pvp.Stats{EntityID: "K", Kills: 2, Streak: 2, HighestStreak: 2, Points: 26})
	s.SavePvPStats(pvp.Stats{})
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.LoadPvPStats(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %#v", got)
	}
	if got[0].EntityID != "K" || got[0].Kills != 2 || got[0].Points != 26 || got[0].HighestStreak != 2 {
		t.Fatalf("latest save must win: %#v", got[0])
	}
	if got[1].EntityID != "V" || got[1].Deaths != 1 {
		t.Fatalf("unexpected victim row: %#v", got[1])
	}
}

func TestSQLiteIndex_DeathAuditsInOrder(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	entries := []world.AuditEntry{
		{Tick: 1, Actor: "V", Action: "DEATH_STAGE", Details: map[string]any{"stage": "locking"}},
		{Tick: 5, Actor: "V", Action: "DEATH_STAGE", Zone: "wilderness", Killer: "K"},
		{Tick: 5, Actor: "X", Action: "DEATH_FAILED"},
		{Tick: 6, Actor: "V", Action: "DEATH_COMPLETE", Pos: [3]int{3093, 3493, 0}},
	}
	for _, e := range entries {
		if err := s.WriteAudit(e); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, err := s.DeathAudits(context.Background(), "V")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries for V, got %d", len(got))
	}
	if got[0].Details["stage"] != "locking" || got[1].Killer != "K" || got[2].Action != "DEATH_COMPLETE" {
		t.Fatalf("unexpected entries: %#v", got)
	}
	if got[2].Pos != [3]int{3093, 3493, 0} {
		t.Fatalf("position lost: %#v", got[2].Pos)
	}
}

func TestSQLiteIndex_AuditsSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.sqlite")
	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	firstRun := s.RunID()
	if err := s.WriteAudit(world.AuditEntry{Tick: 5, Actor: "A", Action: "DEATH_COMPLETE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	s, err = OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if s.RunID() == "" || s.RunID() == firstRun {
		t.Fatalf("each open needs its own run id, got %q after %q", s.RunID(), firstRun)
	}
	if err := s.WriteAudit(world.AuditEntry{Tick: 5, Actor: "B", Action: "DEATH_COMPLETE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	for _, actor := range []string{"A", "B"} {
		got, err := s.DeathAudits(context.Background(), actor)
		if err != nil {
			t.Fatalf("query %s: %v", actor, err)
		}
		if len(got) != 1 || got[0].Tick != 5 || got[0].Actor != actor {
			t.Fatalf("audits of %s after restart: %#v", actor, got)
		}
	}
}

func TestSQLiteIndex_MigratesAuditsWithoutRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "world.sqlite")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE audits (tick INTEGER NOT NULL, seq INTEGER NOT NULL, actor TEXT NOT NULL, action TEXT NOT NULL, zone TEXT, killer TEXT, x INTEGER NOT NULL, y INTEGER NOT NULL, z INTEGER NOT NULL, raw_json TEXT NOT NULL, PRIMARY KEY (tick, seq));`,
		`CREATE INDEX idx_audits_actor_tick ON audits(actor, tick);`,
		`INSERT INTO audits VALUES(5,0,'A','DEATH_COMPLETE','','',0,0,0,'{}');`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_ = db.Close()

	s, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	if err := s.WriteAudit(world.AuditEntry{Tick: 5, Actor: "B", Action: "DEATH_COMPLETE"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	got, err := s.DeathAudits(context.Background(), "B")
	if err != nil || len(got) != 1 {
		t.Fatalf("audits after migration: %#v err=%v", got, err)
	}
	var kept int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM audits_v1`).Scan(&kept); err != nil || kept != 1 {
		t.Fatalf("old audits must be kept aside: n=%d err=%v", kept, err)
	}
}

func TestSQLiteIndex_QueueDropStats(t *testing.T) {
	s := &SQLiteIndex{ch: make(chan req, 1)}
	s.ch <- req{kind: reqAudit}

	_ = s.WriteAudit(world.AuditEntry{Tick: 2})
	s.SavePvPStats(pvp.Stats{EntityID: "K"})

	st := s.Stats()
	if st.DropAuditTotal != 1 || st.DropStatsTotal != 1 {
		t.Fatalf("drop stats mismatch: %+v", st)
	}
	if st.QueueDepth != 1 || st.QueueCapacity != 1 {
		t.Fatalf("queue stats mismatch: depth=%d cap=%d", st.QueueDepth, st.QueueCapacity)
	}
}

func TestSQLiteIndex_UpsertCatalogs(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	cats, err := catalogs.New(
		[]catalogs.ItemDef{{ID: 1, Name: "Sword", Tradeable: true, Value: 100}},
		[]catalogs.TrophyTier{{ID: 12746, Tier: 1}},
		[]catalogs.BrokenItem{{ID: 6570, BrokenID: 20445}},
	)
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	if err := s.UpsertCatalogs(cats, tuning.Defaults()); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM catalogs`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected items, trophies, broken and tuning rows, got %d", n)
	}
	var digest string
	if err := s.db.QueryRow(`SELECT digest FROM catalogs WHERE name='items'`).Scan(&digest); err != nil {
		t.Fatalf("digest: %v", err)
	}
	if digest != cats.Items.Digest {
		t.Fatalf("digest mismatch: %s vs %s", digest, cats.Items.Digest)
	}
}
