package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pkworld.ai/internal/sim/catalogs"
	"pkworld.ai/internal/sim/tuning"
	"pkworld.ai/internal/sim/world"
	"pkworld.ai/internal/sim/world/feature/pvp"
)

// SQLiteIndex is a queryable secondary index of death audits and the
// persistent pvp stats. Writes go through one writer goroutine and never
// block the world loop; if the queue is full the write is dropped and counted.
type SQLiteIndex struct {
	db *sql.DB
	// run tags the audits written by this process; ticks restart with every boot.
	run string

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit atomic.Uint64
	dropStats atomic.Uint64
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqStats
	reqFlush
)

type req struct {
	kind reqKind

	audit world.AuditEntry
	stats pvp.Stats
	done  chan struct{}
}

type Stats struct {
	QueueDepth     int
	QueueCapacity  int
	DropAuditTotal uint64
	DropStatsTotal uint64
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, 65536)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db:  db,
		run: uuid.NewString(),
		ch:  make(chan req, queue),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

// migrateAudits moves a pre-run audits table aside so the current layout can be created.
func migrateAudits(db *sql.DB) error {
	rows, err := db.Query(`PRAGMA table_info(audits)`)
	if err != nil {
		return err
	}
	var (
		exists bool
		hasRun bool
	)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			_ = rows.Close()
			return err
		}
		exists = true
		if name == "run" {
			hasRun = true
		}
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if !exists || hasRun {
		return nil
	}
	for _, stmt := range []string{
		`ALTER TABLE audits RENAME TO audits_v1;`,
		`DROP INDEX IF EXISTS idx_audits_actor_tick;`,
		`DROP INDEX IF EXISTS idx_audits_action_tick;`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate audits: %w", err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	if err := migrateAudits(db); err != nil {
		return err
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run TEXT NOT NULL,
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			zone TEXT,
			killer TEXT,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor_tick ON audits(actor, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action_tick ON audits(action, tick);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_run_tick ON audits(run, tick, seq);`,
		`CREATE TABLE IF NOT EXISTS pvp_stats (
			entity_id TEXT PRIMARY KEY,
			kills INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			streak INTEGER NOT NULL,
			highest_streak INTEGER NOT NULL,
			points INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// RunID identifies the audits written since this index was opened.
func (s *SQLiteIndex) RunID() string {
	if s == nil {
		return ""
	}
	return s.run
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
		// The JSONL audit log remains the source of truth.
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) SavePvPStats(st pvp.Stats) {
	if s == nil || s.closed.Load() || st.EntityID == "" {
		return
	}
	select {
	case s.ch <- req{kind: reqStats, stats: st}:
	default:
		s.dropStats.Add(1)
	}
}

// Flush blocks until everything queued before it is committed.
func (s *SQLiteIndex) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
		DropAuditTotal: s.dropAudit.Load(),
		DropStatsTotal: s.dropStats.Load(),
	}
}

// LoadPvPStats reads every persisted entry. Call it before the world starts.
func (s *SQLiteIndex) LoadPvPStats(ctx context.Context) ([]pvp.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT entity_id,kills,deaths,streak,highest_streak,points FROM pvp_stats ORDER BY entity_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []pvp.Stats
	for rows.Next() {
		var st pvp.Stats
		if err := rows.Scan(&st.EntityID, &st.Kills, &st.Deaths, &st.Streak, &st.HighestStreak, &st.Points); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// DeathAudits returns the indexed audit entries of one actor in write order, across runs.
func (s *SQLiteIndex) DeathAudits(ctx context.Context, actor string) ([]world.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw_json FROM audits WHERE actor=? ORDER BY id`, actor)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []world.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var a world.AuditEntry
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertCatalogs records the digests of the catalogs and tuning the server runs with.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil || cats == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Items.Defs); len(b) > 0 {
		rows = append(rows, kv{name: "items", digest: cats.Items.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Trophies.Tiers); len(b) > 0 {
		rows = append(rows, kv{name: "trophies", digest: cats.Trophies.Digest, json: b})
	}
	if b, _ := json.Marshal(cats.Broken.ByID); len(b) > 0 {
		rows = append(rows, kv{name: "broken", digest: cats.Broken.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, kv{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','2')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.name == "" || r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(run,tick,seq,actor,action,zone,killer,x,y,z,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	upsertStats, _ := s.db.Prepare(`INSERT OR REPLACE INTO pvp_stats(entity_id,kills,deaths,streak,highest_streak,points,updated_at) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if upsertStats != nil {
			_ = upsertStats.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastAuditTick uint64
		auditSeq      int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		select {
		case next, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			r = next
		case <-idle.C:
			// An open transaction holds the only connection.
			if time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
			continue
		}
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			if a.Tick != lastAuditTick {
				lastAuditTick = a.Tick
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					s.run,
					int64(a.Tick),
					seq,
					a.Actor,
					a.Action,
					a.Zone,
					a.Killer,
					a.Pos[0], a.Pos[1], a.Pos[2],
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqStats:
			st := r.stats
			if upsertStats != nil {
				if _, err := tx.Stmt(upsertStats).Exec(
					st.EntityID,
					st.Kills,
					st.Deaths,
					st.Streak,
					st.HighestStreak,
					st.Points,
					time.Now().UTC().Format(time.RFC3339Nano),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}
}
