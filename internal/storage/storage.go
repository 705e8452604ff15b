// Package storage is the durable relational store: live character and
// relationship state, the conversation log, state events, and the virtual
// life schedule. SQLite via modernc (no cgo).
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite handle. sqlite serializes individual statements;
// stateMu is the per-persona critical section for read-modify-write
// sequences on character and relationship state. The coordinator and the
// consciousness cycle share it via LockState, so neither can clobber a
// state change the other made mid-sequence.
type Store struct {
	db      *sql.DB
	stateMu sync.Mutex
}

// LockState enters the persona state critical section. Hold it for the
// whole read-modify-write, never across generation calls or delivery.
func (s *Store) LockState() { s.stateMu.Lock() }

// UnlockState leaves the persona state critical section.
func (s *Store) UnlockState() { s.stateMu.Unlock() }

// Open opens or creates the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// DB exposes the handle so the memory subsystem can keep its tables in the
// same database file.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS character_state (
		persona_id       TEXT PRIMARY KEY,
		mood             TEXT NOT NULL,
		energy_level     INTEGER NOT NULL,
		current_activity TEXT NOT NULL,
		location         TEXT NOT NULL DEFAULT 'home',
		last_message_at  TEXT,
		quiet_until      TEXT,
		updated_at       TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS relationship_state (
		persona_id          TEXT PRIMARY KEY,
		intimacy_level      INTEGER NOT NULL DEFAULT 10,
		interaction_count   INTEGER NOT NULL DEFAULT 0,
		last_interaction_at TEXT
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		persona_id   TEXT NOT NULL,
		kind         TEXT NOT NULL DEFAULT 'response',
		user_message TEXT NOT NULL DEFAULT '',
		response     TEXT NOT NULL,
		mood_before  TEXT,
		mood_after   TEXT,
		created_at   TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_conversations_persona_time ON conversations(persona_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_conversations_kind ON conversations(persona_id, kind, created_at DESC);

	CREATE TABLE IF NOT EXISTS state_events (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		persona_id  TEXT NOT NULL,
		event_type  TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		delta       TEXT NOT NULL DEFAULT '{}',
		trigger     TEXT NOT NULL DEFAULT '',
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_state_events_persona_time ON state_events(persona_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS activities (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		persona_id    TEXT NOT NULL,
		activity_type TEXT NOT NULL,
		description   TEXT NOT NULL,
		start_time    TEXT NOT NULL,
		end_time      TEXT NOT NULL,
		status        TEXT NOT NULL DEFAULT 'planned',
		mood_effect   REAL NOT NULL DEFAULT 0,
		energy_cost   INTEGER NOT NULL DEFAULT 20,
		importance    INTEGER NOT NULL DEFAULT 5,
		flexibility   INTEGER NOT NULL DEFAULT 5,
		created_at    TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activities_persona_start ON activities(persona_id, status, start_time);
	`
	_, err := s.db.Exec(schema)
	return err
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return time.Time{}
	}
	return t
}
