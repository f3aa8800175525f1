// Package store is the SQLite index over the ledger's documents. The YAML
// logs and plans stay authoritative; the index answers lookups (the running
// session, intents by ROAST tuple, usage totals) without re-reading every file.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

type Store struct {
	db *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory() (*Store, error) {
	return New(":memory:")
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	var version int
	err := s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	_, err = s.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	return err
}

func (s *Store) migrateV1() error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS sessions (
		date        TEXT NOT NULL,
		seq         INTEGER NOT NULL,
		intent_id   TEXT NOT NULL,
		start_time  TEXT NOT NULL,
		end_time    TEXT,
		duration    INTEGER NOT NULL DEFAULT 0,
		note        TEXT NOT NULL DEFAULT '',
		reflection  INTEGER,
		PRIMARY KEY (date, seq)
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_intent ON sessions(intent_id);
	CREATE INDEX IF NOT EXISTS idx_sessions_start  ON sessions(start_time);
	CREATE INDEX IF NOT EXISTS idx_sessions_open   ON sessions(date) WHERE end_time IS NULL;

	CREATE TABLE IF NOT EXISTS intents (
		id          TEXT PRIMARY KEY,
		roast_key   TEXT NOT NULL,
		alias       TEXT NOT NULL DEFAULT '',
		valid_from  TEXT NOT NULL DEFAULT '',
		valid_until TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_intents_roast ON intents(roast_key);
	CREATE INDEX IF NOT EXISTS idx_intents_alias ON intents(alias);

	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(ddl)
	return err
}
