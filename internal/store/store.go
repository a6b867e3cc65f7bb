// Package store persists the department directory and per-department
// document records in an embedded SQLite database. File bytes live on disk
// under the home directory; this package holds metadata and the extracted
// raw-text blob only.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Sentinel errors callers branch on.
var (
	ErrNotFound        = errors.New("not found")
	ErrDuplicateName   = errors.New("department name already exists")
	ErrDepartmentInUse = errors.New("department has documents")
)

const schema = `
CREATE TABLE IF NOT EXISTS departments (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
	description TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL,
	updated_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS documents (
	id             TEXT PRIMARY KEY,
	department_id  TEXT NOT NULL REFERENCES departments(id),
	filename       TEXT NOT NULL,
	mime_type      TEXT NOT NULL,
	size_bytes     INTEGER NOT NULL DEFAULT 0,
	status         TEXT NOT NULL DEFAULT 'uploaded',
	extracted_text TEXT NOT NULL DEFAULT '',
	created_at     TEXT NOT NULL,
	updated_at     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_department ON documents(department_id);
`

// Store wraps the SQLite handle.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path, applies the
// production pragmas, and ensures the schema exists. Use ":memory:" in
// tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: %s: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}

	logger.Debug("store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable; used by the readiness endpoint.
func (s *Store) Ping() error {
	return s.db.Ping()
}
