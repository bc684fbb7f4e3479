// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)

// =============================================================================
// SCHEMA
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS answers (
	id          TEXT PRIMARY KEY,
	question    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	citations   TEXT NOT NULL DEFAULT '[]',
	follow_ups  TEXT NOT NULL DEFAULT '[]',
	qa_log_id   TEXT NOT NULL DEFAULT '',
	path        TEXT NOT NULL DEFAULT '',
	cached      INTEGER NOT NULL DEFAULT 0,
	latency_ms  INTEGER NOT NULL DEFAULT 0,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_answers_created ON answers(created_at DESC);

CREATE TABLE IF NOT EXISTS cache_entries (
	version     TEXT NOT NULL,
	cache       TEXT NOT NULL,
	key         TEXT NOT NULL,
	status      INTEGER NOT NULL,
	header      TEXT NOT NULL DEFAULT '{}',
	body        BLOB,
	stored_at   INTEGER NOT NULL,
	PRIMARY KEY (version, cache, key)
);
CREATE INDEX IF NOT EXISTS idx_cache_stored ON cache_entries(stored_at);
`

// =============================================================================
// STORE
// =============================================================================

// DefaultMaxAnswers is the history cap of a newly opened store.
const DefaultMaxAnswers = 500

// Store is the SQLite-backed history and cache store.
type Store struct {
	db *sql.DB

	// MaxAnswers caps stored history; the oldest answers go first.
	// Zero means unlimited.
	MaxAnswers int

	mu     sync.RWMutex
	search bleve.Index
	closed bool
}

// DefaultPath returns ~/.ask-mirror-talk/history.db.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ask-mirror-talk", "history.db"), nil
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create search index: %w", err)
	}

	s := &Store{db: db, search: index, MaxAnswers: DefaultMaxAnswers}
	if err := s.reindex(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to build search index: %w", err)
	}
	return s, nil
}

// Close releases the database and the search index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.search.Close()
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
