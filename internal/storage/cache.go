// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// CacheEntry is one cached HTTP response.
type CacheEntry struct {
	Version  string
	Cache    string
	Key      string
	Status   int
	Header   http.Header
	Body     []byte
	StoredAt time.Time
}

// PutCacheEntry stores e, replacing any entry with the same version, cache
// and key.
func (s *Store) PutCacheEntry(ctx context.Context, e CacheEntry) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	header, err := json.Marshal(e.Header)
	if err != nil {
		return fmt.Errorf("failed to encode header: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO cache_entries (version, cache, key, status, header, body, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Version, e.Cache, e.Key, e.Status, string(header), e.Body, e.StoredAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// GetCacheEntry loads the entry for version, cache and key, or ErrNotFound.
func (s *Store) GetCacheEntry(ctx context.Context, version, cache, key string) (CacheEntry, error) {
	if err := s.checkOpen(); err != nil {
		return CacheEntry{}, err
	}
	var (
		e      = CacheEntry{Version: version, Cache: cache, Key: key}
		header string
		stored int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT status, header, body, stored_at FROM cache_entries
		WHERE version = ? AND cache = ? AND key = ?`,
		version, cache, key).Scan(&e.Status, &header, &e.Body, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return CacheEntry{}, ErrNotFound
	}
	if err != nil {
		return CacheEntry{}, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if err := json.Unmarshal([]byte(header), &e.Header); err != nil {
		return CacheEntry{}, fmt.Errorf("corrupt cache header: %w", err)
	}
	e.StoredAt = time.Unix(0, stored)
	return e, nil
}

// DeleteCacheVersionsExcept removes every entry not belonging to version
// and returns how many were removed.
func (s *Store) DeleteCacheVersionsExcept(ctx context.Context, version string) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE version <> ?`, version)
	if err != nil {
		return 0, fmt.Errorf("failed to purge cache versions: %w", err)
	}
	return res.RowsAffected()
}

// PruneCache removes entries stored before cutoff.
func (s *Store) PruneCache(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE stored_at < ?`, cutoff.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune cache: %w", err)
	}
	return res.RowsAffected()
}
