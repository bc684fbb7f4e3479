// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
)

// ErrMiss is returned by a CacheStore without an entry for the key.
var ErrMiss = errors.New("cache miss")

// Entry is one cached response.
type Entry = storage.CacheEntry

// CacheStore holds cached responses keyed by version, cache and URL.
type CacheStore interface {
	Get(ctx context.Context, version, cache, key string) (Entry, error)
	Put(ctx context.Context, e Entry) error
	DeleteVersionsExcept(ctx context.Context, version string) (int64, error)
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// =============================================================================
// SQLITE
// =============================================================================

// SQLiteStore keeps the cache in the local history database.
type SQLiteStore struct {
	db *storage.Store
}

// NewSQLiteStore wraps an open storage.Store.
func NewSQLiteStore(db *storage.Store) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Get(ctx context.Context, version, cache, key string) (Entry, error) {
	e, err := s.db.GetCacheEntry(ctx, version, cache, key)
	if errors.Is(err, storage.ErrNotFound) {
		return Entry{}, ErrMiss
	}
	return e, err
}

func (s *SQLiteStore) Put(ctx context.Context, e Entry) error {
	return s.db.PutCacheEntry(ctx, e)
}

func (s *SQLiteStore) DeleteVersionsExcept(ctx context.Context, version string) (int64, error) {
	return s.db.DeleteCacheVersionsExcept(ctx, version)
}

func (s *SQLiteStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.db.PruneCache(ctx, cutoff)
}

// =============================================================================
// REDIS
// =============================================================================

// DefaultRedisPrefix prefixes every key the redis store writes.
const DefaultRedisPrefix = "amt:cache"

// RedisStore shares the cache between proxies through redis. Entries are
// JSON values under "<prefix>:<version>:<cache>:<url>".
type RedisStore struct {
	client *redis.Client
	prefix string

	// TTL, when positive, expires entries in redis on its own.
	TTL time.Duration
}

// NewRedisStore creates a store over client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisClient builds a client for addr.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

type redisEntry struct {
	Version  string              `json:"version"`
	Cache    string              `json:"cache"`
	Key      string              `json:"key"`
	Status   int                 `json:"status"`
	Header   map[string][]string `json:"header"`
	Body     []byte              `json:"body"`
	StoredAt time.Time           `json:"stored_at"`
}

func (s *RedisStore) key(version, cache, key string) string {
	return s.prefix + ":" + version + ":" + cache + ":" + key
}

func (s *RedisStore) Get(ctx context.Context, version, cache, key string) (Entry, error) {
	val, err := s.client.Get(ctx, s.key(version, cache, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, ErrMiss
	}
	if err != nil {
		return Entry{}, fmt.Errorf("redis get: %w", err)
	}
	var re redisEntry
	if err := json.Unmarshal(val, &re); err != nil {
		return Entry{}, fmt.Errorf("corrupt cache entry: %w", err)
	}
	return Entry{
		Version:  re.Version,
		Cache:    re.Cache,
		Key:      re.Key,
		Status:   re.Status,
		Header:   re.Header,
		Body:     re.Body,
		StoredAt: re.StoredAt,
	}, nil
}

func (s *RedisStore) Put(ctx context.Context, e Entry) error {
	if e.StoredAt.IsZero() {
		e.StoredAt = time.Now()
	}
	data, err := json.Marshal(redisEntry{
		Version:  e.Version,
		Cache:    e.Cache,
		Key:      e.Key,
		Status:   e.Status,
		Header:   e.Header,
		Body:     e.Body,
		StoredAt: e.StoredAt,
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(e.Version, e.Cache, e.Key), data, s.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) DeleteVersionsExcept(ctx context.Context, version string) (int64, error) {
	keep := s.prefix + ":" + version + ":"
	return s.deleteMatching(ctx, func(key string, _ []byte) bool {
		return !strings.HasPrefix(key, keep)
	}, false)
}

func (s *RedisStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	return s.deleteMatching(ctx, func(_ string, val []byte) bool {
		var re redisEntry
		if err := json.Unmarshal(val, &re); err != nil {
			return true
		}
		return re.StoredAt.Before(cutoff)
	}, true)
}

// deleteMatching scans every key under the prefix and deletes those for
// which match returns true. Values are only fetched when withValue is set.
func (s *RedisStore) deleteMatching(ctx context.Context, match func(key string, val []byte) bool, withValue bool) (int64, error) {
	var deleted int64
	iter := s.client.Scan(ctx, 0, s.prefix+":*", 200).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		var val []byte
		if withValue {
			b, err := s.client.Get(ctx, key).Bytes()
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return deleted, fmt.Errorf("redis get: %w", err)
			}
			val = b
		}
		if !match(key, val) {
			continue
		}
		n, err := s.client.Del(ctx, key).Result()
		if err != nil {
			return deleted, fmt.Errorf("redis del: %w", err)
		}
		deleted += n
	}
	if err := iter.Err(); err != nil {
		return deleted, fmt.Errorf("redis scan: %w", err)
	}
	return deleted, nil
}
