// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists answer history and proxy cache entries.
//
// Everything lives in one SQLite database opened through the pure Go
// modernc driver. Answer history is also fed into an in-memory bleve index,
// rebuilt from the database on Open, so past answers can be searched by
// full text.
//
// # Usage
//
//	store, err := storage.Open(path)
//	id, err := store.SaveAnswer(ctx, answer)
//	recent, err := store.RecentAnswers(ctx, 20)
//	hits, err := store.SearchAnswers(ctx, "grief", 10)
//
// # Storage Location
//
// The default database is ~/.ask-mirror-talk/history.db.
package storage
