// cache_cmd.go - Proxy cache maintenance for amt.
//
// Command: cache <subcommand>
// Short:   Maintain the caching proxy's response store
//
// Subcommands:
//   prune [--max-age h]   Drop entries older than h hours (default:
//                         proxy.max_age_hours)
//   clear [--yes]         Drop every entry, all cache versions
//
// The store is the one `amt serve` uses: SQLite in the data directory, or
// Redis when proxy.cache_backend = "redis".
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/server"
)

// CacheResult is the JSON data for cache commands.
type CacheResult struct {
	Action      string `json:"action"`
	Backend     string `json:"backend"`
	Removed     int64  `json:"removed"`
	MaxAgeHours int    `json:"max_age_hours,omitempty"`
}

// HandleCache prunes or clears the proxy cache.
func HandleCache(ctx context.Context, app *App, args Args) error {
	cfg := app.Config
	backend := cfg.Proxy.CacheBackend
	if backend == "" {
		backend = "sqlite"
	}

	result := CacheResult{Action: args.Subcommand, Backend: backend}

	switch args.Subcommand {
	case "prune":
		result.MaxAgeHours = args.MaxAgeHours
		if result.MaxAgeHours == 0 {
			result.MaxAgeHours = cfg.Proxy.MaxAgeHours
		}
		if result.MaxAgeHours <= 0 {
			return &UsageError{
				Reason:  "no maximum age: proxy.max_age_hours is 0",
				Example: "amt cache prune --max-age 168",
			}
		}
	case "clear":
		ok, err := RequireConfirmation(app, args.Yes, "Clear the entire proxy cache", "amt cache clear")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(app.Err, DimStyle.Render("Cancelled."))
			return nil
		}
	}

	store, closeStore, err := server.OpenCacheStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if args.Subcommand == "prune" {
		cutoff := time.Now().Add(-time.Duration(result.MaxAgeHours) * time.Hour)
		result.Removed, err = store.Prune(ctx, cutoff)
	} else {
		// no entry has an empty version, so this drops them all
		result.Removed, err = store.DeleteVersionsExcept(ctx, "")
	}
	if err != nil {
		return fmt.Errorf("cache %s failed: %w", args.Subcommand, err)
	}
	app.Logger.Info("proxy cache maintained", "action", result.Action, "backend", backend, "removed", result.Removed)

	if args.JSON {
		return NewJSONResponse("cache", result).Print(app.Out)
	}
	if !args.Quiet {
		fmt.Fprintf(app.Out, "%s removed %d %s from the %s cache\n",
			SuccessStyle.Render("✓"), result.Removed, plural(result.Removed, "entry", "entries"), backend)
	}
	return nil
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
