// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server runs the `amt serve` front for the Ask Mirror Talk site.
//
// It stands where the browser's service worker and the WordPress relay
// would: pages, assets and API calls go through the caching proxy, and
// gateway questions are checked and relayed to the answer service.
//
// # Endpoints
//
//   - GET  /healthz                  - liveness and cache version
//   - GET  /metrics                  - prometheus metrics
//   - POST /wp-admin/admin-ajax.php  - gateway relay (rate limited)
//   - ANY  /amt-api/*                - answer API through the cache (rate limited)
//   - ANY  /*                        - site pages and assets through the cache
//
// # Maintenance
//
// On start the app shell is pre-cached and older cache versions are
// removed. The cache is pruned on proxy.prune_schedule, and the rate limit
// and schedule follow edits to the config file without a restart.
//
// # Usage
//
//	store, closeStore, err := server.OpenCacheStore(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer closeStore()
//	srv, err := server.New(cfg, store)
//	if err != nil {
//		return err
//	}
//	return srv.WithConfigPath(path).Run(ctx)
package server
