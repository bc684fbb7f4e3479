// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package proxy is a local caching HTTP proxy for the Mirror Talk site and
// answer API.
//
// Each request is classified and served with the policy for its class:
//
//   - bypass: non-GET requests, the answer stream, audio and admin pages
//     pass straight through without touching the cache
//   - api: GETs against the answer API are network-first with a cache
//     fallback
//   - static: stylesheets, scripts, images and fonts are cache-first and
//     refreshed in the background on every hit
//   - html: page loads are network-first, falling back to the cache and
//     then to a built-in offline page
//   - other: passed through uncached
//
// Cache entries are namespaced by CacheVersion. Activate drops every
// entry of other versions, Install pre-caches the app shell, and Prune
// removes entries older than a cutoff.
package proxy
