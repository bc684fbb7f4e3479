// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads and saves the TOML configuration.
//
// The file lives at ~/.ask-mirror-talk/config.toml (AMT_CONFIG overrides
// the path). Loading starts from Default, decodes the file when present,
// applies AMT_* environment overrides and validates the result.
//
// Values can be read and written by dot key:
//
//	cfg.Get("proxy.cache_backend")
//	cfg.Set("api.timeout_secs", "30")
//
// Watch reloads the file on change for long-running commands.
package config
