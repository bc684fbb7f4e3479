// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the client: atomic file
// writes for config and history exports, and display-width aware string
// truncation for terminal output.
package util
