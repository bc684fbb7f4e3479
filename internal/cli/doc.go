// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and execution for amt.
//
// Every command except the full-screen interface is implemented here. The
// interface itself lives in the ui package and is passed to Main by the
// program's main function.
//
// # Key Types
//
//   - Command: Enumeration of all available commands
//   - Args: Parsed command line with global and command-specific flags
//   - App: Config, logger and standard streams shared by every handler
//   - JSONResponse: The envelope printed by --json
//
// # Usage
//
//	code := cli.Main(ctx, os.Args[1:], runTUI)
//	os.Exit(code)
//
// # Commands Overview
//
// Questions:
//   - ask: One question, printed as terminal text, JSON or widget HTML
//   - chat: A question loop with slash commands for playback and feedback
//   - history: Recent answers, full-text search, show one answer
//
// Maintenance:
//   - config: Show, get, set and list settings
//   - serve: Caching proxy and gateway relay for the site
//   - cache: Prune or clear the proxy cache
//   - doctor: Configuration and connectivity checks
//
// Handlers return errors and never exit. Exit maps them to exit codes, and
// all commands support --json.
package cli
