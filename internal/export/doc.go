// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes stored answers to files for sharing or archiving.
//
// # Key Types
//
//   - Format: Export format enumeration (JSON, Markdown, HTML)
//   - Exporter: Converts a list of history records to one document
//   - Options: Export configuration options
//
// # Supported Formats
//
//   - JSON: Machine-readable, the records as stored
//   - Markdown: Questions, answers, sources with timestamps and links
//   - HTML: A standalone page using the widget's answer markup
//
// # Usage
//
//	exp, err := export.New(export.FormatMarkdown, nil)
//	path, err := export.ToFile(records, exp, &export.Options{OutputDir: "."})
package export
