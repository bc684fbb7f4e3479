// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package format converts the markdown subset used by generated answers
// into HTML fragments.
//
// The subset is small on purpose:
//
//   - **bold** and *italic* inline spans (non-greedy, single line)
//   - ordered list items ("1. text")
//   - unordered list items ("- text")
//   - blank lines as paragraph separators
//
// # Usage
//
//	html := format.Format("**Grief** is a process:\n1. denial\n2. anger")
//
// Format is a pure function of its input, so it can be re-run on every
// growing prefix of a streamed answer and the result always reflects
// exactly that prefix.
//
// # Lists and blank lines
//
// A blank line always closes an open list. "1. a\n\n2. b" renders as two
// separate ordered lists, the same way the paragraphs around them split.
//
// Input text is HTML-escaped before any markup is produced, so every list
// tag in the output was emitted by the formatter and has a matching close.
package format
