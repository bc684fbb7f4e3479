// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package stream consumes the answer service's server-sent event stream.
//
// The service answers POST /ask/stream with lines of the form
//
//	data: {"type":"chunk","text":"Grief is "}
//
// where type is one of status, chunk, citations, follow_up or done.
//
// # Key Types
//
//   - Frame: one decoded event line
//   - LineReader: splits the body into lines, carrying partial lines over
//   - Session: the state of one submitted question
//   - Tracker: hands out sessions and invalidates stale ones
//   - Client: opens the streaming request
//
// # Lifecycle
//
// A session moves idle -> requesting -> streaming -> complete, or to failed
// from requesting or streaming. Completion is driven by the end of the
// response body, not by the done frame.
//
// # Staleness
//
// Every session carries the tracker generation it was created under.
// Beginning a new session cancels the previous one's context and bumps the
// generation, and Consume stops applying frames to a session that is no
// longer current.
package stream
