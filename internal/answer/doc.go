// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package answer turns a question into a settled answer session.
//
// Asker validates the question locally, opens the answer stream and, when
// the stream fails for any transport reason, runs the gateway fallback
// chain with the same question. Only the final failure reaches the caller,
// and UserMessage maps it onto the text shown to the user.
//
// Submitting a new question supersedes any in-flight one: the old session's
// context is cancelled and nothing it receives afterwards is rendered.
package answer
