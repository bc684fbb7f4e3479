// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package citation resolves, renders and plays the episode citations
// attached to an answer, and reports clicks and feedback to the analytics
// endpoints.
//
// # Key Types
//
//   - Resolved: a citation with its start/end seconds, labels and play URL
//   - Renderer: turns citation lists into HTML or terminal lines and
//     notifies listeners when a list is attached
//   - PlayerManager: the single inline audio player
//   - Tracker: fire-and-forget click and feedback reporting
//
// # Players
//
// At most one player is open at a time. Toggling the open citation closes
// it; toggling another one pauses and releases the current audio before
// the new one loads. A new player seeks to the citation start and, when
// the citation has an end after its start, pauses itself there.
package citation
