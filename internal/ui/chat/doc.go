// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen ask view for the amt TUI.

The view shows one question at a time: the answer as it streams, the
episode sources with inline playback, and suggested follow-up questions.
It is a Bubble Tea model driven by an [answer.Asker].

# Key Components

## Model (model.go)

The Model holds the session on screen. Every session message carries the
generation of the session that produced it, and messages from an older
generation than the one on screen are dropped, so a late chunk from a
cleared or replaced question never reaches the view.

## Streaming (streaming.go)

The stream goroutine writes answer snapshots into an AnswerBuffer. The
update loop takes the latest snapshot at most once per frame (about 30fps)
instead of redrawing on every chunk.

## Update Loop (update.go)

Handles keys, session messages, loading message rotation, player actions
and feedback.

## View Rendering (view.go)

Header, answer viewport, sources, follow-ups, the input box and a status
bar with key help and the current player position.

# Usage

	buf := chat.NewAnswerBuffer()
	renderer := citation.NewRenderer()
	m := chat.New(ctx, theme, chat.Deps{Asker: asker, Buffer: buf, Renderer: renderer})
	p := tea.NewProgram(m, tea.WithAltScreen())
	asker.WithHandler(chat.Handler(p.Send, buf, renderer))
	_, err := p.Run()

# Keyboard Shortcuts

  - Enter: ask the question in the input box
  - Tab / Shift+Tab: move between input, sources and follow-ups
  - Up/Down: select a source or follow-up
  - p or Enter (sources): play or stop the selected source
  - Space: pause or resume playback
  - Left/Right: skip back or forward 10 seconds
  - o: show the episode link
  - u / d: rate the answer
  - Esc: clear the question and answer
  - Ctrl+C: quit
*/
package chat
