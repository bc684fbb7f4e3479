// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
)

// Every session message carries the generation of the session that
// produced it. Update drops messages older than the session on screen.

// =============================================================================
// SESSION MESSAGES
// =============================================================================

// StateMsg reports a session state transition.
type StateMsg struct {
	Generation uint64
	State      stream.State
}

// StatusMsg carries a status frame. Hint marks an episode-depth search.
type StatusMsg struct {
	Generation uint64
	Message    string
	Hint       bool
}

// CitationsMsg carries a citation list attached to the answer.
type CitationsMsg struct {
	Generation uint64
	QALogID    model.ID
	Citations  []citation.Resolved
}

// FollowUpsMsg carries suggested follow-up questions.
type FollowUpsMsg struct {
	Generation uint64
	Questions  []string
}

// DoneMsg is sent when Submit returns.
type DoneMsg struct {
	Generation uint64
	Answer     model.Answer
	Err        error
}

// =============================================================================
// TICKS
// =============================================================================

// frameTickMsg flushes the answer buffer.
type frameTickMsg struct {
	Time time.Time
}

// loadingTickMsg rotates the loading message.
type loadingTickMsg struct {
	Generation uint64
	Tick       int
}

// playerTickMsg refreshes the player position.
type playerTickMsg struct{}

// =============================================================================
// PLAYER & FEEDBACK
// =============================================================================

// PlayerMsg reports the result of a player action.
type PlayerMsg struct {
	Key     string // citation key now playing, "" when stopped
	Title   string
	Err     error
	Stopped bool
}

// NoticeMsg shows a transient line in the status bar.
type NoticeMsg struct {
	Text    string
	Success bool
}

// clearNoticeMsg removes a notice if it is still the one shown.
type clearNoticeMsg struct {
	ID int
}
