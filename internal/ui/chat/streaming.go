// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// ANSWER BUFFER
// =============================================================================

// AnswerBuffer batches answer updates between frames. The stream goroutine
// writes a snapshot of the session's answer after every chunk; the Bubble
// Tea loop takes the latest snapshot at most once per frame, or as soon as
// batchSize chunks have arrived.
//
// Snapshots are whole texts rather than deltas, so a fallback that
// replaces a partial answer needs no special handling.
type AnswerBuffer struct {
	mu         sync.Mutex
	generation uint64
	text       string
	pending    int
	lastFlush  time.Time

	batchSize  int
	minFlushMs time.Duration
}

// NewAnswerBuffer creates a buffer flushing at 30fps or every 15 chunks.
func NewAnswerBuffer() *AnswerBuffer {
	return NewAnswerBufferWithConfig(15, 30)
}

// NewAnswerBufferWithConfig creates a buffer with custom thresholds.
func NewAnswerBufferWithConfig(batchSize, maxFPS int) *AnswerBuffer {
	if batchSize <= 0 {
		batchSize = 15
	}
	if maxFPS <= 0 || maxFPS > 60 {
		maxFPS = 30
	}
	return &AnswerBuffer{
		batchSize:  batchSize,
		minFlushMs: time.Duration(1000/maxFPS) * time.Millisecond,
		lastFlush:  time.Now(),
	}
}

// Write records the answer so far for a session generation. A snapshot
// from an older generation than the one buffered is ignored.
func (b *AnswerBuffer) Write(generation uint64, text string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if generation < b.generation {
		return
	}
	if generation > b.generation {
		b.pending = 0
	}
	b.generation = generation
	b.text = text
	b.pending++
}

// Flush returns the latest snapshot when a frame is due.
func (b *AnswerBuffer) Flush() (generation uint64, text string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == 0 {
		return 0, "", false
	}
	if b.pending < b.batchSize && time.Since(b.lastFlush) < b.minFlushMs {
		return 0, "", false
	}
	return b.flushLocked()
}

// ForceFlush returns any pending snapshot regardless of thresholds. Use it
// when the session settles so the final text is shown.
func (b *AnswerBuffer) ForceFlush() (generation uint64, text string, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pending == 0 {
		return 0, "", false
	}
	return b.flushLocked()
}

func (b *AnswerBuffer) flushLocked() (uint64, string, bool) {
	b.pending = 0
	b.lastFlush = time.Now()
	return b.generation, b.text, true
}

// Pending returns how many snapshots arrived since the last flush.
func (b *AnswerBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// Reset drops the pending snapshot and ignores generations older than gen.
func (b *AnswerBuffer) Reset(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = 0
	b.text = ""
	if gen > b.generation {
		b.generation = gen
	}
	b.lastFlush = time.Now()
}

// =============================================================================
// FRAME TICK
// =============================================================================

// frameInterval paces answer redraws while a session is in flight.
const frameInterval = 33 * time.Millisecond

func frameTickCmd() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return frameTickMsg{Time: t}
	})
}
