// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler receives session updates as frames are applied. Every callback
// is optional and runs on the consuming goroutine. Currency is checked
// immediately before each callback, so a superseded session gets no
// further callbacks; one already running may finish while a newer session
// begins, and receivers that render must still compare generations.
type Handler struct {
	OnState     func(s *Session, st State)
	OnStatus    func(s *Session, message string, episodeHint bool)
	OnChunk     func(s *Session, delta string, first bool)
	OnCitations func(s *Session)
	OnFollowUp  func(s *Session)
	OnDone      func(s *Session)
}

func (h Handler) state(s *Session, st State) {
	if h.OnState != nil && s.Current() {
		h.OnState(s, st)
	}
}

// Transition moves s to st and notifies the handler if the state changed.
func (h Handler) Transition(s *Session, st State) {
	if s.setState(st) {
		h.state(s, st)
	}
}

// Complete completes s and notifies the handler.
func (h Handler) Complete(s *Session) {
	if s.Complete() {
		h.state(s, StateComplete)
	}
}

// Fail fails s with err and notifies the handler.
func (h Handler) Fail(s *Session, err error) {
	if s.Fail(err) {
		h.state(s, StateFailed)
	}
}

// Retry returns a failed s to requesting and notifies the handler.
func (h Handler) Retry(s *Session) {
	s.Retry()
	h.state(s, StateRequesting)
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrStale is returned by Consume when the session was superseded while
// its stream was still being read.
var ErrStale = errors.New("session superseded")

// ErrEmptyStream is returned when the body ended without a chunk or done
// frame, which is treated as a transport failure.
var ErrEmptyStream = errors.New("stream ended without an answer")

// StreamError wraps a failure that happened after some frames were applied.
type StreamError struct {
	Partial string // Answer text received before the error
	Err     error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	if e.Partial != "" {
		return fmt.Sprintf("stream error (partial answer received: %d chars): %v", len(e.Partial), e.Err)
	}
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// =============================================================================
// CONSUMER
// =============================================================================

// Consumer applies a frame stream to a session.
type Consumer struct {
	Handler Handler
	Logger  *slog.Logger
}

// Consume reads body to the end, applying each data line to s. The session
// enters streaming on the first byte and complete when the body ends.
// Malformed frames are logged and skipped. A read error, a cancelled
// context or an empty stream returns an error and leaves the session
// unsettled, so the caller can choose between Fail and a fallback.
func (c *Consumer) Consume(ctx context.Context, body io.Reader, s *Session) error {
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	h := c.Handler
	reader := NewLineReader(body)
	reader.OnStart(func() {
		if st := s.State(); st == StateIdle || st == StateRequesting {
			h.Transition(s, StateStreaming)
		}
	})

	for {
		select {
		case <-ctx.Done():
			if !s.Current() {
				return ErrStale
			}
			return &StreamError{Partial: s.Answer(), Err: ctx.Err()}
		default:
		}

		line, err := reader.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if !s.Current() {
				return ErrStale
			}
			return &StreamError{Partial: s.Answer(), Err: err}
		}

		if !s.Current() {
			return ErrStale
		}

		frame, err := ParseFrame(line)
		if err != nil {
			if !errors.Is(err, ErrNotData) {
				log.Debug("dropping malformed frame", "session", s.ID, "error", err)
			}
			continue
		}

		c.dispatch(s, frame)
	}

	if !s.Current() {
		return ErrStale
	}
	if !s.HasAnswer() {
		return ErrEmptyStream
	}
	h.Complete(s)
	return nil
}

func (c *Consumer) dispatch(s *Session, f Frame) {
	h := c.Handler
	first := s.Apply(f)
	if !s.Current() {
		return
	}

	switch f.Type {
	case FrameStatus:
		if h.OnStatus != nil {
			h.OnStatus(s, f.Message, f.EpisodeHint())
		}
	case FrameChunk:
		if h.OnChunk != nil {
			h.OnChunk(s, f.Text, first)
		}
	case FrameCitations:
		if h.OnCitations != nil {
			h.OnCitations(s)
		}
	case FrameFollowUp:
		if h.OnFollowUp != nil {
			h.OnFollowUp(s)
		}
	case FrameDone:
		if h.OnDone != nil {
			h.OnDone(s)
		}
	}
}
