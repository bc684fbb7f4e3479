// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// ErrSuperseded is returned when a newer submission replaced the session.
var ErrSuperseded = stream.ErrStale

// errNoStream marks an asker built without a stream opener.
var errNoStream = errors.New("streaming disabled")

// Opener opens an answer stream.
type Opener interface {
	Open(ctx context.Context, question string) (io.ReadCloser, error)
}

// Fallback runs the non-streaming request path.
type Fallback interface {
	Ask(ctx context.Context, question string) (model.AskResponse, model.Path, error)
}

// Asker runs one question through the stream and, if needed, the fallback.
type Asker struct {
	opener   Opener
	fallback Fallback
	tracker  *stream.Tracker
	handler  stream.Handler
	logger   *slog.Logger

	completions []func(model.Answer)
}

// NewAsker wires an asker. opener may be nil to go straight to the
// fallback, and fallback may be nil to disable it.
func NewAsker(opener Opener, fallback Fallback) *Asker {
	return &Asker{
		opener:   opener,
		fallback: fallback,
		tracker:  stream.NewTracker(),
		logger:   slog.Default(),
	}
}

// WithHandler sets the session update callbacks.
func (a *Asker) WithHandler(h stream.Handler) *Asker {
	a.handler = h
	return a
}

// WithLogger sets the logger.
func (a *Asker) WithLogger(l *slog.Logger) *Asker {
	a.logger = l
	return a
}

// OnComplete registers fn for every session that completes. This is how
// collaborators such as history storage and analytics learn the qa_log_id.
func (a *Asker) OnComplete(fn func(model.Answer)) *Asker {
	a.completions = append(a.completions, fn)
	return a
}

// Tracker exposes the session tracker, e.g. for clearing on input reset.
func (a *Asker) Tracker() *stream.Tracker {
	return a.tracker
}

// Submit validates question and drives a new session to completion. It
// blocks until the session settles or is superseded. A validation error is
// returned with a nil session and no request is made.
func (a *Asker) Submit(ctx context.Context, question string) (*stream.Session, error) {
	q, err := Validate(question)
	if err != nil {
		return nil, err
	}

	s, sctx := a.tracker.Begin(ctx, q)
	for _, fn := range a.completions {
		s.OnComplete(fn)
	}
	h := a.handler
	h.Transition(s, stream.StateRequesting)

	err = a.runStream(sctx, s)
	if err == nil {
		return s, nil
	}
	if errors.Is(err, stream.ErrStale) || !s.Current() {
		return s, ErrSuperseded
	}

	if a.fallback == nil {
		h.Fail(s, err)
		return s, err
	}

	if errors.Is(err, errNoStream) {
		a.logger.Debug("streaming disabled, using fallback", "session", s.ID)
	} else {
		a.logger.Warn("answer stream failed, using fallback", "session", s.ID, "kind", transport.Classify(err).String(), "error", err)
	}
	s.Fail(err)
	h.Retry(s)

	resp, path, ferr := a.fallback.Ask(sctx, q)
	if !s.Current() {
		return s, ErrSuperseded
	}
	if ferr != nil {
		a.logger.Error("fallback failed", "session", s.ID, "kind", transport.Classify(ferr).String(), "error", ferr)
		h.Fail(s, ferr)
		return s, ferr
	}

	s.Fill(resp, path)
	if h.OnChunk != nil {
		h.OnChunk(s, resp.Answer, true)
	}
	if h.OnCitations != nil {
		h.OnCitations(s)
	}
	if h.OnFollowUp != nil && len(resp.FollowUpQuestions) > 0 {
		h.OnFollowUp(s)
	}
	h.Complete(s)
	return s, nil
}

func (a *Asker) runStream(ctx context.Context, s *stream.Session) error {
	if a.opener == nil {
		return errNoStream
	}
	body, err := a.opener.Open(ctx, s.Question)
	if err != nil {
		return err
	}
	defer body.Close()

	c := &stream.Consumer{Handler: a.handler, Logger: a.logger}
	return c.Consume(ctx, body, s)
}

// Clear invalidates the current session, as when the input is cleared.
func (a *Asker) Clear() {
	a.tracker.Clear()
}
