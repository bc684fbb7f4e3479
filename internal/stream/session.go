// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
)

// =============================================================================
// STATE
// =============================================================================

// State is the lifecycle position of a Session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateStreaming
	StateComplete
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// =============================================================================
// SESSION
// =============================================================================

// Session is the single source of truth for one submitted question. The
// answer text only grows while streaming; citations and follow-ups are
// replaced wholesale by each frame that carries them.
type Session struct {
	ID         string
	Generation uint64
	Question   string
	StartedAt  time.Time

	mu         sync.RWMutex
	state      State
	answer     strings.Builder
	citations  []model.Citation
	followUps  []string
	status     string
	qaLogID    model.ID
	latency    time.Duration
	cached     bool
	sawChunk   bool
	sawDone    bool
	path       model.Path
	err        error
	onComplete []func(model.Answer)

	tracker *Tracker
}

// NewSession creates a detached session, one that is always current.
func NewSession(question string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Question:  question,
		StartedAt: time.Now(),
		path:      model.PathStream,
	}
}

// Current reports whether this session is still the authoritative one.
func (s *Session) Current() bool {
	if s.tracker == nil {
		return true
	}
	return s.tracker.Generation() == s.Generation
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Answer returns the accumulated answer text.
func (s *Session) Answer() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.answer.String()
}

// Citations returns the latest citation list.
func (s *Session) Citations() []model.Citation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.Citation(nil), s.citations...)
}

// FollowUps returns the latest follow-up questions.
func (s *Session) FollowUps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.followUps...)
}

// Status returns the most recent status message.
func (s *Session) Status() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// QALogID returns the terminal session id, empty until a done frame arrives.
func (s *Session) QALogID() model.ID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.qaLogID
}

// HasAnswer reports whether any answer text or a done frame was received.
func (s *Session) HasAnswer() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sawChunk || s.sawDone
}

// Err returns the failure recorded by Fail.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// OnComplete registers fn to run once the session completes. Callbacks
// registered after completion run immediately.
func (s *Session) OnComplete(fn func(model.Answer)) {
	s.mu.Lock()
	if s.state != StateComplete {
		s.onComplete = append(s.onComplete, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn(s.Result())
}

// Result snapshots the session as an Answer.
func (s *Session) Result() model.Answer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Answer{
		Question:          s.Question,
		Text:              s.answer.String(),
		Citations:         append([]model.Citation(nil), s.citations...),
		FollowUpQuestions: append([]string(nil), s.followUps...),
		QALogID:           s.qaLogID,
		Cached:            s.cached,
		Latency:           s.latency,
		Path:              s.path,
		CreatedAt:         s.StartedAt,
	}
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// setState moves the session forward. Terminal states are sticky.
func (s *Session) setState(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() || s.state == st {
		return false
	}
	s.state = st
	return true
}

// Apply folds one frame into the session and reports whether the frame was
// the first chunk.
func (s *Session) Apply(f Frame) (firstChunk bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch f.Type {
	case FrameStatus:
		s.status = f.Message
	case FrameChunk:
		firstChunk = !s.sawChunk
		s.sawChunk = true
		s.answer.WriteString(f.Text)
	case FrameCitations:
		s.citations = append([]model.Citation(nil), f.Citations...)
	case FrameFollowUp:
		s.followUps = append([]string(nil), f.Questions...)
	case FrameDone:
		s.sawDone = true
		s.qaLogID = f.QALogID
		s.cached = f.Cached
		s.latency = time.Duration(f.LatencyMS * float64(time.Millisecond))
	}
	return firstChunk
}

// Fill replaces the session content with a non-streamed answer.
func (s *Session) Fill(resp model.AskResponse, path model.Path) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer.Reset()
	s.answer.WriteString(resp.Answer)
	s.citations = append([]model.Citation(nil), resp.Citations...)
	s.followUps = append([]string(nil), resp.FollowUpQuestions...)
	s.qaLogID = resp.QALogID
	s.sawChunk = resp.Answer != ""
	s.path = path
	s.latency = time.Since(s.StartedAt)
}

// Retry drops anything a failed stream managed to deliver and puts a failed
// session back into requesting so a fallback path can complete it.
func (s *Session) Retry() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answer.Reset()
	s.citations = nil
	s.followUps = nil
	s.qaLogID = ""
	s.sawChunk = false
	s.sawDone = false
	if s.state == StateFailed {
		s.state = StateRequesting
	}
	s.err = nil
}

// Complete marks the session complete and fires completion callbacks. It
// reports false when the session was already terminal.
func (s *Session) Complete() bool {
	if !s.setState(StateComplete) {
		return false
	}
	s.mu.Lock()
	if s.latency == 0 {
		s.latency = time.Since(s.StartedAt)
	}
	callbacks := s.onComplete
	s.onComplete = nil
	s.mu.Unlock()

	result := s.Result()
	for _, fn := range callbacks {
		fn(result)
	}
	return true
}

// Fail marks the session failed. It reports false when the session was
// already terminal.
func (s *Session) Fail(err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = StateFailed
	s.err = err
	return true
}

// =============================================================================
// TRACKER
// =============================================================================

// Tracker hands out sessions under a monotonically increasing generation.
// Only the most recently begun session is current.
type Tracker struct {
	mu      sync.Mutex
	gen     uint64
	current *Session
	cancel  context.CancelFunc
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Generation returns the generation of the current session.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// Current returns the current session or nil.
func (t *Tracker) Current() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Begin invalidates the previous session, cancelling its context, and
// returns a new current idle session together with a context that is
// cancelled when the session is superseded.
func (t *Tracker) Begin(parent context.Context, question string) (*Session, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
	}
	t.gen++
	s := NewSession(question)
	s.Generation = t.gen
	s.tracker = t
	t.current = s
	t.cancel = cancel
	t.mu.Unlock()

	return s, ctx
}

// Clear invalidates the current session without starting a new one, as
// when the input is cleared.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.gen++
	t.current = nil
}
