// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

const (
	// ClickPath receives citation clicks.
	ClickPath = "/api/citation/click"

	// FeedbackPath receives answer feedback.
	FeedbackPath = "/api/feedback"

	// trackTimeout bounds each analytics post.
	trackTimeout = 10 * time.Second
)

// FeedbackType is the thumbs up/down choice.
type FeedbackType string

const (
	FeedbackPositive FeedbackType = "positive"
	FeedbackNegative FeedbackType = "negative"
)

// Rating is the numeric rating sent with the feedback type.
func (f FeedbackType) Rating() int {
	if f == FeedbackPositive {
		return 5
	}
	return 1
}

// ThankYou is the confirmation shown after feedback.
func (f FeedbackType) ThankYou() string {
	if f == FeedbackPositive {
		return "✅ Thank you! Glad we could help."
	}
	return "✅ Thank you for your feedback. We'll work to improve."
}

type clickPayload struct {
	QALogID   any      `json:"qa_log_id"`
	EpisodeID int64    `json:"episode_id"`
	Timestamp *float64 `json:"timestamp,omitempty"`
}

type feedbackPayload struct {
	QALogID      any          `json:"qa_log_id"`
	FeedbackType FeedbackType `json:"feedback_type"`
	Rating       int          `json:"rating"`
}

// Tracker posts analytics events in the background. Failures are logged
// and never returned.
type Tracker struct {
	baseURL string
	http    transport.Doer
	limiter *rate.Limiter
	logger  *slog.Logger

	mu       sync.Mutex
	feedback map[model.ID]FeedbackType
	wg       sync.WaitGroup
}

// NewTracker creates a tracker posting to baseURL. Events beyond five per
// second are dropped.
func NewTracker(baseURL string) *Tracker {
	return &Tracker{
		baseURL:  baseURL,
		http:     transport.HTTPClient(),
		limiter:  rate.NewLimiter(rate.Limit(5), 5),
		logger:   slog.Default(),
		feedback: make(map[model.ID]FeedbackType),
	}
}

// WithHTTPClient overrides the HTTP client.
func (t *Tracker) WithHTTPClient(d transport.Doer) *Tracker {
	t.http = d
	return t
}

// WithLimiter overrides the event rate limiter.
func (t *Tracker) WithLimiter(l *rate.Limiter) *Tracker {
	t.limiter = l
	return t
}

// WithLogger sets the logger.
func (t *Tracker) WithLogger(l *slog.Logger) *Tracker {
	t.logger = l
	return t
}

// Click reports a citation click. Without a qa_log_id it does nothing.
func (t *Tracker) Click(qaLogID model.ID, r Resolved) {
	if qaLogID.IsZero() {
		return
	}
	episode, _ := r.Citation.EpisodeID.Int()
	payload := clickPayload{QALogID: wireID(qaLogID), EpisodeID: episode}
	if r.Start > 0 || r.Citation.TimestampStartSeconds != nil || r.Citation.TimestampStart != "" {
		ts := r.Start
		payload.Timestamp = &ts
	}
	t.post(ClickPath, payload)
}

// Feedback reports thumbs up/down for an answer. It returns the thank-you
// text and whether the event was accepted: a missing qa_log_id or a second
// submission for the same answer is a no-op.
func (t *Tracker) Feedback(qaLogID model.ID, kind FeedbackType) (string, bool) {
	if qaLogID.IsZero() {
		return "", false
	}
	t.mu.Lock()
	if _, done := t.feedback[qaLogID]; done {
		t.mu.Unlock()
		return "", false
	}
	t.feedback[qaLogID] = kind
	t.mu.Unlock()

	t.post(FeedbackPath, feedbackPayload{
		QALogID:      wireID(qaLogID),
		FeedbackType: kind,
		Rating:       kind.Rating(),
	})
	return kind.ThankYou(), true
}

// Wait blocks until in-flight events finish.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

func (t *Tracker) post(path string, payload any) {
	if !t.limiter.Allow() {
		t.logger.Debug("analytics event dropped by rate limit", "path", path)
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), trackTimeout)
		defer cancel()

		req, err := transport.NewJSONRequest(ctx, transport.JoinURL(t.baseURL, path), payload)
		if err != nil {
			t.logger.Debug("analytics request build failed", "path", path, "error", err)
			return
		}
		if err := transport.DoJSON(t.http, "analytics", req, nil); err != nil {
			t.logger.Debug("analytics event failed", "path", path, "error", err)
		}
	}()
}

// wireID sends numeric ids as JSON numbers, matching what the answer
// service issued, and anything else as a string.
func wireID(id model.ID) any {
	if n, ok := id.Int(); ok && model.ID(formatInt(n)) == id {
		return n
	}
	return id.String()
}
