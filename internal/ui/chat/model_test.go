// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
	"github.com/tobi-mt/ask-mirror-talk/internal/ui/styles"
)

// =============================================================================
// HELPERS
// =============================================================================

type bodyOpener string

func (b bodyOpener) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(string(b))), nil
}

const streamBody = `data: {"type":"status","message":"Searching episodes…"}

data: {"type":"chunk","text":"Slow down. "}

data: {"type":"chunk","text":"Breathe."}

data: {"type":"citations","citations":[{"episode_id":12,"episode_title":"On Stillness","timestamp_start":"2:05","audio_url":"https://cdn.example/12.mp3"}]}

data: {"type":"follow_up","questions":["How do I start a morning practice?"]}

data: {"type":"done","qa_log_id":77}

`

func newTestModel(t *testing.T, asker *answer.Asker, tracker *citation.Tracker) Model {
	t.Helper()
	if asker == nil {
		asker = answer.NewAsker(nil, nil)
	}
	m := New(context.Background(), styles.NewTheme(true), Deps{
		Asker:         asker,
		Tracker:       tracker,
		Buffer:        NewAnswerBufferWithConfig(1, 30),
		MarkdownStyle: "notty",
	})
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

// =============================================================================
// MODEL TESTS
// =============================================================================

func TestModel_SubmitRejectsShortQuestion(t *testing.T) {
	m := newTestModel(t, nil, nil)

	m, cmd := m.submit("hi")
	assert.Nil(t, cmd)
	assert.Equal(t, answer.MsgShortQuestion, m.Error())
	assert.Equal(t, stream.StateIdle, m.State())
	assert.Zero(t, m.asker.Tracker().Generation(), "no session begun")
}

func TestModel_SubmitStartsSession(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.input.SetValue("How do I slow down?")

	next, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	assert.NotNil(t, cmd)
	assert.Equal(t, stream.StateRequesting, m.State())
	assert.Equal(t, "How do I slow down?", m.Question())
	assert.Equal(t, uint64(1), m.Generation())
	assert.Empty(t, m.input.Value())
	assert.Contains(t, m.View(), answer.LoadingMessage(0))
}

func TestModel_DropsStaleGenerations(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m, _ = m.submit("How do I slow down?")

	m = update(t, m, StatusMsg{Generation: 0, Message: "old"})
	assert.Empty(t, m.status)

	m = update(t, m, StatusMsg{Generation: 1, Message: "Searching episodes…", Hint: true})
	assert.Equal(t, "Searching episodes…", m.status)
	assert.True(t, m.hint)

	m = m.clear()
	assert.Equal(t, stream.StateIdle, m.State())
	assert.Empty(t, m.Question())

	m = update(t, m, CitationsMsg{Generation: 1, Citations: []citation.Resolved{{Title: "late"}}})
	m = update(t, m, DoneMsg{Generation: 1, Answer: model.Answer{Text: "late"}})
	assert.Empty(t, m.Citations())
	assert.Empty(t, m.Answer())
	assert.Equal(t, stream.StateIdle, m.State())
}

func TestModel_DoneSuperseded(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m, _ = m.submit("How do I slow down?")

	m = update(t, m, DoneMsg{Generation: 1, Err: answer.ErrSuperseded})
	assert.Equal(t, stream.StateRequesting, m.State())
	assert.Empty(t, m.Error())
}

func TestModel_DoneError(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m, _ = m.submit("How do I slow down?")

	m = update(t, m, DoneMsg{Generation: 1, Err: errors.New("boom")})
	assert.Equal(t, stream.StateFailed, m.State())
	assert.Equal(t, answer.MsgGeneric, m.Error())
	assert.Contains(t, m.View(), answer.MsgGeneric)
}

func TestModel_LoadingRotation(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m, _ = m.submit("How do I slow down?")

	m = update(t, m, loadingTickMsg{Generation: 1, Tick: 2})
	assert.Contains(t, m.View(), answer.LoadingMessage(2))

	m = update(t, m, StateMsg{Generation: 1, State: stream.StateStreaming})
	m = update(t, m, loadingTickMsg{Generation: 1, Tick: 3})
	assert.Equal(t, 2, m.loadingTick, "rotation stops once streaming")
}

func TestModel_FrameFlushShowsPartialAnswer(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m, _ = m.submit("How do I slow down?")
	m = update(t, m, StateMsg{Generation: 1, State: stream.StateStreaming})

	m.buffer.Write(1, "Slow down.")
	m = update(t, m, frameTickMsg{})
	assert.Equal(t, "Slow down.", m.Answer())
}

func TestModel_StreamedSession(t *testing.T) {
	var mu sync.Mutex
	var msgs []tea.Msg
	send := func(msg tea.Msg) {
		mu.Lock()
		defer mu.Unlock()
		msgs = append(msgs, msg)
	}

	asker := answer.NewAsker(bodyOpener(streamBody), nil)
	m := newTestModel(t, asker, nil)
	asker.WithHandler(Handler(send, m.buffer, m.renderer))

	m, _ = m.submit("How do I slow down?")
	s, err := asker.Submit(context.Background(), "How do I slow down?")
	require.NoError(t, err)

	for _, msg := range msgs {
		m = update(t, m, msg)
	}
	m = update(t, m, DoneMsg{Generation: s.Generation, Answer: s.Result()})

	assert.Equal(t, stream.StateComplete, m.State())
	assert.Equal(t, "Slow down. Breathe.", m.Answer())
	require.Len(t, m.Citations(), 1)
	assert.Equal(t, "On Stillness", m.Citations()[0].Title)
	assert.Equal(t, []string{"How do I start a morning practice?"}, m.FollowUps())
	assert.Equal(t, model.ID("77"), m.qaLogID)

	view := m.View()
	assert.Contains(t, view, "Breathe.")
	assert.Contains(t, view, "On Stillness")
	assert.Contains(t, view, "How do I start a morning practice?")
}

func TestModel_FocusCycleSkipsEmptyPanes(t *testing.T) {
	m := newTestModel(t, nil, nil)

	m.cycleFocus(1)
	assert.Equal(t, FocusInput, m.Focus())

	m.followUps = []string{"What next?"}
	m.cycleFocus(1)
	assert.Equal(t, FocusFollowUps, m.Focus())
	m.cycleFocus(1)
	assert.Equal(t, FocusInput, m.Focus())
}

func TestModel_FollowUpSubmits(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.followUps = []string{"How do I forgive?", "What is stillness?"}
	m.setFocus(FocusFollowUps)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	next, cmd := m.handleKey(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	assert.NotNil(t, cmd)
	assert.Equal(t, "What is stillness?", m.Question())
	assert.Equal(t, FocusInput, m.Focus())
}

func TestModel_FeedbackOnce(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tracker := citation.NewTracker(srv.URL)
	m := newTestModel(t, nil, tracker)

	next, _ := m.feedback(citation.FeedbackPositive)
	m = next.(Model)
	assert.False(t, m.rated, "no qa_log_id yet")

	m.qaLogID = "77"
	next, _ = m.feedback(citation.FeedbackPositive)
	m = next.(Model)
	assert.Equal(t, citation.FeedbackPositive.ThankYou(), m.Notice())
	assert.True(t, m.rated)

	next, _ = m.feedback(citation.FeedbackNegative)
	m = next.(Model)
	assert.Equal(t, "You already rated this answer.", m.Notice())

	tracker.Wait()
	assert.Equal(t, int64(1), hits.Load())
}

func TestModel_PlayWithoutPlayerShowsLink(t *testing.T) {
	m := newTestModel(t, nil, nil)
	r := citation.Resolve(model.Citation{EpisodeID: "12", EpisodeTitle: "On Stillness", EpisodeURL: "https://mirrortalk.example/ep/12"})
	m.citations = []citation.Resolved{r}
	m.setFocus(FocusSources)

	next, _ := m.handleKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	m = next.(Model)
	assert.Equal(t, "Open: "+r.PlayURL, m.Notice())
}

func TestModel_ClearNoticeOnlyLatest(t *testing.T) {
	m := newTestModel(t, nil, nil)
	m.showNotice("first", true)
	m.showNotice("second", true)

	m = update(t, m, clearNoticeMsg{ID: 1})
	assert.Equal(t, "second", m.Notice())
	m = update(t, m, clearNoticeMsg{ID: 2})
	assert.Empty(t, m.Notice())
}
