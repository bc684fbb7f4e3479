// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobi-mt/ask-mirror-talk/internal/format"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// =============================================================================
// HELPERS
// =============================================================================

func sse(frames ...string) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("data: ")
		b.WriteString(f)
		b.WriteString("\n\n")
	}
	return b.String()
}

// chunkedReader hands out the input in fixed-size reads so lines and
// multi-byte runes get split across reads.
type chunkedReader struct {
	data []byte
	size int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

var helloStream = sse(
	`{"type":"status","message":"Searching 3 episodes"}`,
	`{"type":"chunk","text":"Hello "}`,
	`{"type":"chunk","text":"world."}`,
	`{"type":"citations","citations":[]}`,
	`{"type":"done","qa_log_id":"x","latency_ms":1234,"cached":true}`,
)

// =============================================================================
// FRAME TESTS
// =============================================================================

func TestParseFrame(t *testing.T) {
	f, err := ParseFrame([]byte(`data: {"type":"chunk","text":"hi"}` + "\r\n"))
	require.NoError(t, err)
	assert.Equal(t, FrameChunk, f.Type)
	assert.Equal(t, "hi", f.Text)

	f, err = ParseFrame([]byte(`data:{"type":"done","qa_log_id":17}`))
	require.NoError(t, err)
	assert.Equal(t, model.ID("17"), f.QALogID)

	_, err = ParseFrame([]byte(": keep-alive"))
	assert.ErrorIs(t, err, ErrNotData)

	_, err = ParseFrame([]byte(`data: {"type":"chunk","text":`))
	assert.Error(t, err)

	_, err = ParseFrame([]byte(`data: {"type":"mystery"}`))
	assert.ErrorIs(t, err, ErrUnknownFrame)
}

func TestFrame_EpisodeHint(t *testing.T) {
	assert.True(t, Frame{Type: FrameStatus, Message: "Scanning 12 Episodes"}.EpisodeHint())
	assert.False(t, Frame{Type: FrameStatus, Message: "Thinking"}.EpisodeHint())
	assert.False(t, Frame{Type: FrameChunk, Message: "episode"}.EpisodeHint())
}

// =============================================================================
// LINE READER TESTS
// =============================================================================

func TestLineReader_CarryOver(t *testing.T) {
	input := "data: {\"type\":\"chunk\",\"text\":\"héllo ✓\"}\ndata: tail"
	for _, size := range []int{1, 2, 3, 7, 64} {
		t.Run(fmt.Sprintf("read_size_%d", size), func(t *testing.T) {
			lr := NewLineReader(&chunkedReader{data: []byte(input), size: size})
			var lines []string
			for {
				line, err := lr.ReadLine()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				lines = append(lines, string(line))
			}
			require.Len(t, lines, 2)
			assert.Equal(t, "data: {\"type\":\"chunk\",\"text\":\"héllo ✓\"}\n", lines[0])
			assert.Equal(t, "data: tail", lines[1])
			assert.True(t, lr.Started())
		})
	}
}

func TestLineReader_NotStartedOnEmptyBody(t *testing.T) {
	lr := NewLineReader(strings.NewReader(""))
	_, err := lr.ReadLine()
	assert.Equal(t, io.EOF, err)
	assert.False(t, lr.Started())
}

// =============================================================================
// CONSUMER TESTS
// =============================================================================

func TestConsume_HelloWorld(t *testing.T) {
	tracker := NewTracker()
	s, ctx := tracker.Begin(context.Background(), "What does grief mean?")

	var states []State
	var firstChunks int
	var completed model.Answer
	s.OnComplete(func(a model.Answer) { completed = a })

	c := &Consumer{Handler: Handler{
		OnState: func(_ *Session, st State) { states = append(states, st) },
		OnChunk: func(_ *Session, _ string, first bool) {
			if first {
				firstChunks++
			}
		},
	}}

	err := c.Consume(ctx, iotest.OneByteReader(strings.NewReader(helloStream)), s)
	require.NoError(t, err)

	assert.Equal(t, StateComplete, s.State())
	assert.Equal(t, []State{StateStreaming, StateComplete}, states)
	assert.Equal(t, 1, firstChunks)
	assert.Equal(t, format.Format("Hello world."), format.Format(s.Answer()))
	assert.Equal(t, model.ID("x"), s.QALogID())
	assert.Equal(t, "Searching 3 episodes", s.Status())

	assert.Equal(t, "Hello world.", completed.Text)
	assert.Equal(t, model.ID("x"), completed.QALogID)
	assert.True(t, completed.Cached)
	assert.Equal(t, model.PathStream, completed.Path)
}

func TestConsume_TransportEndIsAuthoritative(t *testing.T) {
	// Frames after done still apply; completion waits for the body to end.
	body := sse(
		`{"type":"chunk","text":"a"}`,
		`{"type":"done","qa_log_id":"1"}`,
		`{"type":"follow_up","questions":["late?"]}`,
	)
	s := NewSession("q")
	s.state = StateRequesting
	require.NoError(t, (&Consumer{}).Consume(context.Background(), strings.NewReader(body), s))
	assert.Equal(t, []string{"late?"}, s.FollowUps())
	assert.Equal(t, StateComplete, s.State())
}

func TestConsume_NoDoneFrame(t *testing.T) {
	s := NewSession("q")
	s.state = StateRequesting
	require.NoError(t, (&Consumer{}).Consume(context.Background(), strings.NewReader(sse(`{"type":"chunk","text":"a"}`)), s))
	assert.Equal(t, StateComplete, s.State())
	assert.True(t, s.QALogID().IsZero())
}

func TestConsume_MalformedFrameDropped(t *testing.T) {
	body := sse(
		`{"type":"chunk","text":"one "}`,
		`{"type":"chunk","text":`,
		`not json at all`,
		`{"type":"chunk","text":"two"}`,
	)
	s := NewSession("q")
	s.state = StateRequesting
	require.NoError(t, (&Consumer{}).Consume(context.Background(), strings.NewReader(body), s))
	assert.Equal(t, "one two", s.Answer())
}

func TestConsume_CitationsAndFollowUpsReplace(t *testing.T) {
	body := sse(
		`{"type":"chunk","text":"x"}`,
		`{"type":"citations","citations":[{"episode_id":1},{"episode_id":2}]}`,
		`{"type":"follow_up","questions":["a","b"]}`,
		`{"type":"citations","citations":[{"episode_id":3}]}`,
		`{"type":"follow_up","questions":["c"]}`,
	)
	var citationEvents int
	s := NewSession("q")
	s.state = StateRequesting
	c := &Consumer{Handler: Handler{OnCitations: func(*Session) { citationEvents++ }}}
	require.NoError(t, c.Consume(context.Background(), strings.NewReader(body), s))

	require.Len(t, s.Citations(), 1)
	assert.Equal(t, model.ID("3"), s.Citations()[0].EpisodeID)
	assert.Equal(t, []string{"c"}, s.FollowUps())
	assert.Equal(t, 2, citationEvents)
}

func TestConsume_EmptyStream(t *testing.T) {
	s := NewSession("q")
	s.state = StateRequesting
	err := (&Consumer{}).Consume(context.Background(), strings.NewReader(": ping\n\n"), s)
	assert.ErrorIs(t, err, ErrEmptyStream)
	assert.Equal(t, StateStreaming, s.State())
}

func TestConsume_MetadataOnlyStreamIsEmpty(t *testing.T) {
	body := sse(
		`{"type":"status","message":"Searching episodes…"}`,
		`{"type":"citations","citations":[{"episode_id":3,"episode_title":"On Rest"}]}`,
		`{"type":"follow_up","questions":["What is rest?"]}`,
	)
	s := NewSession("q")
	s.state = StateRequesting
	err := (&Consumer{}).Consume(context.Background(), strings.NewReader(body), s)

	assert.ErrorIs(t, err, ErrEmptyStream)
	assert.Len(t, s.Citations(), 1)
	assert.Equal(t, []string{"What is rest?"}, s.FollowUps())
	assert.False(t, s.State().Terminal(), "left for the fallback to settle")
}

func TestConsume_StreamingOnFirstByte(t *testing.T) {
	pr, pw := io.Pipe()
	s := NewSession("q")
	s.state = StateRequesting

	done := make(chan error, 1)
	go func() { done <- (&Consumer{}).Consume(context.Background(), pr, s) }()

	_, err := pw.Write([]byte(`data: {"type":"chunk",`))
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return s.State() == StateStreaming },
		time.Second, 5*time.Millisecond, "streaming before the first line completes")

	go func() {
		pw.Write([]byte(`"text":"hi"}` + "\n\n"))
		pw.Close()
	}()
	require.NoError(t, <-done)
	assert.Equal(t, "hi", s.Answer())
	assert.Equal(t, StateComplete, s.State())
}

func TestDispatch_SkipsSupersededSession(t *testing.T) {
	tracker := NewTracker()
	old, _ := tracker.Begin(context.Background(), "first question")

	var calls int
	c := &Consumer{Handler: Handler{
		OnStatus: func(*Session, string, bool) { calls++ },
		OnChunk:  func(*Session, string, bool) { calls++ },
	}}
	c.dispatch(old, Frame{Type: FrameStatus, Message: "Searching…"})
	assert.Equal(t, 1, calls)

	tracker.Begin(context.Background(), "second question")
	c.dispatch(old, Frame{Type: FrameChunk, Text: "late"})
	assert.Equal(t, 1, calls)
}

func TestConsume_ReadErrorKeepsPartial(t *testing.T) {
	r := io.MultiReader(strings.NewReader(sse(`{"type":"chunk","text":"part"}`)), iotest.ErrReader(errors.New("connection reset")))
	s := NewSession("q")
	s.state = StateRequesting
	err := (&Consumer{}).Consume(context.Background(), r, s)

	var se *StreamError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "part", se.Partial)
	assert.False(t, s.State().Terminal())
}

func TestConsume_StaleSessionStops(t *testing.T) {
	tracker := NewTracker()
	old, oldCtx := tracker.Begin(context.Background(), "first question")

	pr, pw := io.Pipe()
	var chunks []string
	var mu sync.Mutex
	c := &Consumer{Handler: Handler{OnChunk: func(s *Session, delta string, _ bool) {
		mu.Lock()
		chunks = append(chunks, delta)
		mu.Unlock()
	}}}

	done := make(chan error, 1)
	go func() { done <- c.Consume(oldCtx, pr, old) }()

	pw.Write([]byte(sse(`{"type":"chunk","text":"old-1"}`)))
	current, _ := tracker.Begin(context.Background(), "second question")
	go func() {
		pw.Write([]byte(sse(`{"type":"chunk","text":"old-2"}`)))
		pw.Close()
	}()

	err := <-done
	pr.Close()
	assert.ErrorIs(t, err, ErrStale)
	assert.False(t, old.Current())
	assert.True(t, current.Current())
	assert.Equal(t, uint64(2), current.Generation)

	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, chunks, "old-2")
}

// =============================================================================
// SESSION AND TRACKER TESTS
// =============================================================================

func TestSession_TerminalStatesAreSticky(t *testing.T) {
	s := NewSession("q")
	assert.True(t, s.Complete())
	assert.False(t, s.Fail(errors.New("late")))
	assert.Equal(t, StateComplete, s.State())
	assert.NoError(t, s.Err())
}

func TestSession_RetryAfterFailure(t *testing.T) {
	s := NewSession("q")
	s.state = StateStreaming
	s.Apply(Frame{Type: FrameChunk, Text: "partial"})
	require.True(t, s.Fail(errors.New("reset")))

	s.Retry()
	assert.Equal(t, StateRequesting, s.State())
	assert.Equal(t, "", s.Answer())

	s.Fill(model.AskResponse{Answer: "full answer", FollowUpQuestions: []string{"f"}}, model.PathGateway)
	require.True(t, s.Complete())
	res := s.Result()
	assert.Equal(t, "full answer", res.Text)
	assert.Equal(t, model.PathGateway, res.Path)
}

func TestSession_OnCompleteAfterCompletion(t *testing.T) {
	s := NewSession("q")
	s.Apply(Frame{Type: FrameDone, QALogID: "9"})
	s.Complete()

	var got model.ID
	s.OnComplete(func(a model.Answer) { got = a.QALogID })
	assert.Equal(t, model.ID("9"), got)
}

func TestTracker_BeginCancelsPrevious(t *testing.T) {
	tracker := NewTracker()
	first, firstCtx := tracker.Begin(context.Background(), "a")
	second, secondCtx := tracker.Begin(context.Background(), "b")

	assert.Error(t, firstCtx.Err())
	assert.NoError(t, secondCtx.Err())
	assert.False(t, first.Current())
	assert.Same(t, second, tracker.Current())

	tracker.Clear()
	assert.Error(t, secondCtx.Err())
	assert.False(t, second.Current())
	assert.Nil(t, tracker.Current())
}

// =============================================================================
// CLIENT TESTS
// =============================================================================

func TestClient_Open(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != StreamPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(helloStream))
	}))
	defer server.Close()

	body, err := NewClient(server.URL).WithHTTPClient(server.Client()).Open(context.Background(), "hello?")
	require.NoError(t, err)
	defer body.Close()

	s := NewSession("hello?")
	s.state = StateRequesting
	require.NoError(t, (&Consumer{}).Consume(context.Background(), body, s))
	assert.Equal(t, "Hello world.", s.Answer())
}

func TestClient_OpenNonOK(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"detail":"warming up"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).WithHTTPClient(server.Client()).Open(context.Background(), "q")
	var e *transport.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, transport.KindServer, e.Kind)
	assert.Equal(t, "warming up", e.Message)
}
