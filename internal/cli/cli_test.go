// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/config"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// =============================================================================
// HELPERS
// =============================================================================

const streamBody = `data: {"type":"status","message":"Searching episodes…"}

data: {"type":"chunk","text":"Slow down. "}

data: {"type":"chunk","text":"Breathe."}

data: {"type":"citations","citations":[{"episode_id":12,"episode_title":"On Stillness","timestamp_start":"2:05","audio_url":"https://cdn.example/12.mp3"}]}

data: {"type":"follow_up","questions":["How do I start a morning practice?"]}

data: {"type":"done","qa_log_id":77}

`

// fakeService answers the stream, health and analytics endpoints.
type fakeService struct {
	*httptest.Server
	streams   atomic.Int64
	feedbacks atomic.Int64
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	fs := &fakeService{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case stream.StreamPath:
			fs.streams.Add(1)
			w.Header().Set("Content-Type", "text/event-stream")
			io.WriteString(w, streamBody)
		case "/api/feedback":
			fs.feedbacks.Add(1)
			w.WriteHeader(http.StatusOK)
		case HealthPath:
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"status":"ok"}`)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	t.Cleanup(fs.Close)
	return fs
}

// newTestApp builds an App on buffers with history in a temp directory
// and the player off.
func newTestApp(t *testing.T, baseURL string) (*App, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.API.TimeoutSecs = 5
	cfg.Player.Enabled = false
	cfg.Storage.Path = filepath.Join(dir, "history.db")
	cfg.UI.NoColor = true

	var out, errOut bytes.Buffer
	app := NewApp(cfg, filepath.Join(dir, "config.toml"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	app.In = strings.NewReader("")
	app.Out = &out
	app.Err = &errOut
	return app, &out, &errOut
}

func decodeResponse(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(data, &resp))
	return resp
}

// =============================================================================
// PARSE TESTS
// =============================================================================

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		argv    []string
		want    Command
		wantErr bool
		check   func(*testing.T, Args)
	}{
		{name: "no args starts tui", argv: nil, want: CmdTUI},
		{name: "help flag", argv: []string{"--help"}, want: CmdHelp},
		{name: "version flag", argv: []string{"--version"}, want: CmdVersion},
		{
			name: "ask joins words",
			argv: []string{"ask", "What", "is", "grace?"},
			want: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "What is grace?", a.Query)
			},
		},
		{
			name: "ask json keeps question",
			argv: []string{"ask", "--json", "what", "is", "grace"},
			want: CmdAsk,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.JSON)
				assert.Equal(t, "what is grace", a.Query)
			},
		},
		{name: "ask html with json", argv: []string{"ask", "--html", "--json", "x"}, want: CmdAsk, wantErr: true},
		{
			name: "chat flags",
			argv: []string{"chat", "--no-stream", "--no-history"},
			want: CmdChat,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.NoStream)
				assert.True(t, a.NoHistory)
			},
		},
		{
			name: "history default lists",
			argv: []string{"history"},
			want: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "list", a.Subcommand)
			},
		},
		{
			name: "history search flag",
			argv: []string{"history", "--search", "grief", "--limit", "5"},
			want: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "search", a.Subcommand)
				assert.Equal(t, "grief", a.Search)
				assert.Equal(t, 5, a.Limit)
			},
		},
		{
			name: "history search words",
			argv: []string{"history", "search", "letting", "go"},
			want: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "letting go", a.Search)
			},
		},
		{
			name: "history show",
			argv: []string{"history", "show", "3f2c"},
			want: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "3f2c", a.ID)
			},
		},
		{name: "history show without id", argv: []string{"history", "show"}, want: CmdHistory, wantErr: true},
		{
			name: "history export",
			argv: []string{"history", "export", "--format", "html", "--out", "/tmp/x", "3f2c", "9a1b"},
			want: CmdHistory,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "export", a.Subcommand)
				assert.Equal(t, "html", a.Format)
				assert.Equal(t, "/tmp/x", a.OutputDir)
				assert.Equal(t, []string{"3f2c", "9a1b"}, a.IDs)
			},
		},
		{name: "history export bad format", argv: []string{"history", "export", "--format", "pdf"}, want: CmdHistory, wantErr: true},
		{name: "history unknown", argv: []string{"history", "drop"}, want: CmdHistory, wantErr: true},
		{name: "config defaults to show", argv: []string{"config"}, want: CmdConfig, check: func(t *testing.T, a Args) {
			assert.Equal(t, "show", a.Subcommand)
		}},
		{
			name: "config set",
			argv: []string{"config", "set", "ui.theme", "dark"},
			want: CmdConfig,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "ui.theme", a.ConfigKey)
				assert.Equal(t, "dark", a.ConfigVal)
			},
		},
		{name: "config set without value", argv: []string{"config", "set", "ui.theme"}, want: CmdConfig, wantErr: true},
		{
			name: "serve listen",
			argv: []string{"serve", "--listen", ":9000"},
			want: CmdServe,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, ":9000", a.Listen)
			},
		},
		{name: "doctor", argv: []string{"doctor"}, want: CmdDoctor},
		{
			name: "cache prune max age",
			argv: []string{"cache", "prune", "--max-age", "72"},
			want: CmdCache,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, "prune", a.Subcommand)
				assert.Equal(t, 72, a.MaxAgeHours)
			},
		},
		{
			name: "cache clear yes",
			argv: []string{"cache", "clear", "--yes"},
			want: CmdCache,
			check: func(t *testing.T, a Args) {
				assert.True(t, a.Yes)
			},
		},
		{name: "cache bad max age", argv: []string{"cache", "prune", "--max-age", "0"}, want: CmdCache, wantErr: true},
		{name: "cache missing subcommand", argv: []string{"cache"}, want: CmdCache, wantErr: true},
		{name: "cache unknown subcommand", argv: []string{"cache", "flush"}, want: CmdCache, wantErr: true},
		{name: "unknown command", argv: []string{"bogus"}, want: CmdHelp, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args, err := Parse(tt.argv)
			assert.Equal(t, tt.want, cmd)
			if tt.wantErr {
				var usage *UsageError
				assert.True(t, errors.As(err, &usage), "want a usage error, got %v", err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestParse_UnknownCommandSuggests(t *testing.T) {
	_, _, err := Parse([]string{"histroy"})
	var usage *UsageError
	require.True(t, errors.As(err, &usage))
	assert.Equal(t, "amt history", usage.Example)
}

func TestSuggest(t *testing.T) {
	assert.Equal(t, "doctor", SuggestCommand("doctr"))
	assert.Equal(t, "", SuggestCommand("ask"), "exact match needs no suggestion")
	assert.Equal(t, "", SuggestCommand("zzzzzz"))
	assert.Equal(t, "/play", SuggestChatCommand("/paly"))
}

// =============================================================================
// EXIT CODE TESTS
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Reason: "bad"}, ExitUsageError},
		{"config", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}, ExitConfigError},
		{"not found", storage.ErrNotFound, ExitNotFoundError},
		{"validation", transport.Validation(answer.MsgShortQuestion), ExitUsageError},
		{"auth", &transport.Error{Kind: transport.KindAuth}, ExitAuthError},
		{"network", &transport.Error{Kind: transport.KindTransport}, ExitNetworkError},
		{"aborted", transport.Wrap("stream", context.Canceled), ExitInterrupted},
		{"timeout", &transport.Error{Kind: transport.KindTimeout}, ExitTimeoutError},
		{"server", &transport.Error{Kind: transport.KindServer}, ExitServerError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExit(t *testing.T) {
	t.Run("cancelled is quiet", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Exit(&out, &errOut, CmdAsk, Args{}, context.Canceled)
		assert.Equal(t, ExitInterrupted, code)
		assert.Empty(t, out.String())
		assert.Empty(t, errOut.String())
	})

	t.Run("json errors go to stdout", func(t *testing.T) {
		var out, errOut bytes.Buffer
		err := &transport.Error{Kind: transport.KindTimeout, Op: "stream"}
		code := Exit(&out, &errOut, CmdAsk, Args{JSON: true}, err)
		assert.Equal(t, ExitTimeoutError, code)
		assert.Empty(t, errOut.String())

		resp := decodeResponse(t, out.Bytes())
		assert.Equal(t, false, resp["success"])
		assert.Equal(t, answer.MsgTimeout, resp["error"])
		assert.Equal(t, "timeout", resp["error_type"])
		assert.EqualValues(t, ExitTimeoutError, resp["exit_code"])
	})

	t.Run("usage errors point at help", func(t *testing.T) {
		var out, errOut bytes.Buffer
		code := Exit(&out, &errOut, CmdHistory, Args{}, ErrMissingArgument("answer id", "amt history show 3f2c"))
		assert.Equal(t, ExitUsageError, code)
		assert.Contains(t, errOut.String(), "missing answer id")
		assert.Contains(t, errOut.String(), "amt help")
	})
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, config.LoggingConfig{Level: "warn", Format: "json"}, false)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	logger = NewLogger(&buf, config.LoggingConfig{Level: "error", Format: "text"}, true)
	logger.Debug("verbose wins")
	assert.Contains(t, buf.String(), "verbose wins")
}

// =============================================================================
// ASK TESTS
// =============================================================================

func TestHandleAsk_Plain(t *testing.T) {
	svc := newFakeService(t)
	app, out, _ := newTestApp(t, svc.URL)
	app.Config.Storage.History = false

	err := HandleAsk(context.Background(), app, Args{Query: "How do I slow down?"})
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Slow down. Breathe.")
	assert.Contains(t, text, "Sources")
	assert.Contains(t, text, "On Stillness")
	assert.Contains(t, text, "How do I start a morning practice?")
	assert.Equal(t, int64(1), svc.streams.Load())
}

func TestHandleAsk_JSONRecordsHistory(t *testing.T) {
	svc := newFakeService(t)
	app, out, _ := newTestApp(t, svc.URL)

	err := HandleAsk(context.Background(), app, Args{Query: "How do I slow down?", JSON: true})
	require.NoError(t, err)

	var resp struct {
		Success bool    `json:"success"`
		Data    AskData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Slow down. Breathe.", resp.Data.Text)
	assert.Equal(t, model.ID("77"), resp.Data.QALogID)
	require.Len(t, resp.Data.Sources, 1)
	assert.Equal(t, "On Stillness", resp.Data.Sources[0].Title)
	assert.Equal(t, 1, resp.Data.Sources[0].Index)
	assert.NotEmpty(t, resp.Data.HistoryID)

	st, err := app.OpenStore()
	require.NoError(t, err)
	defer st.Close()
	rec, err := st.GetAnswer(context.Background(), resp.Data.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, "How do I slow down?", rec.Question)
}

func TestHandleAsk_HTML(t *testing.T) {
	svc := newFakeService(t)
	app, out, _ := newTestApp(t, svc.URL)
	app.Config.Storage.History = false

	require.NoError(t, HandleAsk(context.Background(), app, Args{Query: "How do I slow down?", HTML: true}))
	assert.Contains(t, out.String(), `<div class="amt-answer">`)
	assert.Contains(t, out.String(), "amt-follow-up")
}

func TestHandleAsk_Stdin(t *testing.T) {
	svc := newFakeService(t)
	app, out, _ := newTestApp(t, svc.URL)
	app.Config.Storage.History = false
	app.In = strings.NewReader("  What is forgiveness?\n")

	require.NoError(t, HandleAsk(context.Background(), app, Args{Query: "-"}))
	assert.Contains(t, out.String(), "Breathe.")
}

func TestHandleAsk_ShortQuestion(t *testing.T) {
	svc := newFakeService(t)
	app, out, _ := newTestApp(t, svc.URL)
	app.Config.Storage.History = false

	err := HandleAsk(context.Background(), app, Args{Query: "hi"})
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Equal(t, answer.MsgShortQuestion, answer.UserMessage(err))
	assert.Empty(t, out.String())
	assert.Zero(t, svc.streams.Load(), "invalid questions never reach the network")
}

// =============================================================================
// CHAT TESTS
// =============================================================================

func TestHandleChat_Scripted(t *testing.T) {
	svc := newFakeService(t)
	app, out, errOut := newTestApp(t, svc.URL)
	app.Config.Storage.History = false
	app.In = strings.NewReader("/up\nHow do I slow down?\n/sources\n/open 1\n/up\n/down\n/paly 1\n/quit\nnever asked\n")

	require.NoError(t, HandleChat(context.Background(), app, Args{Quiet: true}))

	text := out.String()
	assert.Contains(t, text, "Ask a question first.")
	assert.Contains(t, text, "Breathe.")
	assert.Contains(t, text, "On Stillness")
	assert.Contains(t, text, "✅ Thank you! Glad we could help.")
	assert.Contains(t, text, "Feedback already sent for this answer.")
	assert.Contains(t, errOut.String(), "/play", "unknown commands suggest the closest one")
	assert.Equal(t, int64(1), svc.streams.Load(), "input after /quit is not read")
	assert.Equal(t, int64(1), svc.feedbacks.Load())
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func seedHistory(t *testing.T, app *App) []string {
	t.Helper()
	st, err := app.OpenStore()
	require.NoError(t, err)
	defer st.Close()

	var ids []string
	for i, q := range []string{"What is forgiveness?", "How do I grieve well?"} {
		id, err := st.SaveAnswer(context.Background(), model.Answer{
			Question:  q,
			Text:      "Answer about " + q,
			Path:      model.PathStream,
			CreatedAt: time.Now().Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestHandleHistory(t *testing.T) {
	app, out, _ := newTestApp(t, "https://example.com")
	ids := seedHistory(t, app)
	ctx := context.Background()

	t.Run("list", func(t *testing.T) {
		out.Reset()
		require.NoError(t, HandleHistory(ctx, app, Args{Subcommand: "list"}))
		assert.Contains(t, out.String(), "What is forgiveness?")
		assert.Contains(t, out.String(), "How do I grieve well?")
	})

	t.Run("search json", func(t *testing.T) {
		out.Reset()
		require.NoError(t, HandleHistory(ctx, app, Args{Subcommand: "search", Search: "forgiveness", JSON: true}))
		var resp struct {
			Data []HistoryEntryData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		require.Len(t, resp.Data, 1)
		assert.Equal(t, ids[0], resp.Data[0].ID)
	})

	t.Run("show", func(t *testing.T) {
		out.Reset()
		require.NoError(t, HandleHistory(ctx, app, Args{Subcommand: "show", ID: ids[1]}))
		assert.Contains(t, out.String(), "Answer about How do I grieve well?")
	})

	t.Run("show missing", func(t *testing.T) {
		err := HandleHistory(ctx, app, Args{Subcommand: "show", ID: "does-not-exist"})
		assert.Equal(t, ExitNotFoundError, GetExitCode(err))
	})

	t.Run("export", func(t *testing.T) {
		out.Reset()
		dir := t.TempDir()
		require.NoError(t, HandleHistory(ctx, app, Args{Subcommand: "export", Format: "json", OutputDir: dir, JSON: true}))
		var resp struct {
			Data ExportData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
		assert.Equal(t, 2, resp.Data.Answers)
		assert.Equal(t, dir, filepath.Dir(resp.Data.Path))
		assert.FileExists(t, resp.Data.Path)
	})

	t.Run("export one", func(t *testing.T) {
		out.Reset()
		require.NoError(t, HandleHistory(ctx, app, Args{Subcommand: "export", IDs: []string{ids[0]}, OutputDir: t.TempDir()}))
		assert.Contains(t, out.String(), "exported 1 answer to")
	})

	t.Run("disabled", func(t *testing.T) {
		app.Config.Storage.History = false
		defer func() { app.Config.Storage.History = true }()
		err := HandleHistory(ctx, app, Args{Subcommand: "list"})
		assert.Equal(t, ExitUsageError, GetExitCode(err))
	})
}

// =============================================================================
// CONFIG TESTS
// =============================================================================

func TestHandleConfig(t *testing.T) {
	app, out, _ := newTestApp(t, "https://example.com")
	app.Config.Gateway.Nonce = "secret-nonce"

	require.NoError(t, HandleConfig(app, Args{Subcommand: "path"}))
	assert.Equal(t, app.ConfigPath+"\n", out.String())

	out.Reset()
	require.NoError(t, HandleConfig(app, Args{Subcommand: "get", ConfigKey: "gateway.nonce"}))
	assert.Equal(t, "********\n", out.String())

	out.Reset()
	require.NoError(t, HandleConfig(app, Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "dark"}))
	saved, err := config.ReadFile(app.ConfigPath)
	require.NoError(t, err)
	assert.Equal(t, "dark", saved.UI.Theme)

	err = HandleConfig(app, Args{Subcommand: "set", ConfigKey: "ui.theme", ConfigVal: "neon"})
	assert.Equal(t, ExitConfigError, GetExitCode(err))

	err = HandleConfig(app, Args{Subcommand: "get", ConfigKey: "no.such"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	out.Reset()
	require.NoError(t, HandleConfig(app, Args{Subcommand: "show"}))
	assert.Contains(t, out.String(), "[api]")
	assert.NotContains(t, out.String(), "secret-nonce")
}

// =============================================================================
// SERVE / DOCTOR / CACHE TESTS
// =============================================================================

func TestHandleServe_RequiresSiteURL(t *testing.T) {
	app, _, _ := newTestApp(t, "https://example.com")
	err := HandleServe(context.Background(), app, Args{})
	var usage *UsageError
	assert.True(t, errors.As(err, &usage))
}

func TestHandleDoctor(t *testing.T) {
	svc := newFakeService(t)
	app, out, _ := newTestApp(t, svc.URL)

	require.NoError(t, HandleDoctor(context.Background(), app, Args{JSON: true}))

	var resp struct {
		Data DoctorReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Zero(t, resp.Data.Failed)
	assert.Equal(t, 3, resp.Data.Passed, "config, api and history pass")
	assert.Equal(t, 3, resp.Data.Warned, "gateway, player and proxy are unset")
}

func TestHandleDoctor_APIDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()
	app, out, _ := newTestApp(t, srv.URL)

	err := HandleDoctor(context.Background(), app, Args{})
	require.Error(t, err)
	assert.Contains(t, out.String(), "Answer API")
	assert.Contains(t, out.String(), "1 failed")
}

func TestHandleCache(t *testing.T) {
	app, out, _ := newTestApp(t, "https://example.com")
	ctx := context.Background()

	st, err := storage.Open(app.Config.Storage.Path)
	require.NoError(t, err)
	old := time.Now().Add(-200 * time.Hour)
	require.NoError(t, st.PutCacheEntry(ctx, storage.CacheEntry{Version: "v1", Cache: "api", Key: "old", Status: 200, StoredAt: old}))
	require.NoError(t, st.PutCacheEntry(ctx, storage.CacheEntry{Version: "v1", Cache: "api", Key: "new", Status: 200}))
	require.NoError(t, st.Close())

	require.NoError(t, HandleCache(ctx, app, Args{Subcommand: "prune", JSON: true}))
	var resp struct {
		Data CacheResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Data.Removed)
	assert.Equal(t, 168, resp.Data.MaxAgeHours)

	err = HandleCache(ctx, app, Args{Subcommand: "clear"})
	var usage *UsageError
	require.True(t, errors.As(err, &usage), "clear without a terminal needs --yes")
	assert.Equal(t, "amt cache clear --yes", usage.Example)

	out.Reset()
	require.NoError(t, HandleCache(ctx, app, Args{Subcommand: "clear", Yes: true}))
	assert.Contains(t, out.String(), "removed 1 entry from the sqlite cache")
}

func TestPromptYesNo(t *testing.T) {
	var w bytes.Buffer
	assert.True(t, PromptYesNo(strings.NewReader("y\n"), &w, "Clear"))
	assert.Equal(t, "Clear [y/N]: ", w.String())
	assert.True(t, PromptYesNo(strings.NewReader("YES\n"), io.Discard, "Clear"))
	assert.False(t, PromptYesNo(strings.NewReader("\n"), io.Discard, "Clear"))
	assert.False(t, PromptYesNo(strings.NewReader(""), io.Discard, "Clear"))
}
