// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/config"
	"github.com/tobi-mt/ask-mirror-talk/internal/gateway"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
)

// =============================================================================
// APP
// =============================================================================

// App carries what every command handler needs: configuration, logger and
// the standard streams.
type App struct {
	Config     *config.Config
	ConfigPath string
	Logger     *slog.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// HTTPClient replaces the pooled clients when set (tests)
	HTTPClient *http.Client
}

// NewApp creates an App on the process streams.
func NewApp(cfg *config.Config, configPath string, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     logger,
		In:         os.Stdin,
		Out:        os.Stdout,
		Err:        os.Stderr,
	}
}

// NewAsker wires the stream client and the fallback chain from config.
// noStream (or api.stream = false) goes straight to the fallback.
func (a *App) NewAsker(noStream bool) *answer.Asker {
	cfg := a.Config

	var opener answer.Opener
	if cfg.API.Stream && !noStream {
		sc := stream.NewClient(cfg.API.BaseURL).WithLogger(a.Logger)
		if a.HTTPClient != nil {
			sc.WithHTTPClient(a.HTTPClient)
		}
		opener = sc
	}

	fb := gateway.NewClient(cfg.Gateway.URL, cfg.API.BaseURL, gateway.NewNonceStore(cfg.Gateway.Nonce)).
		WithTimeout(cfg.Timeout()).
		WithLogger(a.Logger)
	if a.HTTPClient != nil {
		fb.WithHTTPClient(a.HTTPClient)
	}

	return answer.NewAsker(opener, fb).WithLogger(a.Logger)
}

// NewTracker creates the analytics client.
func (a *App) NewTracker() *citation.Tracker {
	t := citation.NewTracker(a.Config.API.BaseURL).WithLogger(a.Logger)
	if a.HTTPClient != nil {
		t.WithHTTPClient(a.HTTPClient)
	}
	return t
}

// OpenStore opens the history database. It returns nil without error when
// history is disabled.
func (a *App) OpenStore() (*storage.Store, error) {
	if !a.Config.Storage.History {
		return nil, nil
	}
	path, err := a.Config.StoragePath()
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	if a.Config.Storage.MaxAnswers > 0 {
		st.MaxAnswers = a.Config.Storage.MaxAnswers
	}
	return st, nil
}

// OpenHistory opens the store for recording answers. A failure only
// disables history for this run.
func (a *App) OpenHistory(skip bool) *storage.Store {
	if skip {
		return nil
	}
	st, err := a.OpenStore()
	if err != nil {
		a.Logger.Warn("history disabled for this run", "error", err)
		return nil
	}
	return st
}

// HistoryRecorder returns an OnComplete callback that stores answers in
// st and reports the new row id to saved (which may be nil). Storage
// errors are logged; they never fail the question.
func (a *App) HistoryRecorder(st *storage.Store, saved func(id string)) func(model.Answer) {
	return func(ans model.Answer) {
		if st == nil {
			return
		}
		id, err := st.SaveAnswer(context.Background(), ans)
		if err != nil {
			a.Logger.Warn("failed to save answer to history", "error", err)
			return
		}
		if saved != nil {
			saved(id)
		}
	}
}

// NewPlayerManager creates the inline player manager, or nil when the
// player is disabled or its command is not installed.
func (a *App) NewPlayerManager() *citation.PlayerManager {
	if !a.Config.Player.Enabled {
		return nil
	}
	backend, err := citation.NewCommandBackend(a.Config.Player.Command)
	if err != nil {
		a.Logger.Info("inline player unavailable", "error", err)
		return nil
	}
	return citation.NewPlayerManager(backend).WithLogger(a.Logger)
}

// =============================================================================
// RENDERING
// =============================================================================

// renderer turns answers into terminal text for one output stream.
type renderer struct {
	styled       bool
	width        int
	showExcerpts bool
	md           *glamour.TermRenderer
}

// newRenderer picks glamour styling for terminals and plain markdown for
// pipes or when plain is set.
func (a *App) newRenderer(plain bool) *renderer {
	ui := a.Config.UI
	profile := colorProfile(a.Out, ui.NoColor)
	SetColorProfile(profile)

	r := &renderer{
		width:        terminalWidth(a.Out, ui.Width),
		showExcerpts: ui.ShowExcerpts,
	}
	if plain || !isTerminal(a.Out) {
		return r
	}

	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(r.width),
		glamour.WithColorProfile(profile),
		glamour.WithEmoji(),
	}
	switch theme := strings.ToLower(ui.Theme); {
	case ui.NoColor:
		opts = append(opts, glamour.WithStandardStyle("notty"))
	case theme == "" || theme == "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(theme))
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		a.Logger.Debug("glamour unavailable, printing plain markdown", "error", err)
		return r
	}
	r.styled = true
	r.md = md
	return r
}

// markdown renders formatted markdown, falling back to the raw text.
func (r *renderer) markdown(text string) string {
	if r.md == nil {
		return text + "\n"
	}
	out, err := r.md.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// style applies s only when output is styled.
func (r *renderer) style(s interface{ Render(...string) string }, text string) string {
	if !r.styled {
		return text
	}
	return s.Render(text)
}
