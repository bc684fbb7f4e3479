// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui runs the full-screen Ask Mirror Talk interface.
package ui

import (
	"context"
	"errors"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/config"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/ui/chat"
	"github.com/tobi-mt/ask-mirror-talk/internal/ui/styles"
)

// Deps are the collaborators the interface drives. Tracker and Players
// may be nil.
type Deps struct {
	Config  *config.Config
	Asker   *answer.Asker
	Tracker *citation.Tracker
	Players *citation.PlayerManager
	Logger  *slog.Logger
}

// Run shows the interface until the user quits or ctx is cancelled. It
// stops playback and waits for pending analytics before returning.
func Run(ctx context.Context, deps Deps) error {
	if deps.Asker == nil {
		return errors.New("ui: no asker")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	noColor, mdStyle := false, "auto"
	if deps.Config != nil {
		noColor = deps.Config.UI.NoColor
		mdStyle = deps.Config.UI.Theme
		if noColor {
			mdStyle = "notty"
		}
	}

	buf := chat.NewAnswerBuffer()
	renderer := citation.NewRenderer()
	renderer.OnAttach(func(qaLogID model.ID, list []citation.Resolved) {
		logger.Debug("citations attached", "qa_log_id", qaLogID.String(), "count", len(list))
	})

	m := chat.New(ctx, styles.NewTheme(noColor), chat.Deps{
		Asker:         deps.Asker,
		Tracker:       deps.Tracker,
		Players:       deps.Players,
		Renderer:      renderer,
		Buffer:        buf,
		MarkdownStyle: mdStyle,
	})

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	deps.Asker.WithHandler(chat.Handler(p.Send, buf, renderer))

	_, err := p.Run()

	deps.Asker.Clear()
	if deps.Players != nil {
		if cerr := deps.Players.Close(); cerr != nil {
			logger.Debug("player close failed", "error", cerr)
		}
	}
	if deps.Tracker != nil {
		deps.Tracker.Wait()
	}

	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
