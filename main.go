// amt - Ask Mirror Talk from the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tobi-mt/ask-mirror-talk/internal/cli"
	"github.com/tobi-mt/ask-mirror-talk/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "3.8.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Main(ctx, os.Args[1:], runTUI)
	stop()
	os.Exit(code)
}

// runTUI launches the full-screen interface. Answers are recorded in
// history unless storage cannot be opened.
func runTUI(ctx context.Context, app *cli.App) error {
	st := app.OpenHistory(false)
	if st != nil {
		defer st.Close()
	}

	return ui.Run(ctx, ui.Deps{
		Config:  app.Config,
		Asker:   app.NewAsker(false).OnComplete(app.HistoryRecorder(st, nil)),
		Tracker: app.NewTracker(),
		Players: app.NewPlayerManager(),
		Logger:  app.Logger.With("component", "tui"),
	})
}
