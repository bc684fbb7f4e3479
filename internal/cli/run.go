// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tobi-mt/ask-mirror-talk/internal/config"
)

// =============================================================================
// SETUP
// =============================================================================

// Setup loads the configuration named by args (or AMT_CONFIG, or the
// default path), applies global flags and installs the default logger.
func Setup(args Args, stderr io.Writer) (*App, error) {
	path := args.Config
	if path == "" {
		p, err := config.Path()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.LoadFrom(path)
	if err != nil {
		return nil, err
	}
	if args.NoColor {
		cfg.UI.NoColor = true
	}
	config.SetGlobal(cfg)

	logger := NewLogger(stderr, cfg.Logging, args.Verbose)
	slog.SetDefault(logger)

	app := NewApp(cfg, path, logger)
	app.Err = stderr
	return app, nil
}

// NewLogger builds the process logger from the [logging] section. verbose
// forces debug level.
func NewLogger(w io.Writer, lc config.LoggingConfig, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd. CmdTUI is handled by the caller, which owns the
// full-screen program.
func Run(ctx context.Context, app *App, cmd Command, args Args) error {
	switch cmd {
	case CmdAsk:
		return HandleAsk(ctx, app, args)
	case CmdChat:
		return HandleChat(ctx, app, args)
	case CmdHistory:
		return HandleHistory(ctx, app, args)
	case CmdConfig:
		return HandleConfig(app, args)
	case CmdServe:
		return HandleServe(ctx, app, args)
	case CmdDoctor:
		return HandleDoctor(ctx, app, args)
	case CmdCache:
		return HandleCache(ctx, app, args)
	case CmdVersion:
		PrintVersion(app.Out)
		return nil
	case CmdHelp:
		PrintUsage(app.Out)
		return nil
	}
	return fmt.Errorf("command %s cannot run here", cmd)
}

// Exit reports err for cmd and returns the process exit code. JSON
// errors go to stdout, everything else to stderr. A cancelled context
// (Ctrl+C) exits quietly with 130.
func Exit(stdout, stderr io.Writer, cmd Command, args Args, err error) int {
	if err == nil {
		return ExitSuccess
	}
	if errors.Is(err, context.Canceled) {
		return ExitInterrupted
	}
	w := stderr
	if args.JSON {
		w = stdout
	}
	DisplayError(w, cmd.String(), err, args.JSON)
	var usage *UsageError
	if errors.As(err, &usage) && !args.JSON {
		fmt.Fprintln(w, "Run 'amt help' for usage.")
	}
	return GetExitCode(err)
}

// Main is the whole program for argv (without the program name). runTUI
// runs the full-screen interface.
func Main(ctx context.Context, argv []string, runTUI func(context.Context, *App) error) int {
	cmd, args, err := Parse(argv)
	if err != nil {
		return Exit(os.Stdout, os.Stderr, cmd, args, err)
	}

	app, err := Setup(args, os.Stderr)
	if err != nil {
		return Exit(os.Stdout, os.Stderr, cmd, args, err)
	}

	if cmd == CmdTUI {
		if !IsTTY() || !IsStdoutTTY() {
			err = &UsageError{Reason: "the full-screen interface needs a terminal", Example: `amt ask "How do I deal with grief?"`}
		} else {
			err = runTUI(ctx, app)
		}
		return Exit(app.Out, app.Err, cmd, args, err)
	}
	return Exit(app.Out, app.Err, cmd, args, Run(ctx, app, cmd, args))
}
