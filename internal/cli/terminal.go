// terminal.go - Terminal detection for amt output.
//
// Rendering depends on where output goes:
// - Interactive terminals get glamour-rendered answers in colour
// - Piped output gets plain markdown with no escape sequences
// - NO_COLOR or ui.no_color turns colour off everywhere
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// =============================================================================
// TERMINAL WIDTH
// =============================================================================

const (
	// DefaultTerminalWidth is the fallback width when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest width used for wrapping
	MinTerminalWidth = 40

	// MaxRenderWidth keeps answers readable on very wide terminals
	MaxRenderWidth = 100
)

// terminalWidth returns the width for rendering to w. A positive
// configured width wins; otherwise the terminal is measured.
func terminalWidth(w io.Writer, configured int) int {
	if configured > 0 {
		return max(configured, MinTerminalWidth)
	}
	f, ok := w.(*os.File)
	if !ok {
		return DefaultTerminalWidth
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	return min(max(width, MinTerminalWidth), MaxRenderWidth)
}

// =============================================================================
// COLOUR
// =============================================================================

// colorProfile picks the termenv profile for w. Non-terminals, NO_COLOR
// and noColor all yield Ascii.
func colorProfile(w io.Writer, noColor bool) termenv.Profile {
	if noColor || termenv.EnvNoColor() || !isTerminal(w) {
		return termenv.Ascii
	}
	return termenv.NewOutput(w).EnvColorProfile()
}
