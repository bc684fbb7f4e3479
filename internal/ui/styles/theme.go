// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styles used by the full-screen interface.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	Width  int
	Height int

	// ==========================================================================
	// HEADER
	// ==========================================================================

	Header         lipgloss.Style
	HeaderTitle    lipgloss.Style
	HeaderSubtitle lipgloss.Style

	// ==========================================================================
	// ANSWER AREA
	// ==========================================================================

	Question   lipgloss.Style
	AnswerText lipgloss.Style
	Loading    lipgloss.Style
	Hint       lipgloss.Style
	Error      lipgloss.Style
	Section    lipgloss.Style

	// ==========================================================================
	// CITATIONS & FOLLOW-UPS
	// ==========================================================================

	Citation         lipgloss.Style
	CitationSelected lipgloss.Style
	CitationPlaying  lipgloss.Style
	CitationMeta     lipgloss.Style
	FollowUp         lipgloss.Style
	FollowUpSelected lipgloss.Style

	// ==========================================================================
	// INPUT & STATUS BAR
	// ==========================================================================

	InputBorder     lipgloss.Style
	InputBorderBlur lipgloss.Style
	InputPrompt     lipgloss.Style
	StatusBar       lipgloss.Style
	StatusKey       lipgloss.Style
	StatusSuccess   lipgloss.Style
	StatusPlayer    lipgloss.Style
	SeparatorStyle  lipgloss.Style
}

// NewTheme detects the terminal and builds the styles. noColor forces the
// ASCII profile.
func NewTheme(noColor bool) *Theme {
	profile := termenv.ColorProfile()
	if noColor {
		profile = termenv.Ascii
	}
	t := &Theme{
		IsDark:       termenv.HasDarkBackground(),
		ColorProfile: profile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	lipgloss.SetColorProfile(t.ColorProfile)

	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Teal)
	t.HeaderSubtitle = lipgloss.NewStyle().Italic(true).Foreground(TextSecondary)

	t.Question = lipgloss.NewStyle().Bold(true).Foreground(Teal)
	t.AnswerText = lipgloss.NewStyle().Foreground(TextPrimary)
	t.Loading = lipgloss.NewStyle().Foreground(Amber)
	t.Hint = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.Error = lipgloss.NewStyle().Bold(true).Foreground(Rose)
	t.Section = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary).MarginTop(1)

	t.Citation = lipgloss.NewStyle().Foreground(LinkColor)
	t.CitationSelected = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.CitationPlaying = lipgloss.NewStyle().Bold(true).Foreground(Emerald)
	t.CitationMeta = lipgloss.NewStyle().Foreground(TextMuted)
	t.FollowUp = lipgloss.NewStyle().Foreground(TextPrimary)
	t.FollowUpSelected = lipgloss.NewStyle().Bold(true).Foreground(Purple)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Teal).
		Padding(0, 1)
	t.InputBorderBlur = t.InputBorder.BorderForeground(Overlay)
	t.InputPrompt = lipgloss.NewStyle().Bold(true).Foreground(Teal)

	t.StatusBar = lipgloss.NewStyle().Foreground(TextMuted).Padding(0, 1)
	t.StatusKey = lipgloss.NewStyle().Bold(true).Foreground(TextSecondary)
	t.StatusSuccess = lipgloss.NewStyle().Foreground(Emerald)
	t.StatusPlayer = lipgloss.NewStyle().Foreground(Emerald)
	t.SeparatorStyle = lipgloss.NewStyle().Foreground(Overlay)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
