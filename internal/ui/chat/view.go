// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
	"github.com/tobi-mt/ask-mirror-talk/internal/timestamp"
	"github.com/tobi-mt/ask-mirror-talk/internal/util"
	"github.com/tobi-mt/ask-mirror-talk/internal/ui/styles"
)

// Fixed chrome heights around the viewport.
const (
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1
)

// =============================================================================
// VIEW
// =============================================================================

// View renders the ask screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderInput(),
		m.renderStatusBar(),
	)
}

// refresh rebuilds the viewport content, following the answer while it
// streams.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	atBottom := m.viewport.AtBottom()
	m.viewport.SetContent(m.renderContent())
	if m.inFlight() && atBottom {
		m.viewport.GotoBottom()
	}
}

func (m Model) contentWidth() int {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return w
}

// =============================================================================
// HEADER
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("🪞 Ask Mirror Talk")
	subtitle := ""
	if m.theme.GetLayoutMode() != styles.LayoutNarrow {
		subtitle = m.theme.HeaderSubtitle.Render("  answers from the Mirror Talk podcast")
	}
	return m.theme.Header.Width(m.width).Render(title + subtitle)
}

// =============================================================================
// CONTENT
// =============================================================================

func (m Model) renderContent() string {
	width := m.contentWidth()
	var b strings.Builder

	if m.question == "" {
		b.WriteString(m.theme.CitationMeta.Render("Ask anything about life, relationships, growth or healing."))
		b.WriteString("\n")
		if m.errText != "" {
			b.WriteString("\n")
			b.WriteString(m.theme.Error.Render("✗ " + m.errText))
			b.WriteString("\n")
		}
		return b.String()
	}

	b.WriteString(m.theme.Question.Width(width).Render("Q: " + m.question))
	b.WriteString("\n\n")

	switch {
	case m.state == stream.StateComplete && m.rendered != "":
		b.WriteString(m.rendered)
		b.WriteString("\n")
	case m.answer != "":
		b.WriteString(m.theme.AnswerText.Width(width).Render(m.answer))
		b.WriteString("\n")
	}

	if m.inFlight() {
		b.WriteString(m.renderProgress())
		b.WriteString("\n")
	}

	if m.errText != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.Error.Width(width).Render("✗ " + m.errText))
		b.WriteString("\n")
	}

	if len(m.citations) > 0 {
		b.WriteString(m.renderSources(width))
	}
	if len(m.followUps) > 0 {
		b.WriteString(m.renderFollowUps(width))
	}
	if m.state == stream.StateComplete && !m.qaLogID.IsZero() && !m.rated && m.tracker != nil {
		b.WriteString("\n")
		b.WriteString(m.theme.CitationMeta.Render("Was this helpful? Tab to the sources, then u or d."))
		b.WriteString("\n")
	}
	return b.String()
}

// renderProgress shows the spinner with the latest status frame, or a
// rotating loading message before any arrives.
func (m Model) renderProgress() string {
	text := m.status
	style := m.theme.Loading
	if text == "" {
		if m.answer != "" {
			return m.spinner.View()
		}
		text = answer.LoadingMessage(m.loadingTick)
	} else if m.hint {
		style = m.theme.Hint
	}
	return m.spinner.View() + " " + style.Render(text)
}

func (m Model) renderSources(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.Section.Render("Sources"))
	b.WriteString("\n")

	focused := m.focus == FocusSources
	for i, r := range m.citations {
		line := citation.TerminalLine(i+1, r, width-2)
		marker := "  "
		style := m.theme.Citation
		switch {
		case r.Key() == m.playing && m.playing != "":
			marker = "▶ "
			style = m.theme.CitationPlaying
		case focused && i == m.selected:
			marker = "› "
			style = m.theme.CitationSelected
		}
		b.WriteString(marker + style.Render(line))
		b.WriteString("\n")
		if focused && i == m.selected && r.Excerpt != "" {
			b.WriteString("    ")
			b.WriteString(m.theme.CitationMeta.Render(util.TruncateWidth(r.Excerpt, width-4)))
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderFollowUps(width int) string {
	var b strings.Builder
	b.WriteString(m.theme.Section.Render("You might also ask"))
	b.WriteString("\n")

	focused := m.focus == FocusFollowUps
	for i, q := range m.followUps {
		q = util.TruncateWidth(q, width-4)
		if focused && i == m.followSel {
			b.WriteString("› " + m.theme.FollowUpSelected.Render(q))
		} else {
			b.WriteString("• " + m.theme.FollowUp.Render(q))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// =============================================================================
// INPUT & STATUS BAR
// =============================================================================

func (m Model) renderInput() string {
	style := m.theme.InputBorderBlur
	if m.focus == FocusInput {
		style = m.theme.InputBorder
	}
	return style.Width(m.contentWidth()).Render(m.input.View())
}

func (m Model) renderStatusBar() string {
	left := m.renderKeyHelp()
	if m.notice != "" {
		style := m.theme.Error
		if m.noticeOK {
			style = m.theme.StatusSuccess
		}
		left = style.Render(m.notice)
	}

	right := ""
	if p := m.activePlayer(); p != nil {
		icon := "⏸"
		if p.Playing() {
			icon = "♪"
		}
		right = m.theme.StatusPlayer.Render(fmt.Sprintf("%s %s %s",
			icon, util.TruncateWidth(p.Citation.Title, 24), timestamp.ToDisplay(p.Position())))
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Render(left + strings.Repeat(" ", gap) + right)
}

func (m Model) renderKeyHelp() string {
	bindings := m.keys.HelpFor(m.focus)
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, m.theme.StatusKey.Render(h.Key)+" "+h.Desc)
	}
	sep := m.theme.SeparatorStyle.Render(" │ ")
	return strings.Join(parts, sep)
}
