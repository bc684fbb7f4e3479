// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"

	"github.com/tobi-mt/ask-mirror-talk/internal/format"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/util"
)

// ListenIcon prefixes the time label of playable citations.
const ListenIcon = "🎧"

// =============================================================================
// RENDERER
// =============================================================================

// Renderer resolves citation lists for display and tells listeners when a
// list is attached to an answer.
type Renderer struct {
	mu        sync.Mutex
	listeners []func(qaLogID model.ID, list []Resolved)
}

// NewRenderer creates a renderer with no listeners.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// OnAttach registers fn to run every time a citation list is attached.
func (r *Renderer) OnAttach(fn func(qaLogID model.ID, list []Resolved)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// Attach resolves cs, notifies listeners and returns the resolved list.
func (r *Renderer) Attach(qaLogID model.ID, cs []model.Citation) []Resolved {
	list := ResolveAll(cs)
	r.mu.Lock()
	listeners := make([]func(model.ID, []Resolved), len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()
	for _, fn := range listeners {
		fn(qaLogID, list)
	}
	return list
}

// =============================================================================
// HTML
// =============================================================================

// RenderHTML renders resolved citations as a <ul> of citation items, or ""
// for an empty list.
func RenderHTML(list []Resolved) string {
	if len(list) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(`<ul class="citations">`)
	for _, r := range list {
		b.WriteString(itemHTML(r))
	}
	b.WriteString(`</ul>`)
	return b.String()
}

func itemHTML(r Resolved) string {
	esc := html.EscapeString
	title := `<span class="citation-title">` + esc(r.Title) + `</span>`

	if !r.Linkable() {
		return `<li class="citation-item">` + title +
			`<span class="citation-time">` + esc(r.TimeLabel) + `</span></li>`
	}

	start := strconv.FormatFloat(r.Start, 'f', -1, 64)
	end := strconv.FormatFloat(r.End, 'f', -1, 64)
	return fmt.Sprintf(`<li class="citation-item"><a href="%s" class="citation-link" title="Listen from %s" data-episode-id="%s" data-timestamp="%s" data-audio-url="%s" data-start="%s" data-end="%s">%s<span class="citation-time">%s %s</span></a></li>`,
		esc(r.PlayURL), esc(r.StartLabel), esc(r.Citation.EpisodeID.String()), start, esc(r.AudioURL), start, end,
		title, ListenIcon, esc(r.TimeLabel))
}

// AnswerHTML renders a whole answer: formatted text, citations and
// follow-up questions.
func AnswerHTML(a model.Answer) string {
	var b strings.Builder
	b.WriteString(`<div class="amt-answer">`)
	b.WriteString(format.Format(a.Text))
	b.WriteString(`</div>`)
	b.WriteString(RenderHTML(ResolveAll(a.Citations)))
	if len(a.FollowUpQuestions) > 0 {
		b.WriteString(`<ul class="amt-follow-ups">`)
		for _, q := range a.FollowUpQuestions {
			b.WriteString(`<li><button type="button" class="amt-follow-up">` + html.EscapeString(q) + `</button></li>`)
		}
		b.WriteString(`</ul>`)
	}
	return b.String()
}

// =============================================================================
// TERMINAL
// =============================================================================

// TerminalLine renders one citation as "[n] Title  🎧 2:05 – 3:00", cut to
// width cells. Width <= 0 disables cutting.
func TerminalLine(n int, r Resolved, width int) string {
	label := r.TimeLabel
	if r.Linkable() {
		label = ListenIcon + " " + label
	}
	prefix := fmt.Sprintf("[%d] ", n)
	if width <= 0 {
		return prefix + r.Title + "  " + label
	}
	titleWidth := width - util.Width(prefix) - util.Width(label) - 2
	if titleWidth < 8 {
		titleWidth = 8
	}
	return prefix + util.TruncateWidth(r.Title, titleWidth) + "  " + label
}

// RenderTerminal renders a numbered citation list, one line per citation,
// with the excerpt indented beneath when present.
func RenderTerminal(list []Resolved, width int) string {
	var b strings.Builder
	for i, r := range list {
		b.WriteString(TerminalLine(i+1, r, width))
		b.WriteByte('\n')
		if r.Excerpt != "" {
			b.WriteString("    ")
			b.WriteString(r.Excerpt)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
