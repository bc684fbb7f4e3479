// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"html"
	"regexp"
	"strings"
)

// ============================================================================
// PATTERNS
// ============================================================================

var (
	boldPattern    = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicPattern  = regexp.MustCompile(`\*(.+?)\*`)
	orderedItem    = regexp.MustCompile(`^(\d+)\.\s+(.+)$`)
	unorderedItem  = regexp.MustCompile(`^-\s+(.+)$`)
	paragraphBreak = "\n\n"
)

// listMode tracks which list, if any, is currently open.
type listMode int

const (
	listNone listMode = iota
	listOrdered
	listUnordered
)

func (m listMode) closeTag() string {
	switch m {
	case listOrdered:
		return "</ol>"
	case listUnordered:
		return "</ul>"
	}
	return ""
}

// ============================================================================
// PUBLIC API
// ============================================================================

// Inline applies the bold and italic span rules to a single piece of text.
// Bold is applied first so "**x**" never turns into nested emphasis.
func Inline(text string) string {
	text = boldPattern.ReplaceAllString(text, "<strong>$1</strong>")
	return italicPattern.ReplaceAllString(text, "<em>$1</em>")
}

// Format renders text as an HTML fragment made of <p>, <ol> and <ul> blocks.
// Empty input yields an empty string.
func Format(text string) string {
	if text == "" {
		return ""
	}
	return Paragraphs(Lines(text))
}

// Lines runs the line classifier over text and returns the intermediate
// form: list blocks on their own lines, plain lines verbatim, blank lines
// preserved as separators.
func Lines(text string) string {
	text = Inline(html.EscapeString(text))

	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines)+4)
	mode := listNone

	closeList := func() {
		if mode != listNone {
			out = append(out, mode.closeTag())
			mode = listNone
		}
	}
	openList := func(want listMode, tag string) {
		if mode == want {
			return
		}
		closeList()
		out = append(out, tag)
		mode = want
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			closeList()
			out = append(out, "")
			continue
		}

		if m := orderedItem.FindStringSubmatch(trimmed); m != nil {
			openList(listOrdered, "<ol>")
			out = append(out, "<li>"+Inline(m[2])+"</li>")
			continue
		}

		if m := unorderedItem.FindStringSubmatch(trimmed); m != nil {
			openList(listUnordered, "<ul>")
			out = append(out, "<li>"+Inline(m[1])+"</li>")
			continue
		}

		closeList()
		out = append(out, line)
	}
	closeList()

	return strings.Join(out, "\n")
}

// Paragraphs splits the intermediate form on blank lines. List blocks pass
// through untouched; everything else is wrapped in <p> with single newlines
// turned into <br>.
func Paragraphs(formatted string) string {
	var b strings.Builder
	for _, piece := range strings.Split(formatted, paragraphBreak) {
		p := strings.TrimSpace(piece)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "<ol>") || strings.HasPrefix(p, "<ul>") {
			b.WriteString(p)
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(p, "\n", "<br>"))
		b.WriteString("</p>")
	}
	return b.String()
}
