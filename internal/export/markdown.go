// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/format"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports answers to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts records to Markdown, one section per answer.
func (e *MarkdownExporter) Export(records []storage.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	var sb strings.Builder

	// YAML frontmatter
	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		sb.WriteString("title: Ask Mirror Talk\n")
		fmt.Fprintf(&sb, "answers: %d\n", len(records))
		fmt.Fprintf(&sb, "exported: %s\n", time.Now().Format(time.RFC3339))
		sb.WriteString("generator: amt\n")
		sb.WriteString("---\n\n")
	}

	for i, rec := range oldestFirst(records) {
		if i > 0 {
			sb.WriteString("\n---\n\n")
		}
		e.writeRecord(&sb, rec)
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) writeRecord(sb *strings.Builder, rec storage.Record) {
	fmt.Fprintf(sb, "## %s\n\n", escapeMarkdown(rec.Question))
	if e.options.IncludeMetadata {
		fmt.Fprintf(sb, "<sub>%s</sub>\n\n", metaLine(rec))
	}

	sb.WriteString(strings.TrimSpace(format.ToMarkdown(rec.Text)))
	sb.WriteString("\n")

	if sources := citation.ResolveAll(rec.Citations); len(sources) > 0 {
		sb.WriteString("\n### Sources\n\n")
		for i, src := range sources {
			title := escapeMarkdown(src.Title)
			if src.Linkable() {
				title = fmt.Sprintf("[%s](%s)", title, src.PlayURL)
			}
			fmt.Fprintf(sb, "%d. %s (%s)\n", i+1, title, src.TimeLabel)
			if e.options.IncludeExcerpts && src.Excerpt != "" {
				fmt.Fprintf(sb, "   > %s\n", src.Excerpt)
			}
		}
	}

	if len(rec.FollowUpQuestions) > 0 {
		sb.WriteString("\n### Related questions\n\n")
		for _, q := range rec.FollowUpQuestions {
			fmt.Fprintf(sb, "- %s\n", escapeMarkdown(q))
		}
	}
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only escape characters that would break formatting in titles/headings
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
