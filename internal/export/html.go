// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports answers to a standalone page with embedded CSS. Each
// answer uses the same markup as the widget.
type HTMLExporter struct {
	options *Options
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{options: opts}
}

// Export converts records to HTML.
func (e *HTMLExporter) Export(records []storage.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	theme := e.options.Theme
	if theme != "dark" {
		theme = "light"
	}

	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	sb.WriteString("    <title>Ask Mirror Talk</title>\n")
	sb.WriteString("    <meta name=\"generator\" content=\"amt\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	for _, rec := range oldestFirst(records) {
		sb.WriteString(e.renderRecord(rec))
	}

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>amt</strong> on %s</p>\n",
		time.Now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

func (e *HTMLExporter) renderRecord(rec storage.Record) string {
	var sb strings.Builder
	sb.WriteString("        <section class=\"qa\">\n")
	fmt.Fprintf(&sb, "            <h2 class=\"question\">%s</h2>\n", html.EscapeString(rec.Question))
	if e.options.IncludeMetadata {
		fmt.Fprintf(&sb, "            <div class=\"metadata\">%s</div>\n", html.EscapeString(metaLine(rec)))
	}
	sb.WriteString("            ")
	sb.WriteString(citation.AnswerHTML(rec.Answer))
	sb.WriteString("\n        </section>\n")
	return sb.String()
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

const css = `    <style>
        body { margin: 0; font-family: Georgia, "Times New Roman", serif; line-height: 1.6; }
        .light-theme { background: #faf8f5; color: #2b2b2b; }
        .dark-theme { background: #1c1c1e; color: #e8e6e3; }
        .container { max-width: 760px; margin: 0 auto; padding: 2rem 1.25rem; }
        .qa { margin-bottom: 2.5rem; padding-bottom: 1.5rem; border-bottom: 1px solid rgba(127,127,127,.25); }
        .question { font-size: 1.3rem; margin: 0 0 .25rem; }
        .metadata { font-size: .8rem; opacity: .65; margin-bottom: 1rem; }
        .citations { list-style: none; padding: 0; }
        .citation-item { margin: .35rem 0; }
        .citation-time { font-family: monospace; opacity: .75; margin-left: .4rem; }
        .citation-link { color: #8a5a2b; }
        .dark-theme .citation-link { color: #e0b07a; }
        .amt-follow-ups { padding-left: 1.1rem; }
        .amt-follow-up { background: none; border: none; padding: 0; font: inherit; color: inherit; text-align: left; }
        .footer { font-size: .8rem; opacity: .6; text-align: center; }
    </style>
`
