// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
	"github.com/tobi-mt/ask-mirror-talk/internal/util"
)

// ErrNoRecords is returned when there is nothing to export.
var ErrNoRecords = errors.New("no answers to export")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts history records to one document.
type Exporter interface {
	// Export renders records, oldest first, in the target format.
	Export(records []storage.Record) ([]byte, error)

	// FileExtension returns the file extension, e.g. ".md".
	FileExtension() string

	// MimeType returns the MIME type of the exported format.
	MimeType() string
}

// Format names an export format.
type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatHTML     Format = "html"
)

// ParseFormat accepts a format name or a common file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "html", "htm":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown export format %q (want markdown, json or html)", s)
}

// New returns the exporter for f.
func New(f Format, opts *Options) (Exporter, error) {
	switch f {
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return NewJSONExporter(opts), nil
	case FormatHTML:
		return NewHTMLExporter(opts), nil
	}
	return nil, fmt.Errorf("unknown export format %q", f)
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	// Default: current working directory
	OutputDir string

	// IncludeMetadata adds the date, path and latency of each answer.
	IncludeMetadata bool

	// IncludeExcerpts adds each source's excerpt under its link.
	IncludeExcerpts bool

	// Theme for HTML export ("light" or "dark").
	// Default: "light"
	Theme string
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:       ".",
		IncludeMetadata: true,
		IncludeExcerpts: true,
		Theme:           "light",
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports records with exporter and writes the result into
// opts.OutputDir. It returns the path written.
func ToFile(records []storage.Record, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(records) == 0 {
		return "", ErrNoRecords
	}

	content, err := exporter.Export(records)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	outputPath := filepath.Join(dir, Filename(records, exporter.FileExtension(), time.Now()))
	if err := util.AtomicWriteFile(outputPath, content, 0o644); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return outputPath, nil
}

// Filename names an export: the question for a single answer, otherwise
// the number of answers, plus a timestamp.
func Filename(records []storage.Record, ext string, now time.Time) string {
	name := fmt.Sprintf("answers_%d", len(records))
	if len(records) == 1 {
		name = "answer_" + sanitizeFilename(records[0].Question)
	}
	return name + "_" + now.Format("20060102_150405") + ext
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	maxLen := 50
	runes := []rune(strings.TrimSpace(s))
	if len(runes) > maxLen {
		runes = runes[:maxLen]
	}

	// Replace problematic characters (Windows and Unix)
	replacer := map[rune]rune{
		'/':  '-',
		'\\': '-',
		':':  '-',
		'*':  '-',
		'?':  '-',
		'"':  '-',
		'<':  '-',
		'>':  '-',
		'|':  '-',
		' ':  '_',
		'\t': '_',
		'\n': '_',
		'\r': '_',
	}

	result := make([]rune, 0, len(runes))
	for _, r := range runes {
		if replacement, found := replacer[r]; found {
			result = append(result, replacement)
		} else if r < 32 || r == 127 {
			result = append(result, '-')
		} else {
			result = append(result, r)
		}
	}

	out := strings.Trim(string(result), "-_")
	if out == "" {
		return "question"
	}
	return out
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// metaLine summarises where and when an answer came from.
func metaLine(rec storage.Record) string {
	parts := []string{formatTimestamp(rec.CreatedAt)}
	if rec.Path != "" {
		parts = append(parts, "via "+string(rec.Path))
	}
	if rec.Latency > 0 {
		parts = append(parts, rec.Latency.Round(100*time.Millisecond).String())
	}
	return strings.Join(parts, " · ")
}

// oldestFirst returns records ordered by creation time without modifying
// the input.
func oldestFirst(records []storage.Record) []storage.Record {
	out := make([]storage.Record, len(records))
	copy(out, records)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].CreatedAt.Before(out[j-1].CreatedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
