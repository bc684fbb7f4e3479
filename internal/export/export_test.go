// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
)

func testRecords() []storage.Record {
	base := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	return []storage.Record{
		{
			ID: "b2",
			Answer: model.Answer{
				Question:  "What is <forgiveness>?",
				Text:      "**Forgiveness** is a release.",
				CreatedAt: base.Add(time.Hour),
				Path:      model.PathGateway,
			},
		},
		{
			ID: "a1",
			Answer: model.Answer{
				Question: "How do I slow down?",
				Text:     "Breathe first.",
				Citations: []model.Citation{{
					EpisodeID:      "12",
					EpisodeTitle:   "On Stillness",
					TimestampStart: "2:05",
					EpisodeURL:     "https://mirrortalk.example/ep/12",
					Text:           "Stillness is a practice.",
				}},
				FollowUpQuestions: []string{"How do I start a morning practice?"},
				CreatedAt:         base,
				Path:              model.PathStream,
			},
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatMarkdown, "md": FormatMarkdown, ".json": FormatJSON, "HTML": FormatHTML} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestMarkdownExporter(t *testing.T) {
	out, err := NewMarkdownExporter(nil).Export(testRecords())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, "answers: 2")
	first := strings.Index(md, "## How do I slow down?")
	second := strings.Index(md, "## What is <forgiveness>?")
	require.True(t, first >= 0 && second >= 0)
	assert.Less(t, first, second, "oldest answer first")

	assert.Contains(t, md, "1. [On Stillness](")
	assert.Contains(t, md, "(2:05)")
	assert.Contains(t, md, "   > Stillness is a practice.")
	assert.Contains(t, md, "- How do I start a morning practice?")
	assert.Contains(t, md, "**Forgiveness** is a release.")
}

func TestMarkdownExporter_NoMetadata(t *testing.T) {
	out, err := NewMarkdownExporter(&Options{}).Export(testRecords()[:1])
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(string(out), "---"))
	assert.NotContains(t, string(out), "<sub>")
}

func TestHTMLExporter_Escapes(t *testing.T) {
	out, err := NewHTMLExporter(&Options{Theme: "dark"}).Export(testRecords())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, `<body class="dark-theme">`)
	assert.Contains(t, page, "What is &lt;forgiveness&gt;?")
	assert.NotContains(t, page, "<forgiveness>")
	assert.Contains(t, page, `class="amt-answer"`)
	assert.Contains(t, page, "On Stillness")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(testRecords())
	require.NoError(t, err)

	var doc struct {
		Count   int              `json:"count"`
		Answers []storage.Record `json:"answers"`
	}
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, 2, doc.Count)
	require.Len(t, doc.Answers, 2)
	assert.Equal(t, "a1", doc.Answers[0].ID)
	assert.Equal(t, "On Stillness", doc.Answers[0].Citations[0].EpisodeTitle)
}

func TestExportEmpty(t *testing.T) {
	for _, f := range []Format{FormatMarkdown, FormatJSON, FormatHTML} {
		exp, err := New(f, nil)
		require.NoError(t, err)
		_, err = exp.Export(nil)
		assert.ErrorIs(t, err, ErrNoRecords, string(f))
	}
	_, err := ToFile(nil, NewJSONExporter(nil), &Options{OutputDir: t.TempDir()})
	assert.ErrorIs(t, err, ErrNoRecords)
}

func TestToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	path, err := ToFile(testRecords()[1:], NewMarkdownExporter(nil), &Options{OutputDir: dir, IncludeMetadata: true})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "answer_How_do_I_slow_down_"))
	assert.True(t, strings.HasSuffix(path, ".md"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "On Stillness")
}

func TestFilename(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, "answers_2_20250301_093000.json", Filename(testRecords(), ".json", now))
	assert.Equal(t, "answer_What_is_-forgiveness_20250301_093000.html", Filename(testRecords()[:1], ".html", now))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b-c", sanitizeFilename("a/b:c"))
	assert.Equal(t, "question", sanitizeFilename("???"))
	assert.Len(t, []rune(sanitizeFilename(strings.Repeat("x", 80))), 50)
}
