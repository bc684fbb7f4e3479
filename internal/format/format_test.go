// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// FORMAT TESTS
// =============================================================================

func TestFormat(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "Hello world.", "<p>Hello world.</p>"},
		{"inline spans", "**bold** and *it*", "<p><strong>bold</strong> and <em>it</em></p>"},
		{"single newline", "line1\nline2", "<p>line1<br>line2</p>"},
		{"two paragraphs", "one\n\ntwo", "<p>one</p><p>two</p>"},
		{"ordered then paragraph", "1. one\n2. two\n\nAfter", "<ol>\n<li>one</li>\n<li>two</li>\n</ol><p>After</p>"},
		{"unordered with bold", "- **key** point", "<ul>\n<li><strong>key</strong> point</li>\n</ul>"},
		{"switch list kinds", "- a\n1. b", "<ul>\n<li>a</li>\n</ul>\n<ol>\n<li>b</li>\n</ol>"},
		{"blank line splits list", "1. a\n\n2. b", "<ol>\n<li>a</li>\n</ol><ol>\n<li>b</li>\n</ol>"},
		{"indented item", "   3.  indented", "<ol>\n<li>indented</li>\n</ol>"},
		{"dash without space", "-item", "<p>-item</p>"},
		{"number without dot", "3 apples", "<p>3 apples</p>"},
		{"escaped html", "a < b & c", "<p>a &lt; b &amp; c</p>"},
		{"unclosed bold", "**open", "<p>**open</p>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Format(tt.in))
		})
	}
}

func TestInline(t *testing.T) {
	assert.Equal(t, "<strong>a</strong> <strong>b</strong>", Inline("**a** **b**"))
	assert.Equal(t, "<em>a</em>b<em>c</em>", Inline("*a*b*c*"))
	assert.Equal(t, "no markers", Inline("no markers"))
}

func TestLines_PlainLinesKeepIndentation(t *testing.T) {
	assert.Equal(t, "  indented text", Lines("  indented text"))
}

// TestFormat_StreamingPrefixes re-renders every prefix of an answer the way
// the stream consumer does and checks each render is well formed.
func TestFormat_StreamingPrefixes(t *testing.T) {
	answer := "Grief is **not** linear.\n\nThe guests describe:\n1. *Denial* first\n2. Then anger\n- a side note\n\nIn closing, be patient."
	for i := 0; i <= len(answer); i++ {
		out := Format(answer[:i])
		assertBalanced(t, out)
	}
	assert.Equal(t, Format(answer), Format(answer[:len(answer)]))
}

func assertBalanced(t *testing.T, out string) {
	t.Helper()
	for _, tag := range []string{"ol", "ul", "li", "p"} {
		open := strings.Count(out, "<"+tag+">")
		closed := strings.Count(out, "</"+tag+">")
		assert.Equal(t, open, closed, "unbalanced <%s> in %q", tag, out)
	}
}

// =============================================================================
// FUZZ TESTS
// =============================================================================

// FuzzFormatBalanced checks that no input leaves an unterminated list tag.
// Run with: go test -fuzz=FuzzFormatBalanced ./internal/format/...
func FuzzFormatBalanced(f *testing.F) {
	f.Add("1. a\n- b\n\n2. c")
	f.Add("**x\n*y*\n- ")
	f.Add("<ol><li>raw</li>")
	f.Add("")

	f.Fuzz(func(t *testing.T, in string) {
		out := Format(in)
		for _, tag := range []string{"ol", "ul"} {
			if strings.Count(out, "<"+tag+">") != strings.Count(out, "</"+tag+">") {
				t.Fatalf("unbalanced <%s> for input %q: %q", tag, in, out)
			}
		}
	})
}
