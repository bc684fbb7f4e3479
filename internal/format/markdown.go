// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package format

import "strings"

// ToMarkdown rewrites answer text into CommonMark with the same block
// structure Format produces, for terminal renderers such as glamour.
// Lists are separated from surrounding text by blank lines, and single
// newlines inside a paragraph become hard breaks.
func ToMarkdown(text string) string {
	if text == "" {
		return ""
	}

	var blocks []string
	var para []string
	var list []string
	mode := listNone

	flushPara := func() {
		if len(para) > 0 {
			blocks = append(blocks, strings.Join(para, "  \n"))
			para = nil
		}
	}
	flushList := func() {
		if len(list) > 0 {
			blocks = append(blocks, strings.Join(list, "\n"))
			list = nil
		}
		mode = listNone
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			flushList()
			flushPara()
			continue
		}

		if m := orderedItem.FindStringSubmatch(trimmed); m != nil {
			flushPara()
			if mode != listOrdered {
				flushList()
				mode = listOrdered
			}
			list = append(list, m[1]+". "+m[2])
			continue
		}

		if m := unorderedItem.FindStringSubmatch(trimmed); m != nil {
			flushPara()
			if mode != listUnordered {
				flushList()
				mode = listUnordered
			}
			list = append(list, "- "+m[1])
			continue
		}

		flushList()
		para = append(para, trimmed)
	}
	flushList()
	flushPara()

	return strings.Join(blocks, "\n\n")
}
