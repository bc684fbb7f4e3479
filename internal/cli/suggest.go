// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// suggest.go - Command suggestion for typo correction.
package cli

import (
	"strings"
)

// validCommands lists every amt command and alias.
var validCommands = []string{
	"tui", "ask", "chat", "history", "config", "serve", "doctor", "cache", "version", "help",
	"a", "c", "h", "proxy",
}

// chatCommands lists the slash commands of `amt chat`.
var chatCommands = []string{
	"/play", "/stop", "/pause", "/back", "/fwd", "/open", "/follow", "/up", "/down",
	"/sources", "/help", "/quit", "/exit",
}

// SuggestCommand returns the command closest to input, or "" when nothing
// is close enough. The allowed edit distance grows with the input length.
func SuggestCommand(input string) string {
	return suggest(input, validCommands)
}

// SuggestChatCommand is SuggestCommand for chat slash commands.
func SuggestChatCommand(input string) string {
	return suggest(input, chatCommands)
}

func suggest(input string, candidates []string) string {
	input = strings.ToLower(input)
	if len(input) < 2 {
		return ""
	}

	maxDistance := 1
	if len(input) >= 4 {
		maxDistance = 2
	}
	if len(input) > 8 {
		maxDistance = 3
	}

	bestMatch := ""
	bestDistance := -1
	for _, cmd := range candidates {
		distance := levenshteinDistance(input, cmd)
		if distance == 0 {
			return ""
		}
		if distance <= maxDistance && (bestDistance == -1 || distance < bestDistance) {
			bestDistance = distance
			bestMatch = cmd
		}
	}
	return bestMatch
}

// levenshteinDistance is the number of single-byte insertions, deletions
// or substitutions turning s1 into s2.
func levenshteinDistance(s1, s2 string) int {
	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	cols := len(s2) + 1
	prev := make([]int, cols)
	curr := make([]int, cols)
	for j := 0; j < cols; j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		curr[0] = i
		for j := 1; j < cols; j++ {
			cost := 0
			if s1[i-1] != s2[j-1] {
				cost = 1
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[cols-1]
}
