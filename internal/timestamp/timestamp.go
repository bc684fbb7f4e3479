// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package timestamp converts between seconds and the H:MM:SS / M:SS labels
// shown next to citations.
package timestamp

import (
	"fmt"
	"math"
	"strings"
)

// RangeSeparator joins start and end labels.
const RangeSeparator = " – "

// ToDisplay renders seconds as "M:SS" below one hour and "H:MM:SS" above.
// Fractions are floored. NaN and infinities have no label and return "".
// Negative values clamp to "0:00".
func ToDisplay(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return ""
	}
	total := int64(math.Floor(seconds))
	if total < 0 {
		total = 0
	}

	hrs := total / 3600
	mins := (total % 3600) / 60
	secs := total % 60
	if hrs > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hrs, mins, secs)
	}
	return fmt.Sprintf("%d:%02d", mins, secs)
}

// ParseDisplay is the inverse of ToDisplay. Three colon-separated parts are
// hours, minutes, seconds; two are minutes and seconds; one is plain seconds.
// Each part is read as a leading integer ("05", "7s"). Any part without
// digits makes the whole label invalid, and invalid input yields 0.
func ParseDisplay(s string) int {
	if s == "" {
		return 0
	}

	parts := strings.Split(s, ":")
	values := make([]int, len(parts))
	for i, p := range parts {
		v, ok := leadingInt(p)
		if !ok {
			return 0
		}
		values[i] = v
	}

	switch len(values) {
	case 3:
		return values[0]*3600 + values[1]*60 + values[2]
	case 2:
		return values[0]*60 + values[1]
	case 1:
		return values[0]
	}
	return 0
}

// FormatRange renders "start – end" when the end lies after the start and
// just "start" otherwise.
func FormatRange(start, end float64) string {
	from := ToDisplay(start)
	if end > start {
		if to := ToDisplay(end); to != "" {
			return from + RangeSeparator + to
		}
	}
	return from
}

// leadingInt reads an optionally signed run of ASCII digits after leading
// whitespace, ignoring whatever follows.
func leadingInt(s string) (int, bool) {
	s = strings.TrimLeft(s, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '-' || s[0] == '+') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		n = n*10 + int(s[digits]-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}
