// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// =============================================================================
// ID TYPE
// =============================================================================

// ID is an opaque identifier. The answer service sends qa_log_id and
// episode_id as numbers in some responses and as strings in others, so ID
// accepts both and always re-encodes as a string.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// String returns the raw identifier.
func (id ID) String() string { return string(id) }

// IsZero reports whether the identifier is absent.
func (id ID) IsZero() bool { return strings.TrimSpace(string(id)) == "" }

// Int parses the identifier as a base-10 integer, reading leading digits
// only ("42abc" is 42). ok is false when there are no leading digits.
func (id ID) Int() (n int64, ok bool) {
	s := strings.TrimSpace(string(id))
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	start := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == start {
		return 0, false
	}
	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// =============================================================================
// CITATION
// =============================================================================

// Citation references a podcast episode and a time range supporting part of
// an answer. Start and end may arrive as seconds, as "H:MM:SS" labels, or
// both; the seconds fields win when present.
type Citation struct {
	EpisodeID             ID       `json:"episode_id"`
	EpisodeTitle          string   `json:"episode_title,omitempty"`
	TimestampStart        string   `json:"timestamp_start,omitempty"`
	TimestampStartSeconds *float64 `json:"timestamp_start_seconds,omitempty"`
	TimestampEnd          string   `json:"timestamp_end,omitempty"`
	TimestampEndSeconds   *float64 `json:"timestamp_end_seconds,omitempty"`
	EpisodeURL            string   `json:"episode_url,omitempty"`
	AudioURL              string   `json:"audio_url,omitempty"`
	Text                  string   `json:"text,omitempty"`
}

// Playable reports whether the citation carries any URL to open.
func (c Citation) Playable() bool {
	return c.EpisodeURL != "" || c.AudioURL != ""
}

// Seconds is a convenience for building *float64 fields.
func Seconds(v float64) *float64 { return &v }
