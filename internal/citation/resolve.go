// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"strconv"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/timestamp"
	"github.com/tobi-mt/ask-mirror-talk/internal/util"
)

const (
	// UnknownTitle is shown for citations without an episode title.
	UnknownTitle = "Unknown Episode"

	// ExcerptLength is the number of characters of excerpt kept.
	ExcerptLength = 150
)

// Resolved is a citation with everything needed to render and play it.
type Resolved struct {
	Citation model.Citation

	Title      string
	Start      float64
	End        float64
	StartLabel string
	TimeLabel  string
	AudioURL   string
	PlayURL    string
	Excerpt    string
}

// Resolve computes display seconds and the play target for c. Numeric
// second fields win over the string labels. The play target is the
// episode page when known, else the audio file with a #t= fragment for a
// positive start, else the bare audio file.
func Resolve(c model.Citation) Resolved {
	r := Resolved{
		Citation: c,
		Title:    c.EpisodeTitle,
		Start:    seconds(c.TimestampStartSeconds, c.TimestampStart),
		End:      seconds(c.TimestampEndSeconds, c.TimestampEnd),
		AudioURL: c.AudioURL,
		Excerpt:  util.Excerpt(c.Text, ExcerptLength),
	}
	if r.Title == "" {
		r.Title = UnknownTitle
	}
	r.StartLabel = timestamp.ToDisplay(r.Start)
	r.TimeLabel = timestamp.FormatRange(r.Start, r.End)

	switch {
	case c.EpisodeURL != "":
		r.PlayURL = c.EpisodeURL
	case c.AudioURL != "" && r.Start > 0:
		r.PlayURL = c.AudioURL + "#t=" + strconv.FormatFloat(r.Start, 'f', -1, 64)
	default:
		r.PlayURL = c.AudioURL
	}
	return r
}

// ResolveAll resolves a list in order.
func ResolveAll(cs []model.Citation) []Resolved {
	out := make([]Resolved, len(cs))
	for i, c := range cs {
		out[i] = Resolve(c)
	}
	return out
}

// Linkable reports whether the citation renders as an interactive link.
func (r Resolved) Linkable() bool {
	return r.PlayURL != ""
}

// Inline reports whether the citation can play in the inline player.
func (r Resolved) Inline() bool {
	return r.AudioURL != ""
}

// Key identifies the citation for player toggling.
func (r Resolved) Key() string {
	return r.Citation.EpisodeID.String() + "@" + strconv.FormatFloat(r.Start, 'f', -1, 64) + "|" + r.AudioURL
}

// StopAt returns the auto-pause position, or 0 when there is none.
func (r Resolved) StopAt() float64 {
	if r.End > r.Start {
		return r.End
	}
	return 0
}

func seconds(exact *float64, label string) float64 {
	if exact != nil {
		return *exact
	}
	return float64(timestamp.ParseDisplay(label))
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
