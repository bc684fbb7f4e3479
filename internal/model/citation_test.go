// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_UnmarshalJSON(t *testing.T) {
	var v struct {
		A ID `json:"a"`
		B ID `json:"b"`
		C ID `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"x-1","b":42,"c":null}`), &v))
	assert.Equal(t, ID("x-1"), v.A)
	assert.Equal(t, ID("42"), v.B)
	assert.True(t, v.C.IsZero())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"x-1","b":"42","c":""}`, string(out))
}

func TestID_Int(t *testing.T) {
	n, ok := ID("17").Int()
	assert.True(t, ok)
	assert.Equal(t, int64(17), n)

	n, ok = ID("42abc").Int()
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	_, ok = ID("abc").Int()
	assert.False(t, ok)
}

func TestCitation_Decode(t *testing.T) {
	raw := `{"episode_id": 7, "episode_title": "On Grief", "timestamp_start": "2:05",
		"timestamp_start_seconds": 125, "audio_url": "https://cdn/ep7.mp3", "text": "excerpt"}`
	var c Citation
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	assert.Equal(t, ID("7"), c.EpisodeID)
	require.NotNil(t, c.TimestampStartSeconds)
	assert.Equal(t, 125.0, *c.TimestampStartSeconds)
	assert.Nil(t, c.TimestampEndSeconds)
	assert.True(t, c.Playable())
	assert.False(t, Citation{EpisodeTitle: "x"}.Playable())
}
