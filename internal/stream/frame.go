// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
)

// DataPrefix marks an event line that carries a frame. The single space
// after the colon is optional on input.
const DataPrefix = "data: "

var dataField = []byte("data:")

// FrameType is the discriminant of a Frame.
type FrameType string

const (
	FrameStatus    FrameType = "status"
	FrameChunk     FrameType = "chunk"
	FrameCitations FrameType = "citations"
	FrameFollowUp  FrameType = "follow_up"
	FrameDone      FrameType = "done"
)

// Frame is one event from the answer stream. Only the fields belonging to
// Type are meaningful.
type Frame struct {
	Type FrameType `json:"type"`

	// status
	Message string `json:"message,omitempty"`

	// chunk
	Text string `json:"text,omitempty"`

	// citations
	Citations []model.Citation `json:"citations,omitempty"`

	// follow_up
	Questions []string `json:"questions,omitempty"`

	// done
	QALogID   model.ID `json:"qa_log_id,omitempty"`
	LatencyMS float64  `json:"latency_ms,omitempty"`
	Cached    bool     `json:"cached,omitempty"`
}

var (
	// ErrNotData is returned for lines that are not data lines (comments,
	// event names, keep-alives, blank separators).
	ErrNotData = errors.New("not a data line")

	// ErrUnknownFrame is returned for a well-formed payload whose type is
	// not one of the known frame types.
	ErrUnknownFrame = errors.New("unknown frame type")
)

// EpisodeHint reports whether a status frame talks about episodes, which
// the UI shows as a deeper search indicator.
func (f Frame) EpisodeHint() bool {
	return f.Type == FrameStatus && strings.Contains(strings.ToLower(f.Message), "episode")
}

// ParseFrame decodes one line. Lines without the data prefix return
// ErrNotData; malformed JSON returns the decode error.
func ParseFrame(line []byte) (Frame, error) {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, dataField) {
		return Frame{}, ErrNotData
	}
	payload := bytes.TrimPrefix(line[len(dataField):], []byte(" "))

	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return Frame{}, err
	}

	switch f.Type {
	case FrameStatus, FrameChunk, FrameCitations, FrameFollowUp, FrameDone:
		return f, nil
	}
	return Frame{}, ErrUnknownFrame
}
