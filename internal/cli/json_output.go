// json_output.go - JSON output for scripting.
//
// Every command that honours --json prints one JSONResponse envelope on
// stdout; human-readable progress goes to stderr.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package cli

import (
	"encoding/json"
	"io"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data any `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// ErrorType and ExitCode classify a failure
	ErrorType string `json:"error_type,omitempty"`
	ExitCode  int    `json:"exit_code,omitempty"`

	// Timestamp is the RFC 3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response with a user-facing
// message.
func NewJSONErrorResponse(command string, err error, message string) *JSONResponse {
	return &JSONResponse{
		Success:   false,
		Error:     &message,
		ErrorType: errorType(err),
		ExitCode:  GetExitCode(err),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print writes the response to w, indented.
func (r *JSONResponse) Print(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// AskData is the data of `ask --json`.
type AskData struct {
	model.Answer
	Sources   []SourceData `json:"sources"`
	HistoryID string       `json:"history_id,omitempty"`
	LatencyMS int64        `json:"latency_ms"`
}

// SourceData is one resolved citation.
type SourceData struct {
	Index     int     `json:"index"`
	Title     string  `json:"title"`
	Time      string  `json:"time"`
	Start     float64 `json:"start"`
	End       float64 `json:"end"`
	PlayURL   string  `json:"play_url,omitempty"`
	AudioURL  string  `json:"audio_url,omitempty"`
	EpisodeID string  `json:"episode_id,omitempty"`
	Excerpt   string  `json:"excerpt,omitempty"`
}

// newAskData builds the JSON view of an answer.
func newAskData(a model.Answer, historyID string) AskData {
	resolved := citation.ResolveAll(a.Citations)
	sources := make([]SourceData, len(resolved))
	for i, r := range resolved {
		sources[i] = SourceData{
			Index:     i + 1,
			Title:     r.Title,
			Time:      r.TimeLabel,
			Start:     r.Start,
			End:       r.End,
			PlayURL:   r.PlayURL,
			AudioURL:  r.AudioURL,
			EpisodeID: r.Citation.EpisodeID.String(),
			Excerpt:   r.Excerpt,
		}
	}
	if a.Citations == nil {
		a.Citations = []model.Citation{}
	}
	if a.FollowUpQuestions == nil {
		a.FollowUpQuestions = []string{}
	}
	return AskData{
		Answer:    a,
		Sources:   sources,
		HistoryID: historyID,
		LatencyMS: a.Latency.Milliseconds(),
	}
}

// HistoryEntryData is one row of `history --json`.
type HistoryEntryData struct {
	ID        string     `json:"id"`
	Question  string     `json:"question"`
	Preview   string     `json:"preview"`
	Path      model.Path `json:"path"`
	Sources   int        `json:"sources"`
	CreatedAt time.Time  `json:"created_at"`
}
