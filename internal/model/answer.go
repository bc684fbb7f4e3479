// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// Path records which request path produced an answer.
type Path string

const (
	PathStream  Path = "stream"
	PathGateway Path = "gateway"
	PathDirect  Path = "direct"
)

// Answer is the settled result of one question.
type Answer struct {
	Question          string     `json:"question"`
	Text              string     `json:"answer"`
	Citations         []Citation `json:"citations"`
	FollowUpQuestions []string   `json:"follow_up_questions"`

	// QALogID is set only when the stream delivered a done frame.
	QALogID   ID            `json:"qa_log_id,omitempty"`
	Cached    bool          `json:"cached,omitempty"`
	Latency   time.Duration `json:"latency,omitempty"`
	Path      Path          `json:"path,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// AskResponse is the body of the non-streaming answer endpoint, and the
// data member of a successful gateway envelope.
type AskResponse struct {
	Answer            string     `json:"answer"`
	Citations         []Citation `json:"citations"`
	FollowUpQuestions []string   `json:"follow_up_questions"`
	QALogID           ID         `json:"qa_log_id,omitempty"`
}
