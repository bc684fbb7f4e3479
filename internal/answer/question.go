// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package answer

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// MinQuestionLength is the shortest accepted question, in characters,
// after trimming.
const MinQuestionLength = 3

// User-facing messages.
const (
	MsgEmptyQuestion = "Please enter a question."
	MsgShortQuestion = "Please enter a more detailed question."
	MsgTimeout       = "The request took too long. Please try again."
	MsgTransport     = "Unable to reach the service. Please check your connection and try again."
	MsgGeneric       = "Something went wrong. Please try again later."
)

// Validate trims and NFC-normalizes a question. Empty and too-short
// questions return a validation error and must not reach the network.
func Validate(question string) (string, error) {
	q := strings.TrimSpace(norm.NFC.String(question))
	if q == "" {
		return "", transport.Validation(MsgEmptyQuestion)
	}
	if utf8.RuneCountInString(q) < MinQuestionLength {
		return "", transport.Validation(MsgShortQuestion)
	}
	return q, nil
}

// UserMessage maps a pipeline error to the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *transport.Error
	if errors.As(err, &e) && (e.Kind == transport.KindValidation || e.Kind == transport.KindServer) && e.Message != "" {
		return e.Message
	}
	switch transport.Classify(err) {
	case transport.KindTimeout:
		return MsgTimeout
	case transport.KindTransport, transport.KindAuth:
		return MsgTransport
	}
	return MsgGeneric
}

// =============================================================================
// LOADING MESSAGES
// =============================================================================

// LoadingInterval is how long each loading message stays up.
const LoadingInterval = 3 * time.Second

// LoadingMessages rotate while a question is in flight.
var LoadingMessages = []string{
	"Searching through podcast episodes…",
	"Listening to Mirror Talk wisdom…",
	"Finding the best insights for you…",
	"Connecting the dots across episodes…",
	"Almost there — crafting your answer…",
}

// LoadingMessage returns the message for the given tick, wrapping around.
func LoadingMessage(tick int) string {
	if tick < 0 {
		tick = -tick
	}
	return LoadingMessages[tick%len(LoadingMessages)]
}
