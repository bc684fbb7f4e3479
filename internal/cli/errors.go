// errors.go - Error display and exit codes for amt commands.
//
// Handlers always return errors; Main decides how to show them and which
// exit code to use.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/config"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid usage or an invalid question
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a rejected nonce on every path
	ExitAuthError = 4
	// ExitNetworkError indicates the service could not be reached
	ExitNetworkError = 5
	// ExitServerError indicates the service answered with an error
	ExitServerError = 6
	// ExitNotFoundError indicates a history entry was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates the request timed out
	ExitTimeoutError = 8
	// ExitInterrupted indicates the user pressed Ctrl+C
	ExitInterrupted = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line.
type UsageError struct {
	Reason  string
	Example string // optional
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("%s\nExample: %s", e.Reason, e.Example)
	}
	return e.Reason
}

// ErrMissingArgument creates a usage error for a missing argument.
func ErrMissingArgument(argName, example string) error {
	return &UsageError{Reason: fmt.Sprintf("missing %s", argName), Example: example}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps an error to the process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	if errors.As(err, &usage) {
		return ExitUsageError
	}
	var cfgErr config.ValidateErrors
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	if errors.Is(err, storage.ErrNotFound) {
		return ExitNotFoundError
	}

	var te *transport.Error
	if !errors.As(err, &te) {
		return ExitGeneralError
	}
	switch te.Kind {
	case transport.KindValidation:
		return ExitUsageError
	case transport.KindAuth:
		return ExitAuthError
	case transport.KindTransport:
		return ExitNetworkError
	case transport.KindTimeout:
		return ExitTimeoutError
	case transport.KindServer:
		return ExitServerError
	case transport.KindCanceled:
		return ExitInterrupted
	}
	return ExitGeneralError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err for the user. Request failures are shown as
// their user-facing message; the technical detail goes to the log.
func DisplayError(w io.Writer, command string, err error, jsonMode bool) {
	if err == nil {
		return
	}
	msg := err.Error()
	var te *transport.Error
	if errors.As(err, &te) {
		msg = answer.UserMessage(err)
	}

	if jsonMode {
		NewJSONErrorResponse(command, err, msg).Print(w)
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), msg)
}

func errorType(err error) string {
	var usage *UsageError
	switch {
	case errors.As(err, &usage):
		return "usage"
	case errors.Is(err, storage.ErrNotFound):
		return "not_found"
	}
	var te *transport.Error
	if errors.As(err, &te) && te.Kind != transport.KindUnknown {
		return te.Kind.String()
	}
	return "general"
}
