// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
)

// Kind classifies a failure on the request path.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindTransport
	KindTimeout
	KindAuth
	KindServer
	KindCanceled
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindServer:
		return "server"
	case KindCanceled:
		return "canceled"
	}
	return "unknown"
}

// Error is a classified request failure.
type Error struct {
	Kind Kind

	// Message is a human-readable message supplied by the backend or by
	// validation. It may be empty.
	Message string

	// Status is the HTTP status for KindServer and KindAuth.
	Status int

	// Op names the step that failed ("stream", "gateway", "refresh_nonce",
	// "direct").
	Op string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinel errors by kind so errors.Is(err, ErrTimeout) works
// for any timeout-classified *Error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Message == "" && t.Status == 0 && t.Err == nil && t.Kind == e.Kind
}

// Sentinel values for errors.Is.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrTimeout    = &Error{Kind: KindTimeout}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrServer     = &Error{Kind: KindServer}
)

// Validation builds a validation error.
func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// Classify maps err onto a Kind. An abort is canceled and deadline expiry
// is a timeout, both ahead of the network error that carries them. Only
// network and connection failures are transport; anything else is unknown.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return KindTransport
	}
	return KindUnknown
}

// Wrap classifies a raw client error for op. Already classified errors pass
// through unchanged.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: Classify(err), Op: op, Err: err}
}

// StatusError builds the error for a non-2xx response. 401 and 403 are auth
// failures; everything else is a server error.
func StatusError(op string, status int, message string) *Error {
	kind := KindServer
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = KindAuth
	}
	return &Error{Kind: kind, Op: op, Status: status, Message: message}
}
