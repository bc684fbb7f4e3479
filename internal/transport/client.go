// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds ordinary request/response calls.
	DefaultTimeout = 60 * time.Second

	// MaxResponseSize caps how much of a non-streamed body is read.
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent identifies this client to the answer service.
	UserAgent = "ask-mirror-talk-go/1.0"
)

var (
	// PERFORMANCE: Connection pooling reduces TCP handshake overhead.
	sharedTransport = &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	}

	sharedHTTPClient = &http.Client{
		Transport: sharedTransport,
		Timeout:   DefaultTimeout,
	}

	// No timeout for streaming - controlled via context
	sharedStreamingClient = &http.Client{
		Transport: sharedTransport,
	}
)

// HTTPClient returns the pooled client for request/response calls.
func HTTPClient() *http.Client { return sharedHTTPClient }

// StreamingClient returns the pooled client for long-lived streams.
func StreamingClient() *http.Client { return sharedStreamingClient }

// Doer is the part of *http.Client the request helpers need.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// JoinURL appends path to base, tolerating a trailing slash on base.
func JoinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// NewJSONRequest builds a POST request carrying v as JSON.
func NewJSONRequest(ctx context.Context, endpoint string, v any) (*http.Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// NewFormRequest builds a form-encoded POST request.
func NewFormRequest(ctx context.Context, endpoint string, form url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// ReadBody reads a response body up to MaxResponseSize.
func ReadBody(resp *http.Response) ([]byte, error) {
	// SECURITY: Limit response size to prevent memory exhaustion
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if len(body) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}

// ServerMessage extracts a human-readable message from an error body. It
// understands {"detail": ...}, {"message": ...}, {"error": ...} and the
// gateway's {"data": {"message": ...}} envelope.
func ServerMessage(body []byte) string {
	var probe struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   json.RawMessage `json:"error"`
		Data    struct {
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return ""
	}
	switch {
	case probe.Data.Message != "":
		return probe.Data.Message
	case probe.Message != "":
		return probe.Message
	}
	for _, raw := range []json.RawMessage{probe.Detail, probe.Error} {
		var s string
		if len(raw) > 0 && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
		var nested struct {
			Message string `json:"message"`
		}
		if len(raw) > 0 && json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return nested.Message
		}
	}
	return ""
}

// DoJSON sends req with c and decodes a 2xx body into out (which may be
// nil). Non-2xx responses become StatusError values carrying the server's
// message.
func DoJSON(c Doer, op string, req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return Wrap(op, err)
	}
	defer resp.Body.Close()

	body, err := ReadBody(resp)
	if err != nil {
		return Wrap(op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return StatusError(op, resp.StatusCode, ServerMessage(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindServer, Op: op, Status: resp.StatusCode, Message: "invalid response body", Err: err}
	}
	return nil
}
