// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// StreamPath is the streaming endpoint relative to the API base URL.
const StreamPath = "/ask/stream"

// Client opens answer streams against the answer service.
type Client struct {
	baseURL string
	http    transport.Doer
	logger  *slog.Logger
}

// NewClient creates a streaming client for the given API base URL using
// the shared streaming HTTP client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    transport.StreamingClient(),
		logger:  slog.Default(),
	}
}

// WithHTTPClient overrides the HTTP client.
func (c *Client) WithHTTPClient(d transport.Doer) *Client {
	c.http = d
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.logger = l
	return c
}

// Open posts the question and returns the event stream body. A non-2xx
// status is returned as a classified error and the body is closed.
func (c *Client) Open(ctx context.Context, question string) (io.ReadCloser, error) {
	req, err := transport.NewJSONRequest(ctx, transport.JoinURL(c.baseURL, StreamPath), map[string]string{"question": question})
	if err != nil {
		return nil, transport.Wrap("stream", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transport.Wrap("stream", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := transport.ReadBody(resp)
		c.logger.Warn("stream request rejected", "status", resp.StatusCode)
		return nil, transport.StatusError("stream", resp.StatusCode, transport.ServerMessage(body))
	}
	return resp.Body, nil
}
