// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// ============================================================================
// CONSTANTS
// ============================================================================

const (
	// DefaultTimeout bounds each request on the fallback path.
	DefaultTimeout = 45 * time.Second

	// AskAction is the gateway action that relays a question.
	AskAction = "ask_mirror_talk"

	// RefreshAction is the gateway action that issues a new nonce.
	RefreshAction = "refresh_nonce"

	// DirectPath is the non-streaming endpoint relative to the API base.
	DirectPath = "/ask"
)

const (
	msgNoAnswer       = "No answer received from the service."
	msgGatewayFailure = "The service couldn't process your question."
)

// ============================================================================
// CLIENT
// ============================================================================

// Client performs the gateway request with nonce refresh and the direct
// fallback.
type Client struct {
	gatewayURL string
	apiBaseURL string
	nonces     *NonceStore
	http       transport.Doer
	timeout    time.Duration
	logger     *slog.Logger
}

// NewClient creates a fallback client. gatewayURL may be empty, in which
// case only the direct endpoint is used.
func NewClient(gatewayURL, apiBaseURL string, nonces *NonceStore) *Client {
	if nonces == nil {
		nonces = NewNonceStore("")
	}
	return &Client{
		gatewayURL: gatewayURL,
		apiBaseURL: apiBaseURL,
		nonces:     nonces,
		http:       transport.HTTPClient(),
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
	}
}

// WithHTTPClient overrides the HTTP client.
func (c *Client) WithHTTPClient(d transport.Doer) *Client {
	c.http = d
	return c
}

// WithTimeout overrides the per-request timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// WithLogger sets the logger.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	c.logger = l
	return c
}

// Nonces returns the nonce store.
func (c *Client) Nonces() *NonceStore {
	return c.nonces
}

// Ask runs the fallback chain and reports which path produced the answer.
func (c *Client) Ask(ctx context.Context, question string) (model.AskResponse, model.Path, error) {
	if c.gatewayURL != "" {
		resp, err := c.askGatewayWithRefresh(ctx, question)
		if err == nil {
			return resp, model.PathGateway, nil
		}
		if k := transport.Classify(err); k == transport.KindTimeout || ctx.Err() != nil {
			return model.AskResponse{}, model.PathGateway, err
		}
		c.logger.Warn("gateway failed, using direct endpoint", "error", err)
	}

	resp, err := c.AskDirect(ctx, question)
	return resp, model.PathDirect, err
}

func (c *Client) askGatewayWithRefresh(ctx context.Context, question string) (model.AskResponse, error) {
	resp, err := c.AskGateway(ctx, question, c.nonces.Get())
	if err == nil || !errors.Is(err, transport.ErrAuth) {
		return resp, err
	}

	c.logger.Info("gateway rejected nonce, refreshing")
	nonce, rerr := c.RefreshNonce(ctx)
	if rerr != nil {
		c.logger.Warn("nonce refresh failed", "error", rerr)
		return model.AskResponse{}, rerr
	}
	c.nonces.Set(nonce)
	return c.AskGateway(ctx, question, nonce)
}

// envelope is the gateway's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// AskGateway performs one gateway attempt.
func (c *Client) AskGateway(ctx context.Context, question, nonce string) (model.AskResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("action", AskAction)
	form.Set("nonce", nonce)
	form.Set("question", question)

	req, err := transport.NewFormRequest(ctx, c.gatewayURL, form)
	if err != nil {
		return model.AskResponse{}, transport.Wrap("gateway", err)
	}

	var env envelope
	if err := transport.DoJSON(c.http, "gateway", req, &env); err != nil {
		return model.AskResponse{}, err
	}
	if !env.Success {
		var failure struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(env.Data, &failure)
		msg := failure.Message
		if msg == "" {
			msg = msgGatewayFailure
		}
		return model.AskResponse{}, &transport.Error{Kind: transport.KindServer, Op: "gateway", Status: http.StatusOK, Message: msg}
	}

	var out model.AskResponse
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return model.AskResponse{}, &transport.Error{Kind: transport.KindServer, Op: "gateway", Message: "invalid response body", Err: err}
	}
	if strings.TrimSpace(out.Answer) == "" {
		return model.AskResponse{}, &transport.Error{Kind: transport.KindServer, Op: "gateway", Message: msgNoAnswer}
	}
	return out, nil
}

// RefreshNonce asks the gateway for a new nonce. Both {"nonce": ...} and
// {"success": true, "data": {"nonce": ...}} replies are accepted.
func (c *Client) RefreshNonce(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	form := url.Values{}
	form.Set("action", RefreshAction)
	req, err := transport.NewFormRequest(ctx, c.gatewayURL, form)
	if err != nil {
		return "", transport.Wrap("refresh_nonce", err)
	}

	var reply struct {
		Nonce string `json:"nonce"`
		Data  struct {
			Nonce string `json:"nonce"`
		} `json:"data"`
	}
	if err := transport.DoJSON(c.http, "refresh_nonce", req, &reply); err != nil {
		return "", err
	}
	nonce := reply.Nonce
	if nonce == "" {
		nonce = reply.Data.Nonce
	}
	if nonce == "" {
		return "", &transport.Error{Kind: transport.KindAuth, Op: "refresh_nonce", Message: "no nonce in response"}
	}
	return nonce, nil
}

// AskDirect posts the question straight to the answer service.
func (c *Client) AskDirect(ctx context.Context, question string) (model.AskResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := transport.NewJSONRequest(ctx, transport.JoinURL(c.apiBaseURL, DirectPath), map[string]string{"question": question})
	if err != nil {
		return model.AskResponse{}, transport.Wrap("direct", err)
	}

	var out model.AskResponse
	if err := transport.DoJSON(c.http, "direct", req, &out); err != nil {
		return model.AskResponse{}, err
	}
	if strings.TrimSpace(out.Answer) == "" {
		return model.AskResponse{}, &transport.Error{Kind: transport.KindServer, Op: "direct", Message: msgNoAnswer}
	}
	return out, nil
}
