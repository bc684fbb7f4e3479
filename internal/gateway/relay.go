// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// RelayTimeout bounds the relay's upstream call.
const RelayTimeout = 30 * time.Second

// MaxFormSize caps the relay request body.
const MaxFormSize = 64 * 1024

// Relay serves the gateway endpoint: it checks the nonce and forwards the
// question to the answer service's /ask endpoint, wrapping the result in
// the {success, data} envelope.
type Relay struct {
	apiBaseURL string
	nonces     *Nonces
	http       transport.Doer
	timeout    time.Duration
	logger     *slog.Logger
}

// NewRelay creates a relay in front of apiBaseURL.
func NewRelay(apiBaseURL string, nonces *Nonces) *Relay {
	return &Relay{
		apiBaseURL: apiBaseURL,
		nonces:     nonces,
		http:       transport.HTTPClient(),
		timeout:    RelayTimeout,
		logger:     slog.Default(),
	}
}

// WithHTTPClient overrides the upstream HTTP client.
func (r *Relay) WithHTTPClient(d transport.Doer) *Relay {
	r.http = d
	return r
}

// WithLogger sets the logger.
func (r *Relay) WithLogger(l *slog.Logger) *Relay {
	r.logger = l
	return r
}

// ServeHTTP dispatches on the form's action field.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed.")
		return
	}
	req.Body = http.MaxBytesReader(w, req.Body, MaxFormSize)
	if err := req.ParseForm(); err != nil {
		writeFailure(w, http.StatusBadRequest, "Malformed request.")
		return
	}

	switch req.PostForm.Get("action") {
	case AskAction:
		r.handleAsk(w, req)
	case RefreshAction:
		r.handleRefresh(w)
	default:
		writeFailure(w, http.StatusBadRequest, "Unknown action.")
	}
}

func (r *Relay) handleRefresh(w http.ResponseWriter) {
	nonce, err := r.nonces.Issue()
	if err != nil {
		r.logger.Error("nonce issue failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Could not refresh security token.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nonce": nonce})
}

func (r *Relay) handleAsk(w http.ResponseWriter, req *http.Request) {
	if err := r.nonces.Verify(req.PostForm.Get("nonce")); err != nil {
		r.logger.Info("relay rejected nonce", "error", err)
		writeFailure(w, http.StatusForbidden, "Security check failed. Please refresh the page.")
		return
	}

	question := strings.TrimSpace(req.PostForm.Get("question"))
	if question == "" {
		writeFailure(w, http.StatusBadRequest, "Question cannot be empty.")
		return
	}

	ctx, cancel := context.WithTimeout(req.Context(), r.timeout)
	defer cancel()

	upstream, err := transport.NewJSONRequest(ctx, transport.JoinURL(r.apiBaseURL, DirectPath), map[string]string{"question": question})
	if err != nil {
		writeFailure(w, http.StatusInternalServerError, "Could not connect to API server. Please try again later.")
		return
	}

	resp, err := r.http.Do(upstream)
	if err != nil {
		r.logger.Error("relay upstream error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Could not connect to API server. Please try again later.")
		return
	}
	defer resp.Body.Close()

	body, err := transport.ReadBody(resp)
	if err != nil {
		r.logger.Error("relay upstream read error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Could not connect to API server. Please try again later.")
		return
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("relay upstream status", "status", resp.StatusCode, "body", truncate(string(body), 200))
		writeFailure(w, resp.StatusCode, "API returned an error. Please try again later.")
		return
	}

	var data json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil {
		r.logger.Error("relay upstream decode error", "error", err)
		writeFailure(w, http.StatusInternalServerError, "Invalid response from API server.")
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	data, _ := json.Marshal(map[string]string{"message": message})
	writeJSON(w, status, envelope{Success: false, Data: data})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
