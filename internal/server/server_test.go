// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tobi-mt/ask-mirror-talk/internal/config"
	"github.com/tobi-mt/ask-mirror-talk/internal/gateway"
	"github.com/tobi-mt/ask-mirror-talk/internal/proxy"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
)

// =============================================================================
// HELPERS
// =============================================================================

type fixture struct {
	site    *httptest.Server
	api     *httptest.Server
	apiHits atomic.Int64
	cfg     *config.Config
	srv     *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}

	f.site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, "<p>page %s</p>", r.URL.Path)
	}))
	t.Cleanup(f.site.Close)

	f.api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case gateway.DirectPath:
			fmt.Fprint(w, `{"answer":"Breathe.","citations":[],"qa_log_id":7}`)
		default:
			fmt.Fprintf(w, `{"path":%q}`, r.URL.Path)
		}
	}))
	t.Cleanup(f.api.Close)

	cfg := config.Default()
	cfg.API.BaseURL = f.api.URL
	cfg.Proxy.SiteURL = f.site.URL
	cfg.Proxy.Listen = "127.0.0.1:0"
	cfg.Proxy.Precache = false
	cfg.Proxy.NonceSecret = "test-secret"
	cfg.Proxy.RateLimit = 100
	cfg.Proxy.RateBurst = 100
	f.cfg = cfg

	db, err := storage.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f.srv, err = New(cfg, proxy.NewSQLiteStore(db))
	require.NoError(t, err)
	return f
}

func (f *fixture) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func relayForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, RelayPath, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// =============================================================================
// SERVER TESTS
// =============================================================================

func TestNew_RequiresSiteURL(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg, nil)
	assert.Error(t, err)
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	f := newFixture(t)
	cfg := *f.cfg
	cfg.Proxy.PruneSchedule = "not a cron"

	db, err := storage.Open(filepath.Join(t.TempDir(), "c.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = New(&cfg, proxy.NewSQLiteStore(db))
	assert.ErrorContains(t, err, "prune_schedule")
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, proxy.CacheVersion, body.CacheVersion)
	assert.Equal(t, "sqlite", body.CacheBackend)
}

func TestProxy_SitePages(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/ask-mirror-talk/", nil)
	req.Header.Set("Accept", "text/html")
	rec := f.do(t, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "page /ask-mirror-talk/")
	assert.Empty(t, rec.Header().Get("X-Frame-Options"))
}

func TestProxy_APIMount(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/amt-api/api/citation/click", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"path":"/api/citation/click"}`, rec.Body.String())
}

func TestMetrics_CountProxiedRequests(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept", "text/html")
	f.do(t, req)

	rec := f.do(t, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `amt_proxy_requests_total{class="html",outcome="network"} 1`)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRelay_RefreshThenAsk(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, relayForm(url.Values{"action": {gateway.RefreshAction}}))
	require.Equal(t, http.StatusOK, rec.Code)
	var refreshed struct {
		Nonce string `json:"nonce"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &refreshed))
	require.NotEmpty(t, refreshed.Nonce)

	rec = f.do(t, relayForm(url.Values{
		"action":   {gateway.AskAction},
		"nonce":    {refreshed.Nonce},
		"question": {"How do I slow down?"},
	}))
	require.Equal(t, http.StatusOK, rec.Code)
	var env struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Contains(t, string(env.Data), "Breathe.")
}

func TestRelay_RejectsBadNonce(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, relayForm(url.Values{
		"action":   {gateway.AskAction},
		"nonce":    {"forged"},
		"question": {"hi"},
	}))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Zero(t, f.apiHits.Load())
}

func TestRelay_RateLimited(t *testing.T) {
	f := newFixture(t)
	f.srv.limiter.SetLimit(1, 2)

	codes := make([]int, 3)
	for i := range codes {
		req := relayForm(url.Values{"action": {gateway.RefreshAction}})
		req.RemoteAddr = "203.0.113.9:5555"
		codes[i] = f.do(t, req).Code
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestPrune_DisabledWithoutMaxAge(t *testing.T) {
	f := newFixture(t)
	cfg := *f.cfg
	cfg.Proxy.MaxAgeHours = 0
	f.srv.Reload(&cfg)

	n, err := f.srv.Prune(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, f.srv.schedule.Load().prune)
}

func TestReload_KeepsScheduleOnError(t *testing.T) {
	f := newFixture(t)
	before := f.srv.schedule.Load()

	cfg := *f.cfg
	cfg.Proxy.PruneSchedule = "every tuesday"
	cfg.Proxy.RateLimit = 1
	f.srv.Reload(&cfg)

	assert.Same(t, before, f.srv.schedule.Load())
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- f.srv.Run(ctx) }()

	require.Eventually(t, func() bool { return f.srv.Addr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + f.srv.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), `"status":"ok"`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ShutdownTimeout):
		t.Fatal("Run did not return after cancel")
	}
}

// =============================================================================
// MIDDLEWARE TESTS
// =============================================================================

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct", "203.0.113.1:1234", "", "", "203.0.113.1"},
		{"untrusted peer ignores headers", "203.0.113.1:1234", "198.51.100.7", "", "203.0.113.1"},
		{"trusted proxy uses first forwarded", "127.0.0.1:1234", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"trusted proxy falls back to real ip", "10.1.2.3:80", "garbage", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy without headers", "192.168.1.5:80", "", "", "192.168.1.5"},
		{"no port", "203.0.113.1", "", "", "203.0.113.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "clients are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refilled")

	now = now.Add(limiterIdle + time.Minute)
	rl.Cleanup()
	assert.Empty(t, rl.clients)
}

func TestRateLimiter_Unlimited(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("a"))
	}
}

func TestRateLimitMiddleware_RetryAfter(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	h := RateLimitMiddleware(rl, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestChain_Order(t *testing.T) {
	var order []string
	mark := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(mark("a"), mark("b"), mark("c"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "c", "handler"}, order)
}
