// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package proxy

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

const (
	// DefaultAPIMount is the local path prefix forwarded to the answer API.
	DefaultAPIMount = "/amt-api"

	// MaxCachedBody is the largest body stored in the cache. Larger
	// responses are streamed through uncached.
	MaxCachedBody = 5 * 1024 * 1024

	refreshTimeout = 30 * time.Second
)

// hopHeaders are stripped between client and upstream.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Proxy-Connection",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// =============================================================================
// PROXY
// =============================================================================

// Config locates the upstreams.
type Config struct {
	// SiteURL is the origin serving pages and static assets.
	SiteURL string

	// APIBase is the answer API origin.
	APIBase string

	// APIMount is the local prefix forwarded to APIBase.
	APIMount string

	// AppShell lists site paths pre-cached by Install.
	AppShell []string
}

// Proxy applies the per-class caching policies.
type Proxy struct {
	site     *url.URL
	api      *url.URL
	apiBase  string
	mount    string
	appShell []string

	store   CacheStore
	client  *http.Client
	metrics *Metrics
	logger  *slog.Logger

	wg sync.WaitGroup
}

// New creates a proxy over store.
func New(cfg Config, store CacheStore) (*Proxy, error) {
	site, err := url.Parse(cfg.SiteURL)
	if err != nil || site.Scheme == "" || site.Host == "" {
		return nil, fmt.Errorf("invalid site url %q", cfg.SiteURL)
	}
	api, err := url.Parse(cfg.APIBase)
	if err != nil || api.Scheme == "" || api.Host == "" {
		return nil, fmt.Errorf("invalid api base %q", cfg.APIBase)
	}
	if store == nil {
		return nil, errors.New("cache store is required")
	}

	mount := cfg.APIMount
	if mount == "" {
		mount = DefaultAPIMount
	}
	shell := cfg.AppShell
	if shell == nil {
		shell = DefaultAppShell
	}

	return &Proxy{
		site:     site,
		api:      api,
		apiBase:  strings.TrimRight(cfg.APIBase, "/"),
		mount:    "/" + strings.Trim(mount, "/"),
		appShell: shell,
		store:    store,
		client:   transport.HTTPClient(),
		metrics:  NewMetrics(nil),
		logger:   slog.Default(),
	}, nil
}

// WithHTTPClient overrides the upstream client.
func (p *Proxy) WithHTTPClient(c *http.Client) *Proxy {
	p.client = c
	return p
}

// WithMetrics sets the collectors to record into.
func (p *Proxy) WithMetrics(m *Metrics) *Proxy {
	p.metrics = m
	return p
}

// WithLogger sets the logger.
func (p *Proxy) WithLogger(l *slog.Logger) *Proxy {
	p.logger = l
	return p
}

// Wait blocks until background refreshes finish.
func (p *Proxy) Wait() {
	p.wg.Wait()
}

// ServeHTTP routes r to its upstream under the policy for its class.
// Absolute-form requests for any origin other than the site or the API are
// refused.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := p.target(r)
	if target == nil {
		p.metrics.Requests.WithLabelValues(ClassBypass.String(), OutcomeRejected).Inc()
		p.logger.Warn("refusing request for foreign origin", "url", r.URL.String(), "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	class := Classify(r, target, p.apiBase)

	switch class {
	case ClassAPI:
		p.networkFirst(w, r, target, class, APICache)
	case ClassStatic:
		p.cacheFirst(w, r, target, class, StaticCache)
	case ClassHTML:
		p.networkFirst(w, r, target, class, StaticCache)
	default:
		p.passThrough(w, r, target, class)
	}
}

// target maps r to its upstream URL. Absolute request URLs are used as
// they are when they name the site or API origin, and nil otherwise; paths
// under the API mount go to the API; everything else goes to the site.
func (p *Proxy) target(r *http.Request) *url.URL {
	if r.URL.IsAbs() {
		if !sameOrigin(r.URL, p.site) && !sameOrigin(r.URL, p.api) {
			return nil
		}
		u := *r.URL
		return &u
	}

	base := p.site
	path := r.URL.Path
	if path == p.mount || strings.HasPrefix(path, p.mount+"/") {
		base = p.api
		path = strings.TrimPrefix(path, p.mount)
	}

	u := *base
	u.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(path, "/")
	u.RawPath = ""
	u.RawQuery = r.URL.RawQuery
	return &u
}

// =============================================================================
// POLICIES
// =============================================================================

func (p *Proxy) passThrough(w http.ResponseWriter, r *http.Request, target *url.URL, class Class) {
	p.metrics.Requests.WithLabelValues(class.String(), OutcomeBypass).Inc()

	rt := p.client.Transport
	if rt == nil {
		rt = http.DefaultTransport
	}
	rp := &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL = target
			pr.Out.Host = ""
		},
		Transport:     rt,
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.metrics.UpstreamErrors.WithLabelValues(class.String()).Inc()
			p.logger.Warn("upstream request failed", "url", target.String(), "error", err)
			http.Error(w, "Bad Gateway", http.StatusBadGateway)
		},
	}
	rp.ServeHTTP(w, r)
}

func (p *Proxy) networkFirst(w http.ResponseWriter, r *http.Request, target *url.URL, class Class, cache string) {
	key := target.String()

	resp, err := p.fetch(r.Context(), r.Header, target, class)
	if err == nil {
		defer resp.Body.Close()
		p.metrics.Requests.WithLabelValues(class.String(), OutcomeNetwork).Inc()
		p.forward(r.Context(), w, resp, cache, key)
		return
	}
	p.logger.Warn("upstream unavailable, trying cache", "url", key, "error", err)

	if e, ok := p.lookup(r.Context(), cache, key); ok {
		p.metrics.Requests.WithLabelValues(class.String(), OutcomeCache).Inc()
		serveEntry(w, e)
		return
	}

	p.metrics.Requests.WithLabelValues(class.String(), OutcomeOffline).Inc()
	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, OfflinePage)
		return
	}
	offline(w)
}

func (p *Proxy) cacheFirst(w http.ResponseWriter, r *http.Request, target *url.URL, class Class, cache string) {
	key := target.String()

	if e, ok := p.lookup(r.Context(), cache, key); ok {
		p.metrics.Requests.WithLabelValues(class.String(), OutcomeCache).Inc()
		serveEntry(w, e)
		p.refresh(r.Header.Clone(), target, class, cache)
		return
	}

	resp, err := p.fetch(r.Context(), r.Header, target, class)
	if err != nil {
		p.logger.Warn("upstream unavailable for static asset", "url", key, "error", err)
		p.metrics.Requests.WithLabelValues(class.String(), OutcomeOffline).Inc()
		offline(w)
		return
	}
	defer resp.Body.Close()
	p.metrics.Requests.WithLabelValues(class.String(), OutcomeNetwork).Inc()
	p.forward(r.Context(), w, resp, cache, key)
}

// refresh re-fetches a cached asset in the background and stores the new
// copy when the upstream answers 2xx.
func (p *Proxy) refresh(header http.Header, target *url.URL, class Class, cache string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
		defer cancel()

		resp, err := p.fetch(ctx, header, target, class)
		if err != nil {
			p.logger.Debug("background refresh failed", "url", target.String(), "error", err)
			return
		}
		defer resp.Body.Close()
		p.metrics.Refreshes.Inc()

		if !isOK(resp.StatusCode) {
			return
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCachedBody+1))
		if err != nil || len(body) > MaxCachedBody {
			return
		}
		p.put(ctx, cache, target.String(), resp, body)
	}()
}

// =============================================================================
// INSTALL / ACTIVATE / PRUNE
// =============================================================================

// Install pre-caches the app shell into the static cache. Individual
// failures do not stop the rest; it returns how many were cached and the
// joined errors.
func (p *Proxy) Install(ctx context.Context) (int, error) {
	var errs []error
	cached := 0
	for _, path := range p.appShell {
		target := p.target(&http.Request{URL: &url.URL{Path: path}})
		resp, err := p.fetch(ctx, nil, target, ClassStatic)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, MaxCachedBody+1))
		resp.Body.Close()
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		case !isOK(resp.StatusCode):
			errs = append(errs, fmt.Errorf("%s: status %d", path, resp.StatusCode))
		case len(body) > MaxCachedBody:
			errs = append(errs, fmt.Errorf("%s: body too large", path))
		default:
			if p.put(ctx, StaticCache, target.String(), resp, body) {
				cached++
			}
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		p.logger.Warn("app shell pre-cache incomplete", "cached", cached, "error", err)
	} else {
		p.logger.Info("app shell pre-cached", "version", CacheVersion, "entries", cached)
	}
	return cached, err
}

// Activate removes every cache entry that does not belong to CacheVersion.
func (p *Proxy) Activate(ctx context.Context) (int64, error) {
	n, err := p.store.DeleteVersionsExcept(ctx, CacheVersion)
	if err != nil {
		return n, fmt.Errorf("failed to purge old cache versions: %w", err)
	}
	p.metrics.Purged.WithLabelValues("activate").Add(float64(n))
	if n > 0 {
		p.logger.Info("removed old cache versions", "entries", n, "version", CacheVersion)
	}
	return n, nil
}

// Prune removes entries stored more than maxAge ago.
func (p *Proxy) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := p.store.Prune(ctx, time.Now().Add(-maxAge))
	if err != nil {
		return n, fmt.Errorf("failed to prune cache: %w", err)
	}
	p.metrics.Purged.WithLabelValues("prune").Add(float64(n))
	return n, nil
}

// =============================================================================
// HELPERS
// =============================================================================

// fetch performs an upstream GET carrying the client's end-to-end headers.
func (p *Proxy) fetch(ctx context.Context, header http.Header, target *url.URL, class Class) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		req.Header[k] = append([]string(nil), vs...)
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	// Let the transport negotiate compression so cached bodies are plain.
	req.Header.Del("Accept-Encoding")

	start := time.Now()
	resp, err := p.client.Do(req)
	p.metrics.Upstream.WithLabelValues(class.String()).Observe(time.Since(start).Seconds())
	if err != nil {
		p.metrics.UpstreamErrors.WithLabelValues(class.String()).Inc()
		return nil, err
	}
	return resp, nil
}

// forward writes resp to w and caches it when it is 2xx and small enough.
func (p *Proxy) forward(ctx context.Context, w http.ResponseWriter, resp *http.Response, cache, key string) {
	peek, err := io.ReadAll(io.LimitReader(resp.Body, MaxCachedBody+1))
	if err != nil {
		p.logger.Warn("failed to read upstream body", "url", key, "error", err)
		http.Error(w, "Bad Gateway", http.StatusBadGateway)
		return
	}

	if isOK(resp.StatusCode) && len(peek) <= MaxCachedBody {
		p.put(ctx, cache, key, resp, peek)
	}

	copyHeader(w.Header(), resp.Header)
	w.Header().Set("X-Cache", "MISS")
	w.WriteHeader(resp.StatusCode)
	w.Write(peek)
	if len(peek) > MaxCachedBody {
		io.Copy(w, resp.Body)
	}
}

func (p *Proxy) put(ctx context.Context, cache, key string, resp *http.Response, body []byte) bool {
	header := http.Header{}
	copyHeader(header, resp.Header)
	err := p.store.Put(ctx, Entry{
		Version:  CacheVersion,
		Cache:    cache,
		Key:      key,
		Status:   resp.StatusCode,
		Header:   header,
		Body:     bytes.Clone(body),
		StoredAt: time.Now(),
	})
	if err != nil {
		p.logger.Warn("failed to store cache entry", "url", key, "error", err)
		return false
	}
	return true
}

func (p *Proxy) lookup(ctx context.Context, cache, key string) (Entry, bool) {
	e, err := p.store.Get(ctx, CacheVersion, cache, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			p.logger.Warn("cache lookup failed", "url", key, "error", err)
		}
		return Entry{}, false
	}
	return e, true
}

// sameOrigin compares scheme and host, with default ports made explicit.
func sameOrigin(a, b *url.URL) bool {
	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(hostPort(a), hostPort(b))
}

func hostPort(u *url.URL) string {
	if port := u.Port(); port != "" {
		return u.Host
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		return u.Host + ":443"
	case "http":
		return u.Host + ":80"
	}
	return u.Host
}

func serveEntry(w http.ResponseWriter, e Entry) {
	copyHeader(w.Header(), e.Header)
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(e.Status)
	w.Write(e.Body)
}

func offline(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusServiceUnavailable)
	io.WriteString(w, "Offline")
}

func copyHeader(dst, src http.Header) {
	for k, vs := range src {
		dst[k] = append([]string(nil), vs...)
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
	dst.Del("Content-Length")
}

func isOK(status int) bool {
	return status >= 200 && status <= 299
}

// OfflinePage is served for page loads that fail with nothing cached.
const OfflinePage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>Ask Mirror Talk (offline)</title>
  <style>
    body { font-family: Georgia, serif; background: #faf8f4; color: #2e2a24;
           display: flex; align-items: center; justify-content: center;
           min-height: 100vh; margin: 0; padding: 20px; text-align: center; }
    .offline-card { max-width: 400px; padding: 40px 30px; background: #fff;
                    border-radius: 12px; border: 1px solid #e6e2dc; }
    p { color: #6b665d; line-height: 1.6; }
  </style>
</head>
<body>
  <div class="offline-card">
    <h1>You're offline</h1>
    <p>Mirror Talk needs an internet connection to search podcast episodes and generate answers. Please reconnect and try again.</p>
    <button onclick="location.reload()">Try Again</button>
  </div>
</body>
</html>`
