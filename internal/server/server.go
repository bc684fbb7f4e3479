// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorhill/cronexpr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tobi-mt/ask-mirror-talk/internal/config"
	"github.com/tobi-mt/ask-mirror-talk/internal/gateway"
	"github.com/tobi-mt/ask-mirror-talk/internal/proxy"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
)

// ============================================================================
// CONSTANTS
// ============================================================================

// Version is reported by /healthz. The CLI overrides it at startup.
var Version = "dev"

const (
	// RelayPath is where the gateway relay is mounted.
	RelayPath = "/wp-admin/admin-ajax.php"

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout = 10 * time.Second
)

// ============================================================================
// CACHE STORE
// ============================================================================

// OpenCacheStore opens the backend named by cfg.Proxy.CacheBackend. The
// returned close function releases it.
func OpenCacheStore(ctx context.Context, cfg *config.Config) (proxy.CacheStore, func() error, error) {
	switch strings.ToLower(cfg.Proxy.CacheBackend) {
	case "redis":
		rdb := proxy.NewRedisClient(cfg.Proxy.RedisAddr, cfg.Proxy.RedisPassword, cfg.Proxy.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Proxy.RedisAddr, err)
		}
		return proxy.NewRedisStore(rdb, proxy.DefaultRedisPrefix), rdb.Close, nil

	case "", "sqlite":
		path, err := cfg.StoragePath()
		if err != nil {
			return nil, nil, err
		}
		db, err := storage.Open(path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		return proxy.NewSQLiteStore(db), db.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Proxy.CacheBackend)
}

// ============================================================================
// SERVER
// ============================================================================

// schedule is the reloadable part of the configuration.
type schedule struct {
	prune  *cronexpr.Expression
	maxAge time.Duration
}

// Server fronts the site: it relays gateway questions, proxies pages,
// assets and API calls through the cache, and prunes the cache on a
// schedule.
type Server struct {
	cfg      *config.Config
	router   chi.Router
	proxy    *proxy.Proxy
	relay    *gateway.Relay
	limiter  *RateLimiter
	registry *prometheus.Registry
	logger   *slog.Logger

	schedule   atomic.Pointer[schedule]
	reloaded   chan struct{}
	configPath string

	mu   sync.Mutex
	addr net.Addr
}

// New builds a server over store. The store is not closed by the server.
func New(cfg *config.Config, store proxy.CacheStore) (*Server, error) {
	if cfg.Proxy.SiteURL == "" {
		return nil, errors.New("proxy.site_url is not set")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	logger := slog.Default().With("component", "server")

	p, err := proxy.New(proxy.Config{
		SiteURL:  cfg.Proxy.SiteURL,
		APIBase:  cfg.API.BaseURL,
		APIMount: cfg.Proxy.APIMount,
	}, store)
	if err != nil {
		return nil, err
	}
	p.WithMetrics(proxy.NewMetrics(registry)).WithLogger(logger)

	nonces, err := gateway.NewNonces(cfg.Proxy.NonceSecret, time.Duration(cfg.Proxy.NonceTTLHours)*time.Hour)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		proxy:    p,
		relay:    gateway.NewRelay(cfg.API.BaseURL, nonces).WithLogger(logger),
		limiter:  NewRateLimiter(cfg.Proxy.RateLimit, cfg.Proxy.RateBurst),
		registry: registry,
		logger:   logger,
		reloaded: make(chan struct{}, 1),
	}
	if err := s.setSchedule(cfg); err != nil {
		return nil, err
	}
	s.setupRoutes()
	return s, nil
}

// WithHTTPClient sets the upstream client for the proxy and the relay.
func (s *Server) WithHTTPClient(c *http.Client) *Server {
	s.proxy.WithHTTPClient(c)
	s.relay.WithHTTPClient(c)
	return s
}

// WithLogger sets the logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	s.proxy.WithLogger(l)
	s.relay.WithLogger(l)
	s.setupRoutes()
	return s
}

// WithConfigPath makes Run watch path and apply reloadable settings.
func (s *Server) WithConfigPath(path string) *Server {
	s.configPath = path
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr is the listening address once Run has started, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// ============================================================================
// ROUTES
// ============================================================================

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(s.logger))

	limited := RateLimitMiddleware(s.limiter, s.logger)

	r.Group(func(r chi.Router) {
		r.Use(SecurityHeadersMiddleware())
		r.Get("/healthz", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	})

	r.With(limited).Handle(RelayPath, s.relay)

	mount := "/" + strings.Trim(s.cfg.Proxy.APIMount, "/")
	if mount == "/" {
		mount = proxy.DefaultAPIMount
	}
	r.With(limited).Handle(mount+"/*", s.proxy)
	r.Handle("/*", s.proxy)

	s.router = r
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status       string `json:"status"`
	Version      string `json:"version"`
	CacheVersion string `json:"cache_version"`
	CacheBackend string `json:"cache_backend"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	backend := s.cfg.Proxy.CacheBackend
	if backend == "" {
		backend = "sqlite"
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:       "ok",
		Version:      Version,
		CacheVersion: proxy.CacheVersion,
		CacheBackend: backend,
	})
}

// ============================================================================
// SERVER LIFECYCLE
// ============================================================================

// Run pre-caches the app shell when configured, serves on
// cfg.Proxy.Listen and blocks until ctx is done, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context) error {
	if s.cfg.Proxy.Precache {
		s.Prepare(ctx)
	}

	ln, err := net.Listen("tcp", s.cfg.Proxy.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Proxy.Listen, err)
	}

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runMaintenance(ctx)
	}()
	go func() {
		defer wg.Done()
		s.watchConfig(ctx)
	}()

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.logger.Info("server listening", "addr", ln.Addr().String(), "site", s.cfg.Proxy.SiteURL, "version", Version)

	select {
	case err := <-errc:
		cancel()
		wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("server shutting down")
	shutdownCtx, stop := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer stop()
	err = srv.Shutdown(shutdownCtx)
	wg.Wait()
	s.proxy.Wait()
	return err
}

// Prepare pre-caches the app shell and removes entries from older cache
// versions. Failures are logged; the server still starts.
func (s *Server) Prepare(ctx context.Context) {
	if _, err := s.proxy.Install(ctx); err != nil {
		s.logger.Warn("pre-cache failed", "error", err)
	}
	if _, err := s.proxy.Activate(ctx); err != nil {
		s.logger.Warn("cache activation failed", "error", err)
	}
}

// Prune removes cache entries older than the configured maximum age.
func (s *Server) Prune(ctx context.Context) (int64, error) {
	maxAge := s.schedule.Load().maxAge
	if maxAge <= 0 {
		return 0, nil
	}
	n, err := s.proxy.Prune(ctx, maxAge)
	if err == nil && n > 0 {
		s.logger.Info("cache pruned", "entries", n)
	}
	return n, err
}

// runMaintenance prunes on the cron schedule and sweeps idle rate
// limiters until ctx is done.
func (s *Server) runMaintenance(ctx context.Context) {
	sweep := time.NewTicker(limiterIdle)
	defer sweep.Stop()

	for {
		var (
			timer *time.Timer
			fire  <-chan time.Time
		)
		if sc := s.schedule.Load(); sc.prune != nil {
			if next := sc.prune.Next(time.Now()); !next.IsZero() {
				timer = time.NewTimer(time.Until(next))
				fire = timer.C
			}
		}

		select {
		case <-ctx.Done():
		case <-s.reloaded:
		case <-sweep.C:
			s.limiter.Cleanup()
		case <-fire:
			if _, err := s.Prune(ctx); err != nil {
				s.logger.Warn("scheduled prune failed", "error", err)
			}
		}
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// watchConfig applies reloadable settings when the config file changes.
func (s *Server) watchConfig(ctx context.Context) {
	if s.configPath == "" {
		return
	}
	if err := config.Watch(ctx, s.configPath, s.Reload); err != nil {
		s.logger.Warn("config watch stopped", "error", err)
	}
}

// Reload applies the rate limit and prune schedule from cfg. Upstream
// URLs and the listen address need a restart.
func (s *Server) Reload(cfg *config.Config) {
	if err := s.setSchedule(cfg); err != nil {
		s.logger.Warn("config reload ignored", "error", err)
		return
	}
	s.limiter.SetLimit(cfg.Proxy.RateLimit, cfg.Proxy.RateBurst)

	if cfg.Proxy.SiteURL != s.cfg.Proxy.SiteURL || cfg.API.BaseURL != s.cfg.API.BaseURL || cfg.Proxy.Listen != s.cfg.Proxy.Listen {
		s.logger.Warn("upstream or listen address changed; restart to apply")
	}
	select {
	case s.reloaded <- struct{}{}:
	default:
	}
}

func (s *Server) setSchedule(cfg *config.Config) error {
	sc := &schedule{maxAge: time.Duration(cfg.Proxy.MaxAgeHours) * time.Hour}
	if spec := strings.TrimSpace(cfg.Proxy.PruneSchedule); spec != "" {
		expr, err := cronexpr.Parse(spec)
		if err != nil {
			return fmt.Errorf("invalid proxy.prune_schedule %q: %w", spec, err)
		}
		sc.prune = expr
	}
	if sc.maxAge <= 0 {
		sc.prune = nil
	}
	s.schedule.Store(sc)
	return nil
}

// ============================================================================
// HELPERS
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
