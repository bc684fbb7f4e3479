// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gorhill/cronexpr"

	"github.com/tobi-mt/ask-mirror-talk/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete client and proxy configuration.
type Config struct {
	API     APIConfig     `toml:"api"`
	Gateway GatewayConfig `toml:"gateway"`
	Player  PlayerConfig  `toml:"player"`
	Proxy   ProxyConfig   `toml:"proxy"`
	Storage StorageConfig `toml:"storage"`
	UI      UIConfig      `toml:"ui"`
	Logging LoggingConfig `toml:"logging"`
}

// APIConfig locates the answer service.
type APIConfig struct {
	// BaseURL is the answer API origin
	BaseURL string `toml:"base_url"`
	// Stream enables the streaming endpoint; false goes straight to the
	// fallback path
	Stream bool `toml:"stream"`
	// TimeoutSecs bounds each request on the fallback path
	TimeoutSecs int `toml:"timeout_secs"`
}

// GatewayConfig locates the same-origin relay.
type GatewayConfig struct {
	// URL is the relay endpoint (admin-ajax.php). Empty skips the gateway.
	URL string `toml:"url"`
	// Nonce is the initial anti-forgery token
	Nonce string `toml:"nonce"`
}

// PlayerConfig controls inline playback.
type PlayerConfig struct {
	Enabled bool `toml:"enabled"`
	// Command is the player argv; {url} and {start} are substituted
	Command []string `toml:"command"`
}

// ProxyConfig configures `serve`.
type ProxyConfig struct {
	Listen   string `toml:"listen"`
	SiteURL  string `toml:"site_url"`
	APIMount string `toml:"api_mount"`

	// CacheBackend is "sqlite" or "redis"
	CacheBackend  string `toml:"cache_backend"`
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`

	// PruneSchedule is a cron expression for cache pruning
	PruneSchedule string `toml:"prune_schedule"`
	MaxAgeHours   int    `toml:"max_age_hours"`
	Precache      bool   `toml:"precache"`

	// NonceSecret signs relay nonces; empty generates one per process
	NonceSecret   string `toml:"nonce_secret"`
	NonceTTLHours int    `toml:"nonce_ttl_hours"`

	RateLimit int `toml:"rate_limit"`
	RateBurst int `toml:"rate_burst"`
}

// StorageConfig controls answer history.
type StorageConfig struct {
	// Path is the SQLite database; empty uses ~/.ask-mirror-talk/history.db
	Path       string `toml:"path"`
	History    bool   `toml:"history"`
	MaxAnswers int    `toml:"max_answers"`
}

// UIConfig controls terminal rendering.
type UIConfig struct {
	// Theme is the glamour style: "auto", "dark", "light" or "notty"
	Theme        string `toml:"theme"`
	Width        int    `toml:"width"`
	NoColor      bool   `toml:"no_color"`
	ShowExcerpts bool   `toml:"show_excerpts"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	// Level is "debug", "info", "warn" or "error"
	Level string `toml:"level"`
	// Format is "text" or "json"
	Format string `toml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "https://ask-mirror-talk-production.up.railway.app",
			Stream:      true,
			TimeoutSecs: 45,
		},
		Player: PlayerConfig{
			Enabled: true,
			Command: []string{"mpv", "--no-video", "--really-quiet", "--start={start}", "{url}"},
		},
		Proxy: ProxyConfig{
			Listen:        "127.0.0.1:8787",
			APIMount:      "/amt-api",
			CacheBackend:  "sqlite",
			RedisAddr:     "127.0.0.1:6379",
			PruneSchedule: "0 3 * * *",
			MaxAgeHours:   168,
			Precache:      true,
			NonceTTLHours: 12,
			RateLimit:     10,
			RateBurst:     20,
		},
		Storage: StorageConfig{
			History:    true,
			MaxAnswers: 500,
		},
		UI: UIConfig{
			Theme:        "auto",
			ShowExcerpts: true,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
	}
}

// Timeout returns the fallback request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSecs) * time.Second
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns ~/.ask-mirror-talk.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".ask-mirror-talk"), nil
}

// Path returns the config file path. AMT_CONFIG overrides it.
func Path() (string, error) {
	if p := os.Getenv("AMT_CONFIG"); p != "" {
		return p, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// StoragePath resolves storage.path, defaulting under Dir.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// =============================================================================
// LOAD / SAVE
// =============================================================================

// Load reads the config file if present, then applies environment
// overrides and validates. A missing file yields the defaults.
func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom is Load for an explicit path.
func LoadFrom(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ReadFile decodes path over the defaults without environment overrides
// or validation, for editing the file in place. A missing file yields the
// defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to the default path.
func Save(cfg *Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	return SaveTo(cfg, path)
}

// SaveTo writes cfg as TOML to path with owner-only permissions.
func SaveTo(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# Ask Mirror Talk configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError is one invalid field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors collects every invalid field.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every field and reports all problems at once.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if err := validateURL(c.API.BaseURL); err != nil {
		add("api.base_url", "%v", err)
	}
	if c.API.TimeoutSecs < 1 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be between 1 and 600, got %d", c.API.TimeoutSecs)
	}
	if c.Gateway.URL != "" {
		if err := validateURL(c.Gateway.URL); err != nil {
			add("gateway.url", "%v", err)
		}
	}
	if c.Player.Enabled && len(c.Player.Command) == 0 {
		add("player.command", "must not be empty when the player is enabled")
	}

	if c.Proxy.SiteURL != "" {
		if err := validateURL(c.Proxy.SiteURL); err != nil {
			add("proxy.site_url", "%v", err)
		}
	}
	if !strings.HasPrefix(c.Proxy.APIMount, "/") {
		add("proxy.api_mount", "must start with /")
	}
	switch c.Proxy.CacheBackend {
	case "sqlite", "redis":
	default:
		add("proxy.cache_backend", "must be sqlite or redis, got %q", c.Proxy.CacheBackend)
	}
	if c.Proxy.PruneSchedule != "" {
		if _, err := cronexpr.Parse(c.Proxy.PruneSchedule); err != nil {
			add("proxy.prune_schedule", "%v", err)
		}
	}
	if c.Proxy.MaxAgeHours < 1 {
		add("proxy.max_age_hours", "must be positive")
	}
	if c.Proxy.NonceTTLHours < 1 {
		add("proxy.nonce_ttl_hours", "must be positive")
	}
	if c.Proxy.RateLimit < 0 || c.Proxy.RateBurst < 0 {
		add("proxy.rate_limit", "must not be negative")
	}

	if c.Storage.MaxAnswers < 0 {
		add("storage.max_answers", "must not be negative")
	}

	switch c.UI.Theme {
	case "auto", "dark", "light", "notty":
	default:
		add("ui.theme", "must be auto, dark, light or notty, got %q", c.UI.Theme)
	}
	if c.UI.Width < 0 {
		add("ui.width", "must not be negative")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		add("logging.level", "must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		add("logging.format", "must be text or json, got %q", c.Logging.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must be http or https, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %q", raw)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// envOverrides maps environment variables to dot keys.
var envOverrides = []struct {
	env string
	key string
}{
	{"AMT_API_URL", "api.base_url"},
	{"AMT_STREAM", "api.stream"},
	{"AMT_TIMEOUT", "api.timeout_secs"},
	{"AMT_GATEWAY_URL", "gateway.url"},
	{"AMT_NONCE", "gateway.nonce"},
	{"AMT_SITE_URL", "proxy.site_url"},
	{"AMT_LISTEN", "proxy.listen"},
	{"AMT_CACHE_BACKEND", "proxy.cache_backend"},
	{"AMT_REDIS_ADDR", "proxy.redis_addr"},
	{"AMT_REDIS_PASSWORD", "proxy.redis_password"},
	{"AMT_NONCE_SECRET", "proxy.nonce_secret"},
	{"AMT_DB", "storage.path"},
	{"AMT_THEME", "ui.theme"},
	{"AMT_LOG_LEVEL", "logging.level"},
	{"AMT_LOG_FORMAT", "logging.format"},
}

// ApplyEnvOverrides applies AMT_* environment variables. NO_COLOR disables
// colour as well. Values that do not parse are ignored.
func (c *Config) ApplyEnvOverrides() {
	for _, o := range envOverrides {
		if v, ok := os.LookupEnv(o.env); ok && v != "" {
			_ = c.Set(o.key, v)
		}
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		c.UI.NoColor = true
	}
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a value by dot key, e.g. "proxy.cache_backend".
func (c *Config) Get(key string) (any, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set assigns a value by dot key. Strings are converted to the field type;
// list fields split on whitespace.
func (c *Config) Set(key string, value any) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

// lookup walks the struct by toml tag.
func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		field, ok := fieldByTag(v, part)
		if !ok {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			if field.Kind() == reflect.Struct {
				return reflect.Value{}, fmt.Errorf("%s is a section, not a value", key)
			}
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a section", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

func fieldByTag(v reflect.Value, name string) (reflect.Value, bool) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if tag := strings.Split(t.Field(i).Tag.Get("toml"), ",")[0]; tag == name {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

// setFieldValue sets a field from a value, converting strings.
func setFieldValue(field reflect.Value, value any) error {
	if s, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(s)
			return nil
		case reflect.Int, reflect.Int64:
			n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(n)
			return nil
		case reflect.Bool:
			b, err := strconv.ParseBool(strings.TrimSpace(s))
			if err != nil {
				switch strings.ToLower(strings.TrimSpace(s)) {
				case "yes", "on":
					b = true
				case "no", "off":
					b = false
				default:
					return fmt.Errorf("invalid boolean value: %q", s)
				}
			}
			field.SetBool(b)
			return nil
		case reflect.Slice:
			if field.Type().Elem().Kind() == reflect.String {
				field.Set(reflect.ValueOf(strings.Fields(s)))
				return nil
			}
		}
	}

	val := reflect.ValueOf(value)
	if !val.IsValid() {
		return errors.New("cannot assign nil")
	}
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) && val.Kind() != reflect.String {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// Keys lists every settable dot key in file order.
func Keys() []string {
	var keys []string
	t := reflect.TypeOf(Config{})
	for i := 0; i < t.NumField(); i++ {
		section := t.Field(i)
		prefix := section.Tag.Get("toml")
		for j := 0; j < section.Type.NumField(); j++ {
			keys = append(keys, prefix+"."+section.Type.Field(j).Tag.Get("toml"))
		}
	}
	return keys
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the process-wide configuration, loading it on first use.
// A broken file falls back to the defaults with a warning.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the singleton so the next Global reloads.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
