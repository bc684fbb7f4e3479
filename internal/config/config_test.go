// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFrom_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().API.BaseURL, cfg.API.BaseURL)
	assert.Equal(t, 45*time.Second, cfg.Timeout())
}

func TestLoadFrom_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[api]
base_url = "https://api.example.com"
timeout_secs = 30

[gateway]
url = "https://site.example.com/wp-admin/admin-ajax.php"

[proxy]
cache_backend = "redis"
`), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.API.TimeoutSecs)
	assert.True(t, cfg.API.Stream, "unset keys keep their defaults")
	assert.Equal(t, "https://site.example.com/wp-admin/admin-ajax.php", cfg.Gateway.URL)
	assert.Equal(t, "redis", cfg.Proxy.CacheBackend)
}

func TestLoadFrom_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[proxy]\ncache_backend = \"memcached\"\nprune_schedule = \"not cron\"\n"), 0o600))

	_, err := LoadFrom(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy.cache_backend")
	assert.Contains(t, err.Error(), "proxy.prune_schedule")
}

func TestLoadFrom_BadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[api\n"), 0o600))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AMT_API_URL", "https://env.example.com")
	t.Setenv("AMT_STREAM", "false")
	t.Setenv("AMT_TIMEOUT", "12")
	t.Setenv("AMT_LOG_LEVEL", "debug")
	t.Setenv("NO_COLOR", "1")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.API.BaseURL)
	assert.False(t, cfg.API.Stream)
	assert.Equal(t, 12, cfg.API.TimeoutSecs)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.UI.NoColor)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.toml")
	cfg := Default()
	cfg.Gateway.URL = "https://site.example.com/wp-admin/admin-ajax.php"
	cfg.Player.Command = []string{"vlc", "{url}"}

	require.NoError(t, SaveTo(cfg, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Gateway.URL, loaded.Gateway.URL)
	assert.Equal(t, []string{"vlc", "{url}"}, loaded.Player.Command)
}

func TestGetSet(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Set("api.timeout_secs", "30"))
	v, err := cfg.Get("api.timeout_secs")
	require.NoError(t, err)
	assert.Equal(t, 30, v)

	require.NoError(t, cfg.Set("api.stream", "off"))
	assert.False(t, cfg.API.Stream)

	require.NoError(t, cfg.Set("player.command", "vlc --play-and-exit {url}"))
	assert.Equal(t, []string{"vlc", "--play-and-exit", "{url}"}, cfg.Player.Command)

	require.NoError(t, cfg.Set("proxy.redis_db", 3))
	assert.Equal(t, 3, cfg.Proxy.RedisDB)

	assert.Error(t, cfg.Set("api.timeout_secs", "soon"))
	assert.Error(t, cfg.Set("api.nope", "x"))
	assert.Error(t, cfg.Set("api", "x"))
	_, err = cfg.Get("nope.key")
	assert.Error(t, err)
	_, err = cfg.Get("")
	assert.Error(t, err)
}

func TestKeys(t *testing.T) {
	keys := Keys()
	assert.Contains(t, keys, "api.base_url")
	assert.Contains(t, keys, "proxy.prune_schedule")
	assert.Contains(t, keys, "logging.format")

	cfg := Default()
	for _, k := range keys {
		_, err := cfg.Get(k)
		assert.NoError(t, err, k)
	}
}

func TestWatch_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, SaveTo(Default(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 4)
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, func(c *Config) { changes <- c }) }()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)

	cfg := Default()
	cfg.API.TimeoutSecs = 7
	require.NoError(t, SaveTo(cfg, path))

	select {
	case got := <-changes:
		assert.Equal(t, 7, got.API.TimeoutSecs)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload observed")
	}

	cancel()
	assert.NoError(t, <-done)
}

// TestConfig_ConcurrentAccess exercises Global and SetGlobal together.
// Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	t.Setenv("AMT_CONFIG", filepath.Join(t.TempDir(), "config.toml"))
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}
