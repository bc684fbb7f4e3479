// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/tobi-mt/ask-mirror-talk/internal/server"
)

// HandleServe runs the caching proxy and gateway relay until ctx is done.
func HandleServe(ctx context.Context, app *App, args Args) error {
	cfg := *app.Config
	if args.Listen != "" {
		cfg.Proxy.Listen = args.Listen
	}
	if cfg.Proxy.SiteURL == "" {
		return &UsageError{
			Reason:  "proxy.site_url is not set",
			Example: "amt config set proxy.site_url https://mirrortalkpodcast.com",
		}
	}

	store, closeStore, err := server.OpenCacheStore(ctx, &cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	server.Version = Version
	srv, err := server.New(&cfg, store)
	if err != nil {
		return err
	}
	srv.WithLogger(app.Logger.With("component", "server"))
	if app.HTTPClient != nil {
		srv.WithHTTPClient(app.HTTPClient)
	}
	if app.ConfigPath != "" {
		srv.WithConfigPath(app.ConfigPath)
	}

	if !args.Quiet {
		fmt.Fprintf(app.Err, "%s proxying %s on %s (cache: %s)\n",
			SuccessStyle.Render("amt serve"), cfg.Proxy.SiteURL, cfg.Proxy.Listen, cfg.Proxy.CacheBackend)
	}
	return srv.Run(ctx)
}
