// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tobi-mt/ask-mirror-talk/internal/config"
)

// secretKeys are masked by show, list and get.
var secretKeys = map[string]bool{
	"gateway.nonce":        true,
	"proxy.redis_password": true,
	"proxy.nonce_secret":   true,
}

// HandleConfig shows or edits the configuration file.
func HandleConfig(app *App, args Args) error {
	switch args.Subcommand {
	case "path":
		fmt.Fprintln(app.Out, app.ConfigPath)
		return nil

	case "show":
		if args.JSON {
			return NewJSONResponse("config", masked(app.Config)).Print(app.Out)
		}
		fmt.Fprintf(app.Out, "# %s\n", app.ConfigPath)
		return toml.NewEncoder(app.Out).Encode(masked(app.Config))

	case "list":
		values := make(map[string]any)
		for _, key := range config.Keys() {
			v, err := app.Config.Get(key)
			if err != nil {
				return err
			}
			values[key] = maskValue(key, v)
			if !args.JSON {
				fmt.Fprintf(app.Out, "%-24s %v\n", key, values[key])
			}
		}
		if args.JSON {
			return NewJSONResponse("config", values).Print(app.Out)
		}
		return nil

	case "get":
		v, err := app.Config.Get(args.ConfigKey)
		if err != nil {
			return &UsageError{Reason: err.Error(), Example: "amt config list"}
		}
		v = maskValue(args.ConfigKey, v)
		if args.JSON {
			return NewJSONResponse("config", map[string]any{args.ConfigKey: v}).Print(app.Out)
		}
		if list, ok := v.([]string); ok {
			v = strings.Join(list, " ")
		}
		fmt.Fprintln(app.Out, v)
		return nil

	case "set":
		// Edit the file as written so environment overrides are not
		// baked into it.
		cfg, err := config.ReadFile(app.ConfigPath)
		if err != nil {
			return err
		}
		if err := cfg.Set(args.ConfigKey, args.ConfigVal); err != nil {
			return &UsageError{Reason: err.Error(), Example: "amt config set ui.theme dark"}
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		if err := config.SaveTo(cfg, app.ConfigPath); err != nil {
			return err
		}
		if args.JSON {
			return NewJSONResponse("config", map[string]any{args.ConfigKey: maskValue(args.ConfigKey, args.ConfigVal)}).Print(app.Out)
		}
		fmt.Fprintf(app.Out, "%s = %v\n", args.ConfigKey, maskValue(args.ConfigKey, args.ConfigVal))
		return nil
	}
	return &UsageError{Reason: fmt.Sprintf("unknown config command %q", args.Subcommand)}
}

// masked returns a copy of cfg with secrets replaced.
func masked(cfg *config.Config) *config.Config {
	c := *cfg
	for key := range secretKeys {
		if v, err := c.Get(key); err == nil && v != "" {
			c.Set(key, "********")
		}
	}
	return &c
}

func maskValue(key string, v any) any {
	if s, ok := v.(string); ok && secretKeys[key] && s != "" {
		return "********"
	}
	return v
}
