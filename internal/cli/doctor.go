// doctor.go - Configuration and connectivity checks for amt.
//
// Command: doctor
// Short:   Check that amt can reach the answer service and store history
//
// Checks:
//   Config        Every field of the config file is valid
//   Answer API    GET {api.base_url}/health answers 200
//   Gateway       A relay URL is configured for the fallback path
//   History       The SQLite store opens
//   Player        The inline player command is installed
//   Proxy         proxy.site_url is set, and Redis answers when used
//
// Flags:
//   --json        Output in JSON format
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/proxy"
	"github.com/tobi-mt/ask-mirror-talk/internal/transport"
)

// HealthPath is the answer service health endpoint.
const HealthPath = "/health"

// doctorTimeout bounds each network check.
const doctorTimeout = 5 * time.Second

var (
	checkPassStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	checkWarnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	checkFailStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	fixStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true).PaddingLeft(2)
)

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	// CheckPass indicates the check passed successfully.
	CheckPass CheckStatus = iota
	// CheckWarn indicates a feature is degraded but amt works.
	CheckWarn
	// CheckFail indicates amt cannot work until this is fixed.
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	}
	return "unknown"
}

// Symbol returns the marker shown before a check.
func (s CheckStatus) Symbol() string {
	switch s {
	case CheckPass:
		return checkPassStyle.Render("[OK]")
	case CheckWarn:
		return checkWarnStyle.Render("[!!]")
	case CheckFail:
		return checkFailStyle.Render("[FAIL]")
	}
	return "?"
}

// HealthCheck is a single check result.
type HealthCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"-"`
	State   string      `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// Render returns the check as one or two display lines.
func (c *HealthCheck) Render() string {
	result := fmt.Sprintf("%s %-12s %s", c.Status.Symbol(), c.Name, c.Message)
	if c.Status != CheckPass && c.Fix != "" {
		result += "\n" + fixStyle.Render("-> "+c.Fix)
	}
	return result
}

func pass(name, msg string) *HealthCheck {
	return &HealthCheck{Name: name, Status: CheckPass, Message: msg}
}

func warn(name, msg, fix string) *HealthCheck {
	return &HealthCheck{Name: name, Status: CheckWarn, Message: msg, Fix: fix}
}

func fail(name, msg, fix string) *HealthCheck {
	return &HealthCheck{Name: name, Status: CheckFail, Message: msg, Fix: fix}
}

// DoctorReport is the JSON data for the doctor command.
type DoctorReport struct {
	Checks []*HealthCheck `json:"checks"`
	Passed int            `json:"passed"`
	Warned int            `json:"warned"`
	Failed int            `json:"failed"`
}

// =============================================================================
// HANDLE DOCTOR
// =============================================================================

// HandleDoctor runs every check and prints the results. Any failed check
// makes the command fail.
func HandleDoctor(ctx context.Context, app *App, args Args) error {
	checks := runAllChecks(ctx, app)

	report := DoctorReport{Checks: checks}
	for _, c := range checks {
		c.State = c.Status.String()
		switch c.Status {
		case CheckPass:
			report.Passed++
		case CheckWarn:
			report.Warned++
		case CheckFail:
			report.Failed++
		}
	}

	if args.JSON {
		if err := NewJSONResponse("doctor", report).Print(app.Out); err != nil {
			return err
		}
	} else {
		for _, c := range checks {
			fmt.Fprintln(app.Out, c.Render())
		}
		fmt.Fprintln(app.Out)
		fmt.Fprintln(app.Out, DimStyle.Render(fmt.Sprintf("%d passed, %d warnings, %d failed",
			report.Passed, report.Warned, report.Failed)))
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d of %d checks failed", report.Failed, len(checks))
	}
	return nil
}

func runAllChecks(ctx context.Context, app *App) []*HealthCheck {
	return []*HealthCheck{
		checkConfig(app),
		checkAPI(ctx, app),
		checkGateway(app),
		checkHistory(app),
		checkPlayer(app),
		checkProxy(ctx, app),
	}
}

// =============================================================================
// CHECKS
// =============================================================================

func checkConfig(app *App) *HealthCheck {
	if err := app.Config.Validate(); err != nil {
		return fail("Config", err.Error(), "Edit "+app.ConfigPath+" or run: amt config set <key> <value>")
	}
	return pass("Config", app.ConfigPath)
}

func checkAPI(ctx context.Context, app *App) *HealthCheck {
	base := app.Config.API.BaseURL
	if base == "" {
		return fail("Answer API", "api.base_url is not set", "Run: amt config set api.base_url <url>")
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, transport.JoinURL(base, HealthPath), nil)
	if err != nil {
		return fail("Answer API", err.Error(), "Check api.base_url")
	}
	var doer transport.Doer = transport.HTTPClient()
	if app.HTTPClient != nil {
		doer = app.HTTPClient
	}

	start := time.Now()
	if err := transport.DoJSON(doer, "health", req, nil); err != nil {
		switch transport.Classify(err) {
		case transport.KindTimeout:
			return fail("Answer API", base+" did not answer within "+doctorTimeout.String(), "Check your connection")
		case transport.KindServer:
			return fail("Answer API", base+" is unhealthy: "+err.Error(), "Try again later")
		}
		return fail("Answer API", "cannot reach "+base, "Check your connection and api.base_url")
	}
	return pass("Answer API", fmt.Sprintf("%s (%dms)", base, time.Since(start).Milliseconds()))
}

func checkGateway(app *App) *HealthCheck {
	if app.Config.Gateway.URL == "" {
		return warn("Gateway", "no relay configured; fallback uses the direct endpoint only",
			"Run: amt config set gateway.url https://<site>/wp-admin/admin-ajax.php")
	}
	return pass("Gateway", app.Config.Gateway.URL)
}

func checkHistory(app *App) *HealthCheck {
	if !app.Config.Storage.History {
		return warn("History", "disabled", "Run: amt config set storage.history true")
	}
	st, err := app.OpenStore()
	if err != nil {
		return fail("History", err.Error(), "Check storage.path is writable")
	}
	defer st.Close()
	path, _ := app.Config.StoragePath()
	return pass("History", path)
}

func checkPlayer(app *App) *HealthCheck {
	if !app.Config.Player.Enabled {
		return warn("Player", "inline playback disabled; sources open as links", "Run: amt config set player.enabled true")
	}
	argv := app.Config.Player.Command
	if len(argv) == 0 {
		argv = citation.DefaultPlayerCommand
	}
	if _, err := citation.NewCommandBackend(argv); err != nil {
		return warn("Player", err.Error(), "Install mpv or set player.command")
	}
	return pass("Player", argv[0])
}

func checkProxy(ctx context.Context, app *App) *HealthCheck {
	pc := app.Config.Proxy
	if pc.SiteURL == "" {
		return warn("Proxy", "proxy.site_url is not set; amt serve will not start",
			"Run: amt config set proxy.site_url https://<site>")
	}
	if pc.CacheBackend != "redis" {
		return pass("Proxy", pc.SiteURL+" (sqlite cache)")
	}

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	rdb := proxy.NewRedisClient(pc.RedisAddr, pc.RedisPassword, pc.RedisDB)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fail("Proxy", "redis at "+pc.RedisAddr+" timed out", "Check proxy.redis_addr")
		}
		return fail("Proxy", "redis at "+pc.RedisAddr+": "+err.Error(), "Check proxy.redis_addr")
	}
	return pass("Proxy", pc.SiteURL+" (redis cache at "+pc.RedisAddr+")")
}
