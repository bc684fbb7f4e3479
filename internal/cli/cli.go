// cli.go - Command parsing and dispatch for amt.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/tobi-mt/ask-mirror-talk/internal/export"
)

// Version information (can be overridden at build time)
var (
	Version   = "3.8.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdHistory
	CmdConfig
	CmdServe
	CmdDoctor
	CmdCache
	CmdVersion
	CmdHelp
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdHistory:
		return "history"
	case CmdConfig:
		return "config"
	case CmdServe:
		return "serve"
	case CmdDoctor:
		return "doctor"
	case CmdCache:
		return "cache"
	case CmdVersion:
		return "version"
	}
	return "help"
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	JSON    bool   // Output in JSON format
	Verbose bool   // Debug logging to stderr
	Quiet   bool   // No status lines
	NoColor bool   // Plain output
	Config  string // Alternate config file

	// ask
	Query     string
	HTML      bool // Print the widget HTML instead of terminal output
	Plain     bool // Print markdown without glamour
	NoStream  bool // Skip the stream and use the fallback path directly
	NoHistory bool // Do not record the answer

	// history
	Search    string
	Limit     int
	ID        string
	IDs       []string // history export
	Format    string   // history export: markdown, json or html
	OutputDir string   // history export

	// config
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// serve
	Listen string

	// cache
	MaxAgeHours int
	Yes         bool

	// Raw args after the command
	Raw []string
}

// boolFlags never take a value.
var boolFlags = []string{
	"json", "verbose", "v", "quiet", "q", "no-color", "html", "plain",
	"no-stream", "no-history", "help", "h", "version", "yes", "y",
}

const usageText = `amt - Ask Mirror Talk from the terminal

Ask questions about the Mirror Talk podcast and get answers with
timestamped episode citations you can play.

Usage:
  amt                          Start the full-screen interface (default)
  amt ask "question"           Ask a single question
  amt chat                     Interactive question loop
  amt history [--search q]     Recent answers, or full-text search
  amt history show <id>        Show one stored answer
  amt history export [id...]   Save answers as markdown, json or html
                               (--format f, --out dir, --search q)
  amt config [show|get|set|list|path]
                               View or change configuration
  amt serve [--listen addr]    Run the caching proxy and gateway relay
  amt cache prune [--max-age h]
                               Drop proxy cache entries older than h hours
  amt cache clear [--yes]      Drop every proxy cache entry
  amt doctor                   Check configuration and connectivity
  amt version                  Show version
  amt help                     Show this help

Ask options:
  --json                       Print the answer as JSON
  --html                       Print the answer as widget HTML
  --plain                      Print markdown without terminal styling
  --no-stream                  Use the non-streaming path only
  --no-history                 Do not save the answer
  A "-" question (or none, with piped input) reads stdin.

Global options:
  --config <path>              Use another config file
  --no-color                   Disable colours
  -q, --quiet                  Hide status lines
  -v, --verbose                Debug logging to stderr

Chat commands:
  /play N    play citation N        /stop      close the player
  /back      skip back 10s          /fwd       skip forward 10s
  /open N    print citation N's URL /follow N  ask follow-up N
  /up        helpful answer         /down      not helpful
  /sources   list citations         /help, /quit

Examples:
  amt ask "How do I deal with grief?"
  echo "What is forgiveness?" | amt ask --plain
  amt history --search forgiveness --limit 5
  amt config set api.base_url https://example.com
  amt serve --listen :8787
`

// PrintUsage writes the help text.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, usageText)
}

// PrintVersion writes version information.
func PrintVersion(w io.Writer) {
	fmt.Fprintf(w, "amt %s (%s, built %s, %s/%s)\n", Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

// Parse determines the command and its arguments from argv (without the
// program name).
func Parse(argv []string) (Command, Args, error) {
	p := NewArgParser(argv, boolFlags...)
	args := Args{
		JSON:    p.BoolFlag("json"),
		Verbose: p.BoolFlag("verbose", "v"),
		Quiet:   p.BoolFlag("quiet", "q"),
		NoColor: p.BoolFlag("no-color"),
		Config:  p.Flag("config"),
	}

	if p.BoolFlag("help", "h") {
		return CmdHelp, args, nil
	}
	if p.BoolFlag("version") {
		return CmdVersion, args, nil
	}

	name := p.Subcommand()
	args.Raw = p.PositionalFrom(1)

	switch strings.ToLower(name) {
	case "", "tui":
		return CmdTUI, args, nil

	case "ask", "a":
		args.Query = strings.TrimSpace(JoinPositionalArgs(p, 1))
		args.HTML = p.BoolFlag("html")
		args.Plain = p.BoolFlag("plain")
		args.NoStream = p.BoolFlag("no-stream")
		args.NoHistory = p.BoolFlag("no-history")
		if args.HTML && args.JSON {
			return CmdAsk, args, &UsageError{Reason: "--html and --json cannot be combined"}
		}
		return CmdAsk, args, nil

	case "chat", "c":
		args.NoStream = p.BoolFlag("no-stream")
		args.NoHistory = p.BoolFlag("no-history")
		return CmdChat, args, nil

	case "history", "h":
		args.Search = p.Flag("search", "s")
		args.Limit = p.FlagIntOrDefault("limit", p.FlagIntOrDefault("n", 0))
		if args.Limit < 0 {
			return CmdHistory, args, &UsageError{Reason: "--limit must be positive", Example: "amt history --limit 10"}
		}
		args.Subcommand = p.Positional(1)
		switch args.Subcommand {
		case "", "list", "recent":
			args.Subcommand = "list"
		case "show":
			args.ID = p.Positional(2)
			if args.ID == "" {
				return CmdHistory, args, ErrMissingArgument("answer id", "amt history show 3f2c…")
			}
		case "export":
			args.IDs = p.PositionalFrom(2)
			args.Format = p.Flag("format", "f")
			args.OutputDir = p.FlagOrDefault("out", ".")
			if _, err := export.ParseFormat(args.Format); err != nil {
				return CmdHistory, args, &UsageError{Reason: err.Error(), Example: "amt history export --format html"}
			}
			return CmdHistory, args, nil
		case "search":
			if args.Search == "" {
				args.Search = JoinPositionalArgs(p, 2)
			}
			if args.Search == "" {
				return CmdHistory, args, ErrMissingArgument("search query", "amt history search forgiveness")
			}
		default:
			return CmdHistory, args, &UsageError{Reason: fmt.Sprintf("unknown history command %q", args.Subcommand)}
		}
		if args.Search != "" {
			args.Subcommand = "search"
		}
		return CmdHistory, args, nil

	case "config":
		args.Subcommand = p.Positional(1)
		args.ConfigKey = p.Positional(2)
		args.ConfigVal = JoinPositionalArgs(p, 3)
		switch args.Subcommand {
		case "":
			args.Subcommand = "show"
		case "show", "list", "path":
		case "get":
			if args.ConfigKey == "" {
				return CmdConfig, args, ErrMissingArgument("config key", "amt config get api.base_url")
			}
		case "set":
			if args.ConfigKey == "" || p.PositionalCount() < 4 {
				return CmdConfig, args, ErrMissingArgument("config key and value", "amt config set ui.theme dark")
			}
		default:
			return CmdConfig, args, &UsageError{Reason: fmt.Sprintf("unknown config command %q", args.Subcommand)}
		}
		return CmdConfig, args, nil

	case "serve", "proxy":
		args.Listen = p.Flag("listen", "l")
		return CmdServe, args, nil

	case "doctor":
		return CmdDoctor, args, nil

	case "cache":
		args.Subcommand = p.Positional(1)
		args.Yes = p.BoolFlag("yes", "y")
		if p.Flag("max-age") != "" {
			maxAge, err := p.FlagInt("max-age")
			if err != nil || maxAge <= 0 {
				return CmdCache, args, &UsageError{Reason: "--max-age must be a positive number of hours", Example: "amt cache prune --max-age 72"}
			}
			args.MaxAgeHours = maxAge
		}
		switch args.Subcommand {
		case "prune", "clear":
		case "":
			return CmdCache, args, ErrMissingArgument("cache command", "amt cache prune")
		default:
			return CmdCache, args, &UsageError{Reason: fmt.Sprintf("unknown cache command %q", args.Subcommand)}
		}
		return CmdCache, args, nil

	case "version", "--version":
		return CmdVersion, args, nil

	case "help":
		return CmdHelp, args, nil
	}

	example := "amt help"
	if s := SuggestCommand(name); s != "" {
		example = "amt " + s
	}
	return CmdHelp, args, &UsageError{Reason: fmt.Sprintf("unknown command %q", name), Example: example}
}
