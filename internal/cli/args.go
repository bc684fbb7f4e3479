// args.go - Argument parsing shared by every amt command.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits raw arguments into flags and positionals. It accepts:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments: everything else, in order
//   - "--" ends flag parsing; the rest is positional
//
// Flags named as boolean never consume the following argument, so
// `ask --json what is grace` keeps "what" as part of the question.
type ArgParser struct {
	flags      map[string]string // String flags (--key=value)
	boolFlags  map[string]bool   // Boolean flags (--json)
	positional []string          // Positional arguments in order
	known      map[string]bool   // Names declared boolean
	raw        []string
}

// NewArgParser parses raw. boolNames lists the flags that never take a
// value.
//
// Example:
//
//	args := NewArgParser([]string{"--search", "grief", "--json", "recent"}, "json")
//	args.Flag("search")     // "grief"
//	args.BoolFlag("json")   // true
//	args.Positional(0)      // "recent"
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	p := &ArgParser{
		flags:      make(map[string]string),
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0, len(raw)),
		known:      make(map[string]bool, len(boolNames)),
		raw:        raw,
	}
	for _, n := range boolNames {
		p.known[strings.TrimLeft(n, "-")] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		// A lone "-" and negative numbers are values, not flags
		if !strings.HasPrefix(arg, "-") || arg == "-" || isNumber(arg) {
			p.positional = append(p.positional, arg)
			continue
		}

		// --flag=value
		if name, value, ok := strings.Cut(arg, "="); ok {
			name = strings.TrimLeft(name, "-")
			if p.known[name] {
				b, err := ParseBoolString(value)
				p.boolFlags[name] = err == nil && b
			} else {
				p.flags[name] = value
			}
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if !p.known[name] && i+1 < len(raw) && !looksLikeFlag(raw[i+1]) {
			p.flags[name] = raw[i+1]
			i++
			continue
		}
		p.boolFlags[name] = true
	}

	return p
}

func looksLikeFlag(s string) bool {
	return strings.HasPrefix(s, "-") && s != "-" && !isNumber(s)
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}

// Subcommand returns the first positional argument.
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns the value of a string flag, or "" when absent. Aliases are
// tried in order, so Flag("limit", "n") reads --limit or -n.
func (p *ArgParser) Flag(names ...string) string {
	for _, n := range names {
		if val, ok := p.flags[strings.TrimLeft(n, "-")]; ok {
			return val
		}
	}
	return ""
}

// FlagOrDefault returns the flag value or defaultValue when absent.
func (p *ArgParser) FlagOrDefault(name, defaultValue string) string {
	if val := p.Flag(name); val != "" {
		return val
	}
	return defaultValue
}

// FlagInt returns the flag as an integer.
func (p *ArgParser) FlagInt(names ...string) (int, error) {
	val := p.Flag(names...)
	if val == "" {
		return 0, fmt.Errorf("flag %s not found", names[0])
	}
	return strconv.Atoi(val)
}

// FlagIntOrDefault returns the flag as an integer or defaultValue when
// absent or malformed.
func (p *ArgParser) FlagIntOrDefault(name string, defaultValue int) int {
	val, err := p.FlagInt(name)
	if err != nil {
		return defaultValue
	}
	return val
}

// BoolFlag reports whether any of the named boolean flags is set.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, n := range names {
		if p.boolFlags[strings.TrimLeft(n, "-")] {
			return true
		}
	}
	return false
}

// HasFlag reports whether the flag was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasString := p.flags[name]
	_, hasBool := p.boolFlags[name]
	return hasString || hasBool
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments from index on.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// Raw returns the original arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// =============================================================================
// HELPERS
// =============================================================================

// ParseBoolString parses true/false, yes/no, y/n, 1/0 and on/off.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value: %s", s)
}

// JoinPositionalArgs joins the positionals from startIndex into one string.
func JoinPositionalArgs(parser *ArgParser, startIndex int) string {
	return strings.Join(parser.PositionalFrom(startIndex), " ")
}
