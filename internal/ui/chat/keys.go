// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// FOCUS
// =============================================================================

// Focus is the pane that receives navigation keys.
type Focus int

const (
	FocusInput Focus = iota
	FocusSources
	FocusFollowUps
)

// String returns the pane name.
func (f Focus) String() string {
	switch f {
	case FocusSources:
		return "sources"
	case FocusFollowUps:
		return "follow-ups"
	}
	return "input"
}

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the ask screen.
type KeyMap struct {
	Submit   key.Binding
	Clear    key.Binding
	Quit     key.Binding
	NextPane key.Binding
	PrevPane key.Binding
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding

	// Sources pane
	Play     key.Binding
	Pause    key.Binding
	Stop     key.Binding
	Open     key.Binding
	Back     key.Binding
	Forward  key.Binding
	ThumbsUp key.Binding
	ThumbsDn key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "ask"),
		),
		Clear: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "clear"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
		NextPane: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "next pane"),
		),
		PrevPane: key.NewBinding(
			key.WithKeys("shift+tab"),
			key.WithHelp("S-Tab", "prev pane"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "select"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "select"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Play: key.NewBinding(
			key.WithKeys("enter", "p"),
			key.WithHelp("p", "play/stop"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("Space", "pause"),
		),
		Stop: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "stop"),
		),
		Open: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "open link"),
		),
		Back: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("left", "-10s"),
		),
		Forward: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("right", "+10s"),
		),
		ThumbsUp: key.NewBinding(
			key.WithKeys("u", "+"),
			key.WithHelp("u", "helpful"),
		),
		ThumbsDn: key.NewBinding(
			key.WithKeys("d", "-"),
			key.WithHelp("d", "not helpful"),
		),
	}
}

// =============================================================================
// KEY BINDING HELPERS
// =============================================================================

// HelpFor returns the bindings worth showing while f has focus.
func (k KeyMap) HelpFor(f Focus) []key.Binding {
	switch f {
	case FocusSources:
		return []key.Binding{k.Up, k.Play, k.Pause, k.Back, k.Forward, k.Open, k.ThumbsUp, k.ThumbsDn, k.NextPane}
	case FocusFollowUps:
		return []key.Binding{k.Up, k.Submit, k.NextPane, k.Clear}
	}
	return []key.Binding{k.Submit, k.NextPane, k.Clear, k.Quit}
}
