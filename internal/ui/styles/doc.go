// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the colours and lipgloss styles of the full-screen
Ask Mirror Talk interface.

All colours are lipgloss AdaptiveColor values so light and dark terminals
both read well. Teal is the brand colour, purple marks selection and the
episode-depth status hint, emerald marks success and the playing
citation.

# Usage

	theme := styles.NewTheme(cfg.UI.NoColor)
	theme.SetSize(width, height)
	title := theme.HeaderTitle.Render("Ask Mirror Talk")
*/
package styles
