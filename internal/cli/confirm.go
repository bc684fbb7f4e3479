// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// =============================================================================
// CONFIRMATION PROMPTS
// =============================================================================

// RequireConfirmation asks before a destructive action. confirmFlag (--yes)
// skips the prompt. Without a terminal to prompt on, the action is refused
// with a usage error that names the flag.
func RequireConfirmation(app *App, confirmFlag bool, action, command string) (bool, error) {
	if confirmFlag {
		return true, nil
	}
	if f, ok := app.In.(*os.File); !ok || !isTerminal(f) {
		return false, &UsageError{
			Reason:  action + " needs confirmation",
			Example: command + " --yes",
		}
	}
	return PromptYesNo(app.In, app.Err, action+"?"), nil
}

// PromptYesNo asks question on w and reads the answer from r. Anything
// other than y or yes is a no.
func PromptYesNo(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N]: ", question)

	input, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && input == "" {
		return false
	}
	response := strings.ToLower(strings.TrimSpace(input))
	return response == "y" || response == "yes"
}
