// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultPlayerCommand plays audio with mpv. {url} and {start} are
// replaced at launch.
var DefaultPlayerCommand = []string{"mpv", "--no-video", "--really-quiet", "--start={start}", "{url}"}

// CommandBackend plays audio through an external command. Seeking and
// pausing restart or stop the process, and the position is tracked from
// wall-clock time since launch.
type CommandBackend struct {
	argv []string
}

// NewCommandBackend creates a backend for the given argv template.
func NewCommandBackend(argv []string) (*CommandBackend, error) {
	if len(argv) == 0 {
		argv = DefaultPlayerCommand
	}
	if _, err := exec.LookPath(argv[0]); err != nil {
		return nil, fmt.Errorf("player command %q not found: %w", argv[0], err)
	}
	return &CommandBackend{argv: append([]string(nil), argv...)}, nil
}

// Load prepares a stopped audio source for url.
func (b *CommandBackend) Load(_ context.Context, url string) (Audio, error) {
	if url == "" {
		return nil, ErrNotPlayable
	}
	return &commandAudio{argv: b.argv, url: url}, nil
}

type commandAudio struct {
	argv []string
	url  string

	mu        sync.Mutex
	base      float64
	startedAt time.Time
	cmd       *exec.Cmd
	closed    bool
}

var errClosed = errors.New("audio closed")

func (a *commandAudio) Seek(seconds float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClosed
	}
	playing := a.cmd != nil
	a.stopLocked()
	a.base = seconds
	if playing {
		return a.startLocked()
	}
	return nil
}

func (a *commandAudio) Play() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errClosed
	}
	if a.cmd != nil {
		return nil
	}
	return a.startLocked()
}

func (a *commandAudio) Pause() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cmd == nil {
		return nil
	}
	a.base = a.positionLocked()
	a.stopLocked()
	return nil
}

func (a *commandAudio) Position() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positionLocked()
}

func (a *commandAudio) Playing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cmd != nil
}

func (a *commandAudio) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
	a.closed = true
	return nil
}

func (a *commandAudio) positionLocked() float64 {
	if a.cmd == nil {
		return a.base
	}
	return a.base + time.Since(a.startedAt).Seconds()
}

func (a *commandAudio) startLocked() error {
	start := strconv.FormatFloat(a.base, 'f', 2, 64)
	args := make([]string, len(a.argv))
	for i, arg := range a.argv {
		arg = strings.ReplaceAll(arg, "{url}", a.url)
		args[i] = strings.ReplaceAll(arg, "{start}", start)
	}

	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start player: %w", err)
	}
	a.cmd = cmd
	a.startedAt = time.Now()

	go func() {
		cmd.Wait()
		a.mu.Lock()
		defer a.mu.Unlock()
		// Natural end of playback: keep the reached position.
		if a.cmd == cmd {
			a.base = a.positionLocked()
			a.cmd = nil
		}
	}()
	return nil
}

func (a *commandAudio) stopLocked() {
	if a.cmd == nil {
		return
	}
	if a.cmd.Process != nil {
		a.cmd.Process.Kill()
	}
	a.cmd = nil
}
