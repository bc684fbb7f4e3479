// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package citation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SkipStep is how far the skip controls move.
const SkipStep = 10 * time.Second

// DefaultWatchInterval is how often a player checks its stop position.
const DefaultWatchInterval = 250 * time.Millisecond

// ErrNotPlayable is returned for citations without an audio URL.
var ErrNotPlayable = errors.New("citation has no audio url")

// =============================================================================
// BACKEND INTERFACES
// =============================================================================

// Audio is one loaded audio source.
type Audio interface {
	Seek(seconds float64) error
	Play() error
	Pause() error
	Position() float64
	Playing() bool

	// Close stops playback and releases the source.
	Close() error
}

// Backend loads audio sources.
type Backend interface {
	Load(ctx context.Context, url string) (Audio, error)
}

// =============================================================================
// PLAYER
// =============================================================================

// Player is an open inline player bound to one citation.
type Player struct {
	Citation Resolved

	audio  Audio
	stopAt float64
	done   chan struct{}
	once   sync.Once
}

// Position returns the playback position in seconds.
func (p *Player) Position() float64 { return p.audio.Position() }

// Playing reports whether audio is playing.
func (p *Player) Playing() bool { return p.audio.Playing() }

// Play resumes playback.
func (p *Player) Play() error { return p.audio.Play() }

// Pause pauses playback.
func (p *Player) Pause() error { return p.audio.Pause() }

// Skip moves the position by d, clamped at zero.
func (p *Player) Skip(d time.Duration) error {
	pos := p.audio.Position() + d.Seconds()
	if pos < 0 {
		pos = 0
	}
	return p.audio.Seek(pos)
}

// ExternalURL is the "open externally" target.
func (p *Player) ExternalURL() string {
	return p.Citation.PlayURL
}

func (p *Player) release() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		p.audio.Pause()
		err = p.audio.Close()
	})
	return err
}

// =============================================================================
// MANAGER
// =============================================================================

// PlayerManager owns the single inline player.
type PlayerManager struct {
	backend  Backend
	interval time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	active *Player
}

// NewPlayerManager creates a manager over backend.
func NewPlayerManager(backend Backend) *PlayerManager {
	return &PlayerManager{
		backend:  backend,
		interval: DefaultWatchInterval,
		logger:   slog.Default(),
	}
}

// WithWatchInterval overrides the stop-position polling interval.
func (m *PlayerManager) WithWatchInterval(d time.Duration) *PlayerManager {
	m.interval = d
	return m
}

// WithLogger sets the logger.
func (m *PlayerManager) WithLogger(l *slog.Logger) *PlayerManager {
	m.logger = l
	return m
}

// Active returns the open player or nil.
func (m *PlayerManager) Active() *Player {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Toggle opens a player for r, or closes it if r is already open. Any
// other open player is released first. It returns the open player, or nil
// when the toggle closed it.
func (m *PlayerManager) Toggle(ctx context.Context, r Resolved) (*Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		same := m.active.Citation.Key() == r.Key()
		if err := m.active.release(); err != nil {
			m.logger.Debug("player release failed", "error", err)
		}
		m.active = nil
		if same {
			return nil, nil
		}
	}

	if !r.Inline() {
		return nil, ErrNotPlayable
	}

	audio, err := m.backend.Load(ctx, r.AudioURL)
	if err != nil {
		return nil, fmt.Errorf("failed to load audio: %w", err)
	}
	if r.Start > 0 {
		if err := audio.Seek(r.Start); err != nil {
			audio.Close()
			return nil, fmt.Errorf("failed to seek: %w", err)
		}
	}
	if err := audio.Play(); err != nil {
		audio.Close()
		return nil, fmt.Errorf("failed to start playback: %w", err)
	}

	p := &Player{
		Citation: r,
		audio:    audio,
		stopAt:   r.StopAt(),
		done:     make(chan struct{}),
	}
	m.active = p
	if p.stopAt > 0 {
		go m.watch(p)
	}
	return p, nil
}

// Close releases the open player, if any.
func (m *PlayerManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	err := m.active.release()
	m.active = nil
	return err
}

// watch pauses p once playback reaches its stop position. Seeking back
// before the stop position and resuming plays past it only after another
// crossing.
func (m *PlayerManager) watch(p *Player) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	paused := false
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			pos := p.audio.Position()
			if pos < p.stopAt {
				paused = false
				continue
			}
			if !paused && p.audio.Playing() {
				if err := p.audio.Pause(); err != nil {
					m.logger.Debug("auto-pause failed", "error", err)
				}
				paused = true
			}
		}
	}
}
