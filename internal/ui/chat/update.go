// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
)

const (
	// noticeTTL is how long a status bar notice stays up.
	noticeTTL = 4 * time.Second

	// playerTickInterval refreshes the playback position.
	playerTickInterval = time.Second
)

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	// =========================================================================
	// SESSION MESSAGES
	// =========================================================================

	case StateMsg:
		if !m.accept(msg.Generation) {
			return m, nil
		}
		return m.handleState(msg.State)

	case StatusMsg:
		if !m.accept(msg.Generation) {
			return m, nil
		}
		m.status = msg.Message
		m.hint = msg.Hint
		m.refresh()
		return m, nil

	case CitationsMsg:
		if !m.accept(msg.Generation) {
			return m, nil
		}
		m.citations = msg.Citations
		if !msg.QALogID.IsZero() {
			m.qaLogID = msg.QALogID
		}
		if m.selected >= len(m.citations) {
			m.selected = 0
		}
		m.refresh()
		return m, nil

	case FollowUpsMsg:
		if !m.accept(msg.Generation) {
			return m, nil
		}
		m.followUps = msg.Questions
		m.followSel = 0
		m.refresh()
		return m, nil

	case DoneMsg:
		return m.handleDone(msg)

	// =========================================================================
	// TICKS
	// =========================================================================

	case frameTickMsg:
		if gen, text, ok := m.buffer.Flush(); ok && gen == m.gen && m.inFlight() {
			m.answer = text
			m.refresh()
		}
		if m.inFlight() {
			return m, frameTickCmd()
		}
		m.ticking = false
		return m, nil

	case loadingTickMsg:
		if msg.Generation != m.gen || m.state != stream.StateRequesting {
			return m, nil
		}
		m.loadingTick = msg.Tick
		m.refresh()
		return m, loadingTickCmd(msg.Generation, msg.Tick+1)

	case spinner.TickMsg:
		if !m.inFlight() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refresh()
		return m, cmd

	case playerTickMsg:
		if m.players == nil || m.players.Active() == nil {
			m.playing = ""
			return m, nil
		}
		return m, tea.Tick(playerTickInterval, func(time.Time) tea.Msg { return playerTickMsg{} })

	// =========================================================================
	// PLAYER & FEEDBACK
	// =========================================================================

	case PlayerMsg:
		return m.handlePlayer(msg)

	case NoticeMsg:
		cmd := m.showNotice(msg.Text, msg.Success)
		return m, cmd

	case clearNoticeMsg:
		if msg.ID == m.noticeID {
			m.notice = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// resize lays the view out for a new terminal size.
func (m Model) resize(width, height int) Model {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	contentWidth := width - 4
	if contentWidth < 20 {
		contentWidth = 20
	}
	m.input.Width = contentWidth - 4
	m.newMarkdown(contentWidth)

	vh := height - headerHeight - inputHeight - statusHeight
	if vh < 3 {
		vh = 3
	}
	if !m.ready {
		m.viewport = viewport.New(width, vh)
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = vh
	}
	if m.state == stream.StateComplete {
		m.rendered = m.markdown(m.answer)
	}
	m.refresh()
	return m
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

func (m Model) handleState(st stream.State) (tea.Model, tea.Cmd) {
	prev := m.state
	m.state = st

	var cmd tea.Cmd
	switch st {
	case stream.StateRequesting:
		if prev != stream.StateRequesting {
			// a fallback retry starts the loading rotation again
			m.loadingTick = 0
			cmd = tea.Batch(loadingTickCmd(m.gen, 1), m.startFrames())
		}
	case stream.StateStreaming:
		cmd = m.startFrames()
	case stream.StateComplete, stream.StateFailed:
		if gen, text, ok := m.buffer.ForceFlush(); ok && gen == m.gen {
			m.answer = text
		}
	}
	m.refresh()
	return m, cmd
}

func (m Model) handleDone(msg DoneMsg) (tea.Model, tea.Cmd) {
	if errors.Is(msg.Err, answer.ErrSuperseded) || !m.accept(msg.Generation) {
		return m, nil
	}

	if msg.Err != nil {
		m.state = stream.StateFailed
		m.errText = answer.UserMessage(msg.Err)
		m.refresh()
		return m, nil
	}

	a := msg.Answer
	m.state = stream.StateComplete
	m.status = ""
	m.answer = a.Text
	m.rendered = m.markdown(a.Text)
	if !a.QALogID.IsZero() {
		m.qaLogID = a.QALogID
	}
	if len(m.citations) == 0 && len(a.Citations) > 0 {
		m.citations = citation.ResolveAll(a.Citations)
	}
	if len(m.followUps) == 0 {
		m.followUps = a.FollowUpQuestions
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// KEY HANDLING
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Clear):
		return m.clear(), nil
	case key.Matches(msg, m.keys.NextPane):
		m.cycleFocus(1)
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.PrevPane):
		m.cycleFocus(-1)
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	switch m.focus {
	case FocusSources:
		return m.handleSourceKey(msg)
	case FocusFollowUps:
		return m.handleFollowUpKey(msg)
	}

	if key.Matches(msg, m.keys.Submit) {
		return m.submit(m.input.Value())
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cycleFocus moves focus by dir, skipping panes with nothing in them.
func (m *Model) cycleFocus(dir int) {
	panes := []Focus{FocusInput}
	if len(m.citations) > 0 {
		panes = append(panes, FocusSources)
	}
	if len(m.followUps) > 0 {
		panes = append(panes, FocusFollowUps)
	}
	at := 0
	for i, p := range panes {
		if p == m.focus {
			at = i
		}
	}
	at = (at + dir + len(panes)) % len(panes)
	m.setFocus(panes[at])
}

func (m Model) handleSourceKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.citations) == 0 {
		m.setFocus(FocusInput)
		return m, nil
	}
	r := m.citations[m.selected]

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(msg, m.keys.Down):
		if m.selected < len(m.citations)-1 {
			m.selected++
		}
	case key.Matches(msg, m.keys.Play):
		cmd := m.togglePlayer(r)
		return m, cmd
	case key.Matches(msg, m.keys.Open):
		m.click(r)
		cmd := m.showNotice("Open: "+r.PlayURL, true)
		return m, cmd
	case key.Matches(msg, m.keys.Stop):
		cmd := m.stopPlayer()
		return m, cmd
	case key.Matches(msg, m.keys.Pause):
		cmd := m.pausePlayer()
		return m, cmd
	case key.Matches(msg, m.keys.Back):
		cmd := m.skip(-citation.SkipStep)
		return m, cmd
	case key.Matches(msg, m.keys.Forward):
		cmd := m.skip(citation.SkipStep)
		return m, cmd
	case key.Matches(msg, m.keys.ThumbsUp):
		return m.feedback(citation.FeedbackPositive)
	case key.Matches(msg, m.keys.ThumbsDn):
		return m.feedback(citation.FeedbackNegative)
	}
	m.refresh()
	return m, nil
}

func (m Model) handleFollowUpKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if len(m.followUps) == 0 {
		m.setFocus(FocusInput)
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.followSel > 0 {
			m.followSel--
		}
	case key.Matches(msg, m.keys.Down):
		if m.followSel < len(m.followUps)-1 {
			m.followSel++
		}
	case key.Matches(msg, m.keys.Submit):
		q := m.followUps[m.followSel]
		m.setFocus(FocusInput)
		return m.submit(q)
	}
	m.refresh()
	return m, nil
}

// =============================================================================
// PLAYER
// =============================================================================

// click reports a source click once per action.
func (m Model) click(r citation.Resolved) {
	if m.tracker != nil {
		m.tracker.Click(m.qaLogID, r)
	}
}

func (m *Model) togglePlayer(r citation.Resolved) tea.Cmd {
	if m.players == nil || !r.Inline() {
		m.click(r)
		return m.showNotice("Open: "+r.PlayURL, true)
	}
	m.click(r)
	players, ctx := m.players, m.ctx
	return func() tea.Msg {
		p, err := players.Toggle(ctx, r)
		if err != nil {
			return PlayerMsg{Err: err}
		}
		if p == nil {
			return PlayerMsg{Stopped: true}
		}
		return PlayerMsg{Key: r.Key(), Title: r.Title}
	}
}

func (m *Model) stopPlayer() tea.Cmd {
	if m.players == nil {
		return nil
	}
	players := m.players
	return func() tea.Msg {
		if err := players.Close(); err != nil {
			return PlayerMsg{Err: err, Stopped: true}
		}
		return PlayerMsg{Stopped: true}
	}
}

func (m *Model) pausePlayer() tea.Cmd {
	p := m.activePlayer()
	if p == nil {
		return nil
	}
	var err error
	if p.Playing() {
		err = p.Pause()
	} else {
		err = p.Play()
	}
	if err != nil {
		return m.showNotice(err.Error(), false)
	}
	return nil
}

func (m *Model) skip(d time.Duration) tea.Cmd {
	p := m.activePlayer()
	if p == nil {
		return nil
	}
	if err := p.Skip(d); err != nil {
		return m.showNotice(err.Error(), false)
	}
	return nil
}

func (m Model) activePlayer() *citation.Player {
	if m.players == nil {
		return nil
	}
	return m.players.Active()
}

func (m Model) handlePlayer(msg PlayerMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.playing = ""
		if errors.Is(msg.Err, citation.ErrNotPlayable) {
			cmd := m.showNotice("This source has no audio to play here.", false)
			return m, cmd
		}
		cmd := m.showNotice("Playback failed: "+msg.Err.Error(), false)
		return m, cmd
	}
	if msg.Stopped {
		m.playing = ""
		m.refresh()
		return m, nil
	}
	m.playing = msg.Key
	m.refresh()
	return m, tea.Batch(
		m.showNotice("Playing: "+msg.Title, true),
		tea.Tick(playerTickInterval, func(time.Time) tea.Msg { return playerTickMsg{} }),
	)
}

// =============================================================================
// FEEDBACK & NOTICES
// =============================================================================

func (m Model) feedback(kind citation.FeedbackType) (tea.Model, tea.Cmd) {
	if m.tracker == nil || m.qaLogID.IsZero() {
		cmd := m.showNotice("Feedback is available once the answer is complete.", false)
		return m, cmd
	}
	if m.rated {
		cmd := m.showNotice("You already rated this answer.", false)
		return m, cmd
	}
	text, ok := m.tracker.Feedback(m.qaLogID, kind)
	if !ok {
		m.rated = true
		cmd := m.showNotice("You already rated this answer.", false)
		return m, cmd
	}
	m.rated = true
	cmd := m.showNotice(text, true)
	return m, cmd
}

// showNotice puts text in the status bar and schedules its removal.
func (m *Model) showNotice(text string, success bool) tea.Cmd {
	m.noticeID++
	m.notice = text
	m.noticeOK = success
	id := m.noticeID
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg { return clearNoticeMsg{ID: id} })
}
