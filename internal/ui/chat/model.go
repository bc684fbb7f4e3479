// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/format"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
	"github.com/tobi-mt/ask-mirror-talk/internal/ui/styles"
)

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Deps are the collaborators the ask screen drives. Tracker and Players
// may be nil to disable analytics or inline playback.
type Deps struct {
	Asker    *answer.Asker
	Tracker  *citation.Tracker
	Players  *citation.PlayerManager
	Renderer *citation.Renderer
	Buffer   *AnswerBuffer

	// MarkdownStyle is the glamour style name; "" or "auto" detects it
	MarkdownStyle string
}

// Handler builds the session callbacks that feed a running program. Chunk
// snapshots go through buf; everything else is sent as a message.
func Handler(send func(tea.Msg), buf *AnswerBuffer, r *citation.Renderer) stream.Handler {
	return stream.Handler{
		OnState: func(s *stream.Session, st stream.State) {
			send(StateMsg{Generation: s.Generation, State: st})
		},
		OnStatus: func(s *stream.Session, message string, hint bool) {
			send(StatusMsg{Generation: s.Generation, Message: message, Hint: hint})
		},
		OnChunk: func(s *stream.Session, _ string, _ bool) {
			buf.Write(s.Generation, s.Answer())
		},
		OnCitations: func(s *stream.Session) {
			send(CitationsMsg{
				Generation: s.Generation,
				QALogID:    s.QALogID(),
				Citations:  r.Attach(s.QALogID(), s.Citations()),
			})
		},
		OnFollowUp: func(s *stream.Session) {
			send(FollowUpsMsg{Generation: s.Generation, Questions: s.FollowUps()})
		},
	}
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the ask screen: one question, its
// streamed answer, the sources and the suggested follow-ups.
type Model struct {
	ctx context.Context

	// Styling
	theme   *styles.Theme
	mdStyle string
	md      *glamour.TermRenderer

	// Dimensions
	width  int
	height int
	ready  bool

	// Collaborators
	asker    *answer.Asker
	tracker  *citation.Tracker
	players  *citation.PlayerManager
	renderer *citation.Renderer
	buffer   *AnswerBuffer

	// UI Components
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	keys     KeyMap
	focus    Focus

	// Session on screen
	gen         uint64
	state       stream.State
	question    string
	answer      string
	rendered    string
	status      string
	hint        bool
	loadingTick int
	errText     string
	ticking     bool

	// Sources and follow-ups
	qaLogID   model.ID
	citations []citation.Resolved
	selected  int
	followUps []string
	followSel int
	playing   string
	rated     bool

	// Status bar notice
	notice   string
	noticeOK bool
	noticeID int
}

// New creates the ask screen.
func New(ctx context.Context, theme *styles.Theme, deps Deps) Model {
	input := textinput.New()
	input.Placeholder = "Ask a question about life, growth, or healing…"
	input.Prompt = "› "
	input.PromptStyle = theme.InputPrompt
	input.CharLimit = 1000
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Loading

	renderer := deps.Renderer
	if renderer == nil {
		renderer = citation.NewRenderer()
	}
	buffer := deps.Buffer
	if buffer == nil {
		buffer = NewAnswerBuffer()
	}

	return Model{
		ctx:      ctx,
		theme:    theme,
		mdStyle:  deps.MarkdownStyle,
		asker:    deps.Asker,
		tracker:  deps.Tracker,
		players:  deps.Players,
		renderer: renderer,
		buffer:   buffer,
		input:    input,
		spinner:  sp,
		keys:     DefaultKeyMap(),
		state:    stream.StateIdle,
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the state of the session on screen.
func (m Model) State() stream.State { return m.state }

// Question returns the question on screen.
func (m Model) Question() string { return m.question }

// Answer returns the answer text shown so far.
func (m Model) Answer() string { return m.answer }

// Citations returns the sources shown for the answer.
func (m Model) Citations() []citation.Resolved { return m.citations }

// FollowUps returns the suggested follow-up questions.
func (m Model) FollowUps() []string { return m.followUps }

// Error returns the user-facing error line, if any.
func (m Model) Error() string { return m.errText }

// Notice returns the status bar notice, if any.
func (m Model) Notice() string { return m.notice }

// Focus returns the focused pane.
func (m Model) Focus() Focus { return m.focus }

// Generation returns the oldest session generation the model accepts.
func (m Model) Generation() uint64 { return m.gen }

// inFlight reports whether a session is still producing output.
func (m Model) inFlight() bool {
	return m.state == stream.StateRequesting || m.state == stream.StateStreaming
}

// =============================================================================
// SESSION CONTROL
// =============================================================================

// submit validates q and starts a session for it.
func (m Model) submit(q string) (Model, tea.Cmd) {
	if _, err := answer.Validate(q); err != nil {
		m.errText = answer.UserMessage(err)
		m.refresh()
		return m, nil
	}

	m.resetSession()
	m.gen = m.asker.Tracker().Generation() + 1
	m.buffer.Reset(m.gen)
	m.question = strings.TrimSpace(q)
	m.state = stream.StateRequesting
	m.input.SetValue("")
	m.refresh()

	asker, ctx := m.asker, m.ctx
	run := func() tea.Msg {
		s, err := asker.Submit(ctx, q)
		done := DoneMsg{Err: err}
		if s != nil {
			done.Generation = s.Generation
			done.Answer = s.Result()
		}
		return done
	}
	frames := m.startFrames()
	return m, tea.Batch(run, m.spinner.Tick, loadingTickCmd(m.gen, 1), frames)
}

// clear invalidates the session on screen and empties the view.
func (m Model) clear() Model {
	m.asker.Clear()
	m.resetSession()
	m.gen = m.asker.Tracker().Generation() + 1
	m.buffer.Reset(m.gen)
	m.question = ""
	m.state = stream.StateIdle
	m.input.SetValue("")
	m.setFocus(FocusInput)
	m.refresh()
	return m
}

func (m *Model) resetSession() {
	m.answer = ""
	m.rendered = ""
	m.status = ""
	m.hint = false
	m.loadingTick = 0
	m.errText = ""
	m.qaLogID = ""
	m.citations = nil
	m.selected = 0
	m.followUps = nil
	m.followSel = 0
	m.rated = false
	m.viewport.GotoTop()
}

// accept reports whether a message from generation gen belongs on screen.
func (m *Model) accept(gen uint64) bool {
	if gen < m.gen {
		return false
	}
	m.gen = gen
	return true
}

func (m *Model) startFrames() tea.Cmd {
	if m.ticking {
		return nil
	}
	m.ticking = true
	return frameTickCmd()
}

func loadingTickCmd(gen uint64, tick int) tea.Cmd {
	return tea.Tick(answer.LoadingInterval, func(time.Time) tea.Msg {
		return loadingTickMsg{Generation: gen, Tick: tick}
	})
}

// =============================================================================
// RENDERING HELPERS
// =============================================================================

// markdown renders the settled answer with glamour, falling back to the
// raw text.
func (m *Model) markdown(text string) string {
	if text == "" {
		return ""
	}
	if m.md == nil {
		return text
	}
	out, err := m.md.Render(format.ToMarkdown(text))
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// newMarkdown rebuilds the glamour renderer for the content width.
func (m *Model) newMarkdown(width int) {
	opts := []glamour.TermRendererOption{
		glamour.WithWordWrap(width),
		glamour.WithColorProfile(m.theme.ColorProfile),
		glamour.WithEmoji(),
	}
	// auto resolves from the background detected once at startup
	switch style := strings.ToLower(m.mdStyle); style {
	case "", "auto":
		if m.theme.IsDark {
			opts = append(opts, glamour.WithStandardStyle("dark"))
		} else {
			opts = append(opts, glamour.WithStandardStyle("light"))
		}
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		m.md = nil
		return
	}
	m.md = md
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == FocusInput {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}
