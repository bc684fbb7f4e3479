// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/config"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
	"github.com/tobi-mt/ask-mirror-talk/internal/timestamp"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line editor with history loaded from the config
// directory.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.Dir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	c.LoadHistory()
	return c
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists command history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession holds the state of one chat run.
type ChatSession struct {
	app      *App
	out      io.Writer
	asker    *answer.Asker
	render   *renderer
	tracker  *citation.Tracker
	players  *citation.PlayerManager // nil when playback is unavailable
	quiet    bool
	progress bool

	last    model.Answer
	sources []citation.Resolved
	asked   int
}

// NewChatSession wires a session. st may be nil to skip history.
func NewChatSession(app *App, args Args, st *storage.Store) *ChatSession {
	c := &ChatSession{
		app:      app,
		out:      app.Out,
		render:   app.newRenderer(false),
		tracker:  app.NewTracker(),
		players:  app.NewPlayerManager(),
		quiet:    args.Quiet,
		progress: !args.Quiet && isTerminal(app.Err),
	}
	c.asker = app.NewAsker(args.NoStream).OnComplete(app.HistoryRecorder(st, nil))
	return c
}

// Close stops playback and waits for analytics posts.
func (c *ChatSession) Close() {
	if c.players != nil {
		c.players.Close()
	}
	c.tracker.Wait()
}

// HandleChat runs the interactive question loop. With a terminal on stdin
// it uses liner for editing and history; otherwise it reads one line per
// question or command.
func HandleChat(ctx context.Context, app *App, args Args) error {
	st := app.OpenHistory(args.NoHistory)
	if st != nil {
		defer st.Close()
	}

	session := NewChatSession(app, args, st)
	defer session.Close()

	f, interactive := app.In.(*os.File)
	if !interactive || !isTerminal(f) {
		return scanQuestions(app.In, func(line string) bool {
			quit, err := session.Handle(ctx, line)
			if err != nil {
				DisplayError(app.Err, "chat", err, false)
			}
			return !quit && ctx.Err() == nil
		})
	}

	printWelcome(session)
	cli := NewChatCLI()
	defer cli.Close()

	for ctx.Err() == nil {
		input, err := cli.ReadInput(PromptStyle.Render("ask> "))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		quit, err := session.Handle(ctx, input)
		if err != nil {
			DisplayError(app.Err, "chat", err, false)
		}
		if quit {
			break
		}
	}

	printExitSummary(session)
	return nil
}

// Handle processes one line: a slash command or a question.
func (c *ChatSession) Handle(ctx context.Context, input string) (quit bool, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return false, nil
	}
	if strings.HasPrefix(input, "/") {
		return c.command(ctx, input)
	}
	return false, c.ask(ctx, input)
}

// ask submits a question and prints the answer.
func (c *ChatSession) ask(ctx context.Context, question string) error {
	p := newProgress(c.app.Err, c.progress)
	c.asker.WithHandler(p.handler())

	p.Start()
	s, err := c.asker.Submit(ctx, question)
	p.Stop()
	if err != nil {
		return err
	}

	c.last = s.Result()
	c.sources = citation.ResolveAll(c.last.Citations)
	c.asked++

	fmt.Fprint(c.out, c.render.answer(c.last))
	if !c.quiet && (len(c.sources) > 0 || !c.last.QALogID.IsZero()) {
		fmt.Fprintln(c.out, c.render.style(DimStyle, "/play N to listen, /up or /down to rate, /help for more"))
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

func (c *ChatSession) command(ctx context.Context, input string) (bool, error) {
	fields := strings.Fields(input)
	name := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil

	case "/help", "/?":
		printHelp(c.out)

	case "/sources":
		if len(c.sources) == 0 {
			fmt.Fprintln(c.out, "No sources for the last answer.")
			return false, nil
		}
		fmt.Fprint(c.out, citation.RenderTerminal(c.sources, c.render.width))

	case "/play":
		r, err := c.source(arg)
		if err != nil {
			return false, err
		}
		return false, c.play(ctx, r)

	case "/stop":
		if c.players != nil {
			c.players.Close()
		}
		fmt.Fprintln(c.out, "■ Stopped")

	case "/pause":
		p, err := c.activePlayer()
		if err != nil {
			return false, err
		}
		if p.Playing() {
			return false, p.Pause()
		}
		return false, p.Play()

	case "/back", "/fwd":
		p, err := c.activePlayer()
		if err != nil {
			return false, err
		}
		step := citation.SkipStep
		if name == "/back" {
			step = -step
		}
		if err := p.Skip(step); err != nil {
			return false, err
		}
		fmt.Fprintf(c.out, "⏱ %s\n", timestamp.ToDisplay(p.Position()))

	case "/open":
		r, err := c.source(arg)
		if err != nil {
			return false, err
		}
		if !r.Linkable() {
			return false, &UsageError{Reason: "that source has no link"}
		}
		c.tracker.Click(c.last.QALogID, r)
		fmt.Fprintln(c.out, r.PlayURL)

	case "/up", "/down":
		kind := citation.FeedbackPositive
		if name == "/down" {
			kind = citation.FeedbackNegative
		}
		c.feedback(kind)

	case "/follow":
		n, err := strconv.Atoi(arg)
		if err != nil || n < 1 || n > len(c.last.FollowUpQuestions) {
			return false, &UsageError{Reason: "no such follow-up question", Example: "/follow 1"}
		}
		q := c.last.FollowUpQuestions[n-1]
		fmt.Fprintln(c.out, c.render.style(TitleStyle, "» "+q))
		return false, c.ask(ctx, q)

	default:
		example := "/help"
		if s := SuggestChatCommand(name); s != "" {
			example = s
		}
		return false, &UsageError{Reason: fmt.Sprintf("unknown command %s", name), Example: example}
	}
	return false, nil
}

func (c *ChatSession) source(arg string) (citation.Resolved, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(c.sources) {
		return citation.Resolved{}, &UsageError{Reason: "no such source", Example: "/play 1"}
	}
	return c.sources[n-1], nil
}

func (c *ChatSession) activePlayer() (*citation.Player, error) {
	if c.players == nil || c.players.Active() == nil {
		return nil, &UsageError{Reason: "nothing is playing", Example: "/play 1"}
	}
	return c.players.Active(), nil
}

// play toggles the inline player for r. Without a player the play URL is
// printed instead.
func (c *ChatSession) play(ctx context.Context, r citation.Resolved) error {
	c.tracker.Click(c.last.QALogID, r)

	if c.players == nil || !r.Inline() {
		if !r.Linkable() {
			return citation.ErrNotPlayable
		}
		fmt.Fprintf(c.out, "%s %s\n", c.render.style(WarningStyle, "No inline player; open:"), r.PlayURL)
		return nil
	}

	p, err := c.players.Toggle(ctx, r)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintln(c.out, "■ Stopped")
		return nil
	}
	fmt.Fprintf(c.out, "▶ %s from %s\n", r.Title, r.StartLabel)
	return nil
}

func (c *ChatSession) feedback(kind citation.FeedbackType) {
	if c.asked == 0 {
		fmt.Fprintln(c.out, "Ask a question first.")
		return
	}
	msg, ok := c.tracker.Feedback(c.last.QALogID, kind)
	switch {
	case ok:
		fmt.Fprintln(c.out, c.render.style(SuccessStyle, msg))
	case c.last.QALogID.IsZero():
		fmt.Fprintln(c.out, "Feedback is not available for this answer.")
	default:
		fmt.Fprintln(c.out, "Feedback already sent for this answer.")
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func printWelcome(c *ChatSession) {
	if c.quiet {
		return
	}
	fmt.Fprintln(c.out, c.render.style(TitleStyle, "Ask Mirror Talk"))
	fmt.Fprintln(c.out, c.render.style(DimStyle, "Ask anything about the podcast. /help for commands, Ctrl+C to quit."))
	if c.players == nil {
		fmt.Fprintln(c.out, c.render.style(DimStyle, "Inline playback is off; /play prints the episode link."))
	}
	fmt.Fprintln(c.out)
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  /play N     play or stop citation N      /stop       close the player
  /pause      pause or resume              /back /fwd  skip 10 seconds
  /open N     print citation N's link      /sources    list citations
  /follow N   ask related question N       /up /down   rate the answer
  /help       this help                    /quit       leave
`)
}

func printExitSummary(c *ChatSession) {
	if c.quiet || c.asked == 0 {
		return
	}
	fmt.Fprintf(c.out, "\n%s\n", c.render.style(DimStyle, fmt.Sprintf("%d question(s) asked. Take care.", c.asked)))
}
