// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"

	"github.com/tobi-mt/ask-mirror-talk/internal/answer"
	"github.com/tobi-mt/ask-mirror-talk/internal/citation"
	"github.com/tobi-mt/ask-mirror-talk/internal/format"
	"github.com/tobi-mt/ask-mirror-talk/internal/model"
	"github.com/tobi-mt/ask-mirror-talk/internal/stream"
)

// MaxStdinQuestion caps how much of stdin is read as a question.
const MaxStdinQuestion = 16 * 1024

// =============================================================================
// ASK COMMAND
// =============================================================================

// HandleAsk answers one question and prints it in the requested form.
func HandleAsk(ctx context.Context, app *App, args Args) error {
	question, err := readQuestion(app, args.Query)
	if err != nil {
		return err
	}

	st := app.OpenHistory(args.NoHistory)
	if st != nil {
		defer st.Close()
	}

	var historyID string
	progress := newProgress(app.Err, !args.Quiet && isTerminal(app.Err))
	asker := app.NewAsker(args.NoStream).
		WithHandler(progress.handler()).
		OnComplete(app.HistoryRecorder(st, func(id string) { historyID = id }))

	progress.Start()
	s, err := asker.Submit(ctx, question)
	progress.Stop()
	if err != nil {
		return err
	}

	result := s.Result()
	switch {
	case args.JSON:
		return NewJSONResponse("ask", newAskData(result, historyID)).Print(app.Out)
	case args.HTML:
		_, err := fmt.Fprintln(app.Out, citation.AnswerHTML(result))
		return err
	}

	r := app.newRenderer(args.Plain)
	_, err = io.WriteString(app.Out, r.answer(result))
	return err
}

// readQuestion returns the question from the arguments, or from stdin when
// it is "-" or absent and stdin is not a terminal.
func readQuestion(app *App, query string) (string, error) {
	if query != "" && query != "-" {
		return query, nil
	}
	if f, ok := app.In.(*os.File); ok && query == "" && isTerminal(f) {
		return "", ErrMissingArgument("question", `amt ask "How do I deal with grief?"`)
	}
	data, err := io.ReadAll(io.LimitReader(app.In, MaxStdinQuestion))
	if err != nil {
		return "", fmt.Errorf("failed to read question from stdin: %w", err)
	}
	return string(data), nil
}

// =============================================================================
// ANSWER RENDERING
// =============================================================================

// answer renders a settled answer with its sources and follow-ups.
func (r *renderer) answer(a model.Answer) string {
	var b strings.Builder
	b.WriteString(r.markdown(format.ToMarkdown(a.Text)))

	if sources := citation.ResolveAll(a.Citations); len(sources) > 0 {
		b.WriteString(r.section("Sources"))
		for i, src := range sources {
			b.WriteString(citation.TerminalLine(i+1, src, r.width))
			b.WriteByte('\n')
			if r.showExcerpts && src.Excerpt != "" {
				b.WriteString("    ")
				b.WriteString(r.style(DimStyle, src.Excerpt))
				b.WriteByte('\n')
			}
		}
	}

	if len(a.FollowUpQuestions) > 0 {
		b.WriteString(r.section("Related questions"))
		for i, q := range a.FollowUpQuestions {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, q)
		}
	}
	return b.String()
}

func (r *renderer) section(title string) string {
	return "\n" + r.style(SectionStyle, title) + "\n"
}

// =============================================================================
// PROGRESS
// =============================================================================

// progress shows a spinner with rotating loading messages on a terminal
// while a question is in flight. Status frames replace the message until
// the next rotation.
type progress struct {
	w       io.Writer
	enabled bool

	mu      sync.Mutex
	message string
	hint    bool
	done    chan struct{}
	wg      sync.WaitGroup
}

func newProgress(w io.Writer, enabled bool) *progress {
	return &progress{w: w, enabled: enabled, message: answer.LoadingMessage(0)}
}

// handler feeds status frames into the progress line.
func (p *progress) handler() stream.Handler {
	return stream.Handler{
		OnStatus: func(_ *stream.Session, message string, episodeHint bool) {
			p.mu.Lock()
			p.message, p.hint = message, episodeHint
			p.mu.Unlock()
		},
	}
}

// Start begins drawing. It is a no-op when disabled.
func (p *progress) Start() {
	if !p.enabled {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	p.done = make(chan struct{})
	p.wg.Add(1)
	go p.run(p.done)
}

// Stop clears the line and stops drawing. Safe to call more than once.
func (p *progress) Stop() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	p.wg.Wait()
	fmt.Fprint(p.w, "\r\033[K")
}

func (p *progress) run(done <-chan struct{}) {
	defer p.wg.Done()

	frames := spinner.MiniDot
	tick := time.NewTicker(frames.FPS)
	defer tick.Stop()
	rotate := time.NewTicker(answer.LoadingInterval)
	defer rotate.Stop()

	frame, loading := 0, 0
	for {
		p.mu.Lock()
		msg := p.message
		if p.hint {
			msg = HighlightStyle.Render(msg)
		} else {
			msg = DimStyle.Render(msg)
		}
		p.mu.Unlock()
		fmt.Fprintf(p.w, "\r\033[K%s %s", frames.Frames[frame%len(frames.Frames)], msg)

		select {
		case <-done:
			return
		case <-tick.C:
			frame++
		case <-rotate.C:
			loading++
			p.mu.Lock()
			p.message, p.hint = answer.LoadingMessage(loading), false
			p.mu.Unlock()
		}
	}
}

// =============================================================================
// STDIN QUESTIONS
// =============================================================================

// scanQuestions reads one question per non-blank line, used by chat when
// stdin is not a terminal.
func scanQuestions(r io.Reader, fn func(string) bool) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), MaxStdinQuestion)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !fn(line) {
			return nil
		}
	}
	return sc.Err()
}
