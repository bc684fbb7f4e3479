// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/tobi-mt/ask-mirror-talk/internal/export"
	"github.com/tobi-mt/ask-mirror-talk/internal/storage"
	"github.com/tobi-mt/ask-mirror-talk/internal/util"
)

// DefaultHistoryLimit is how many entries `history` lists by default.
const DefaultHistoryLimit = 20

// HandleHistory lists, searches or shows stored answers.
func HandleHistory(ctx context.Context, app *App, args Args) error {
	if !app.Config.Storage.History {
		return &UsageError{Reason: "history is disabled", Example: "amt config set storage.history true"}
	}
	st, err := app.OpenStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if args.Subcommand == "export" {
		return exportHistory(ctx, app, st, args)
	}

	if args.Subcommand == "show" {
		rec, err := st.GetAnswer(ctx, args.ID)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return fmt.Errorf("answer %s: %w", args.ID, err)
			}
			return err
		}
		if args.JSON {
			return NewJSONResponse("history", newAskData(rec.Answer, rec.ID)).Print(app.Out)
		}
		r := app.newRenderer(false)
		fmt.Fprintf(app.Out, "%s\n%s\n\n", r.style(TitleStyle, rec.Question), r.style(DimStyle, describe(rec)))
		_, err = io.WriteString(app.Out, r.answer(rec.Answer))
		return err
	}

	limit := args.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	var records []storage.Record
	if args.Subcommand == "search" {
		records, err = st.SearchAnswers(ctx, args.Search, limit)
	} else {
		records, err = st.RecentAnswers(ctx, limit)
	}
	if err != nil {
		return err
	}

	if args.JSON {
		entries := make([]HistoryEntryData, len(records))
		for i, rec := range records {
			entries[i] = HistoryEntryData{
				ID:        rec.ID,
				Question:  rec.Question,
				Preview:   util.Excerpt(rec.Text, 120),
				Path:      rec.Path,
				Sources:   len(rec.Citations),
				CreatedAt: rec.CreatedAt,
			}
		}
		return NewJSONResponse("history", entries).Print(app.Out)
	}

	if len(records) == 0 {
		if args.Subcommand == "search" {
			fmt.Fprintf(app.Out, "No answers match %q.\n", args.Search)
		} else {
			fmt.Fprintln(app.Out, "No answers yet. Try: amt ask \"How do I deal with grief?\"")
		}
		return nil
	}

	r := app.newRenderer(false)
	width := r.width
	for _, rec := range records {
		id := rec.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fmt.Fprintf(app.Out, "%s  %s\n", r.style(DimStyle, id), util.TruncateWidth(rec.Question, width-10))
		fmt.Fprintf(app.Out, "          %s\n", r.style(DimStyle, describe(rec)))
	}
	return nil
}

// describe summarises where and when an answer came from.
func describe(rec storage.Record) string {
	parts := []string{rec.CreatedAt.Local().Format("2006-01-02 15:04")}
	if n := len(rec.Citations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d source(s)", n))
	}
	if rec.Path != "" {
		parts = append(parts, "via "+string(rec.Path))
	}
	if rec.Latency > 0 {
		parts = append(parts, rec.Latency.Round(100*time.Millisecond).String())
	}
	return strings.Join(parts, " · ")
}

// ExportData is the JSON data of `history export`.
type ExportData struct {
	Path    string `json:"path"`
	Format  string `json:"format"`
	Answers int    `json:"answers"`
}

// exportHistory writes the answers named by id, or the search results, or
// the most recent answers, to one file.
func exportHistory(ctx context.Context, app *App, st *storage.Store, args Args) error {
	format, err := export.ParseFormat(args.Format)
	if err != nil {
		return &UsageError{Reason: err.Error(), Example: "amt history export --format html"}
	}

	var records []storage.Record
	switch {
	case len(args.IDs) > 0:
		for _, id := range args.IDs {
			rec, err := st.GetAnswer(ctx, id)
			if err != nil {
				return fmt.Errorf("answer %s: %w", id, err)
			}
			records = append(records, rec)
		}
	case args.Search != "":
		records, err = st.SearchAnswers(ctx, args.Search, exportLimit(args.Limit))
	default:
		records, err = st.RecentAnswers(ctx, exportLimit(args.Limit))
	}
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return &UsageError{Reason: "no answers to export", Example: `amt ask "How do I deal with grief?"`}
	}

	opts := export.DefaultOptions()
	opts.OutputDir = args.OutputDir
	opts.IncludeExcerpts = app.Config.UI.ShowExcerpts
	if app.Config.UI.Theme == "dark" {
		opts.Theme = "dark"
	}
	exp, err := export.New(format, opts)
	if err != nil {
		return err
	}
	path, err := export.ToFile(records, exp, opts)
	if err != nil {
		return err
	}
	app.Logger.Info("history exported", "path", path, "format", string(format), "answers", len(records))

	if args.JSON {
		return NewJSONResponse("history", ExportData{Path: path, Format: string(format), Answers: len(records)}).Print(app.Out)
	}
	fmt.Fprintf(app.Out, "%s exported %d %s to %s\n",
		SuccessStyle.Render("✓"), len(records), plural(int64(len(records)), "answer", "answers"), path)
	return nil
}

// exportLimit is the default export size: every stored answer up to the
// history cap.
func exportLimit(limit int) int {
	if limit > 0 {
		return limit
	}
	return storage.DefaultMaxAnswers
}
