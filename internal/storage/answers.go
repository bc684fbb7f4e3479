// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"

	"github.com/tobi-mt/ask-mirror-talk/internal/model"
)

// Record is a stored answer with its history id.
type Record struct {
	ID string `json:"id"`
	model.Answer
}

// searchDoc is what the full-text index sees for each answer.
type searchDoc struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// =============================================================================
// SAVE
// =============================================================================

// SaveAnswer stores a completed answer and returns its history id.
func (s *Store) SaveAnswer(ctx context.Context, a model.Answer) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}

	citations, err := json.Marshal(nonNil(a.Citations))
	if err != nil {
		return "", fmt.Errorf("failed to encode citations: %w", err)
	}
	followUps, err := json.Marshal(nonNil(a.FollowUpQuestions))
	if err != nil {
		return "", fmt.Errorf("failed to encode follow-ups: %w", err)
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO answers (id, question, answer, citations, follow_ups, qa_log_id, path, cached, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.Question, a.Text, string(citations), string(followUps),
		a.QALogID.String(), string(a.Path), boolInt(a.Cached),
		a.Latency.Milliseconds(), a.CreatedAt.UnixNano())
	if err != nil {
		return "", fmt.Errorf("failed to save answer: %w", err)
	}

	if err := s.search.Index(id, searchDoc{Question: a.Question, Answer: a.Text}); err != nil {
		return "", fmt.Errorf("failed to index answer: %w", err)
	}

	if s.MaxAnswers > 0 {
		s.enforceLimit(ctx)
	}
	return id, nil
}

// enforceLimit removes the oldest answers beyond MaxAnswers.
func (s *Store) enforceLimit(ctx context.Context) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM answers ORDER BY created_at DESC LIMIT -1 OFFSET ?`, s.MaxAnswers)
	if err != nil {
		return
	}
	var stale []string
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			stale = append(stale, id)
		}
	}
	rows.Close()

	for _, id := range stale {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM answers WHERE id = ?`, id); err == nil {
			s.search.Delete(id)
		}
	}
}

// =============================================================================
// LOAD
// =============================================================================

const answerColumns = `id, question, answer, citations, follow_ups, qa_log_id, path, cached, latency_ms, created_at`

// MinIDPrefix is the shortest id prefix GetAnswer accepts.
const MinIDPrefix = 4

// ErrAmbiguousID is returned when an id prefix matches several answers.
var ErrAmbiguousID = errors.New("id prefix matches more than one answer")

// GetAnswer loads one answer by history id or a unique id prefix.
func (s *Store) GetAnswer(ctx context.Context, id string) (Record, error) {
	if err := s.checkOpen(); err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+answerColumns+` FROM answers WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == nil || !errors.Is(err, sql.ErrNoRows) {
		return rec, err
	}
	if len(id) < MinIDPrefix || strings.ContainsAny(id, "%_") {
		return Record{}, ErrNotFound
	}

	rows, err := s.db.QueryContext(ctx, `SELECT `+answerColumns+` FROM answers WHERE id LIKE ? LIMIT 2`, id+"%")
	if err != nil {
		return Record{}, fmt.Errorf("failed to query answers: %w", err)
	}
	defer rows.Close()
	var found []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return Record{}, err
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return Record{}, err
	}
	switch len(found) {
	case 0:
		return Record{}, ErrNotFound
	case 1:
		return found[0], nil
	}
	return Record{}, ErrAmbiguousID
}

// RecentAnswers returns up to limit answers, newest first.
func (s *Store) RecentAnswers(ctx context.Context, limit int) ([]Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+answerColumns+` FROM answers ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list answers: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// =============================================================================
// SEARCH
// =============================================================================

// SearchAnswers runs a full-text query over questions and answers and
// returns matches in relevance order. The query uses bleve's query-string
// syntax; input that does not parse is retried as a plain match query.
func (s *Store) SearchAnswers(ctx context.Context, query string, limit int) ([]Record, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(query), limit, 0, false)
	res, err := s.search.SearchInContext(ctx, req)
	if err != nil {
		req = bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), limit, 0, false)
		if res, err = s.search.SearchInContext(ctx, req); err != nil {
			return nil, fmt.Errorf("search failed: %w", err)
		}
	}

	out := make([]Record, 0, len(res.Hits))
	for _, hit := range res.Hits {
		rec, err := s.GetAnswer(ctx, hit.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// reindex loads every stored answer into the search index.
func (s *Store) reindex() error {
	rows, err := s.db.Query(`SELECT id, question, answer FROM answers`)
	if err != nil {
		return err
	}
	defer rows.Close()

	batch := s.search.NewBatch()
	for rows.Next() {
		var id string
		var doc searchDoc
		if err := rows.Scan(&id, &doc.Question, &doc.Answer); err != nil {
			return err
		}
		if err := batch.Index(id, doc); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return s.search.Batch(batch)
}

// =============================================================================
// HELPERS
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec       Record
		citations string
		followUps string
		qaLogID   string
		path      string
		cached    int
		latencyMs int64
		created   int64
	)
	err := row.Scan(&rec.ID, &rec.Question, &rec.Text, &citations, &followUps,
		&qaLogID, &path, &cached, &latencyMs, &created)
	if err != nil {
		return Record{}, err
	}
	if err := json.Unmarshal([]byte(citations), &rec.Citations); err != nil {
		return Record{}, fmt.Errorf("corrupt citations for %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(followUps), &rec.FollowUpQuestions); err != nil {
		return Record{}, fmt.Errorf("corrupt follow-ups for %s: %w", rec.ID, err)
	}
	rec.QALogID = model.ID(qaLogID)
	rec.Path = model.Path(path)
	rec.Cached = cached != 0
	rec.Latency = time.Duration(latencyMs) * time.Millisecond
	rec.CreatedAt = time.Unix(0, created)
	return rec, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
