package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx runs queries inside tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type Run struct {
	ID         string
	ServerURL  string
	Message    string
	Tools      string
	StartedAt  int64
	FinishedAt sql.NullInt64
	Events     int64
	Done       bool
	Error      sql.NullString
}

type RunEvent struct {
	RunID string
	Seq   int64
	Kind  string
	Data  string
}

type InsertRunParams struct {
	ID        string
	ServerURL string
	Message   string
	Tools     string
	StartedAt int64
}

const insertRun = `INSERT INTO runs (id, server_url, message, tools, started_at) VALUES (?, ?, ?, ?, ?)`

func (q *Queries) InsertRun(ctx context.Context, arg InsertRunParams) error {
	_, err := q.db.ExecContext(ctx, insertRun, arg.ID, arg.ServerURL, arg.Message, arg.Tools, arg.StartedAt)
	return err
}

type FinishRunParams struct {
	ID         string
	FinishedAt int64
	Events     int64
	Done       bool
	Error      sql.NullString
}

const finishRun = `UPDATE runs SET finished_at = ?, events = ?, done = ?, error = ? WHERE id = ?`

func (q *Queries) FinishRun(ctx context.Context, arg FinishRunParams) error {
	_, err := q.db.ExecContext(ctx, finishRun, arg.FinishedAt, arg.Events, arg.Done, arg.Error, arg.ID)
	return err
}

const insertRunEvent = `INSERT INTO run_events (run_id, seq, kind, data) VALUES (?, ?, ?, ?)`

func (q *Queries) InsertRunEvent(ctx context.Context, arg RunEvent) error {
	_, err := q.db.ExecContext(ctx, insertRunEvent, arg.RunID, arg.Seq, arg.Kind, arg.Data)
	return err
}

const runColumns = `id, server_url, message, tools, started_at, finished_at, events, done, error`

const getRun = `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

func (q *Queries) GetRun(ctx context.Context, id string) (Run, error) {
	return scanRun(q.db.QueryRowContext(ctx, getRun, id))
}

const getRunByPrefix = `SELECT ` + runColumns + ` FROM runs WHERE id LIKE ? || '%' ESCAPE '\' LIMIT 2`

// GetRunByPrefix resolves an abbreviated run id. It returns sql.ErrNoRows
// unless exactly one run matches.
func (q *Queries) GetRunByPrefix(ctx context.Context, prefix string) (Run, error) {
	rows, err := q.db.QueryContext(ctx, getRunByPrefix, escapeLike(prefix))
	if err != nil {
		return Run{}, err
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	if len(matches) != 1 {
		return Run{}, sql.ErrNoRows
	}
	return matches[0], nil
}

const listRuns = `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id LIMIT ?`

func (q *Queries) ListRuns(ctx context.Context, limit int64) ([]Run, error) {
	rows, err := q.db.QueryContext(ctx, listRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listRunEvents = `SELECT run_id, seq, kind, data FROM run_events WHERE run_id = ? ORDER BY seq`

func (q *Queries) ListRunEvents(ctx context.Context, runID string) ([]RunEvent, error) {
	rows, err := q.db.QueryContext(ctx, listRunEvents, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []RunEvent
	for rows.Next() {
		var e RunEvent
		if err := rows.Scan(&e.RunID, &e.Seq, &e.Kind, &e.Data); err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (Run, error) {
	var r Run
	err := s.Scan(&r.ID, &r.ServerURL, &r.Message, &r.Tools, &r.StartedAt, &r.FinishedAt, &r.Events, &r.Done, &r.Error)
	return r, err
}

func escapeLike(s string) string {
	var b []byte
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			b = append(b, '\\')
		}
		b = append(b, s[i])
	}
	return string(b)
}
