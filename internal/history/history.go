package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"agentcli/internal/db"
	"agentcli/internal/stream"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("run not found")

// Run is one recorded prompt and how its stream ended.
type Run struct {
	ID         string
	ServerURL  string
	Message    string
	Tools      []string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running or if the process died
	Events     int
	Done       bool
	Error      string
}

type Store struct {
	q   *db.Queries
	now func() time.Time
}

func NewStore(database *db.DB) *Store {
	return &Store{q: db.New(database.Conn()), now: time.Now}
}

// Open opens and migrates the history database at path. The caller closes
// the returned DB.
func Open(path string) (*Store, *db.DB, error) {
	database, err := db.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening history database: %w", err)
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, nil, fmt.Errorf("migrating history database: %w", err)
	}
	return NewStore(database), database, nil
}

// Begin records the start of a prompt run.
func (s *Store) Begin(ctx context.Context, serverURL, message string, tools []string) (*Recorder, error) {
	if tools == nil {
		tools = []string{}
	}
	toolsJSON, err := json.Marshal(tools)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	if err := s.q.InsertRun(ctx, db.InsertRunParams{
		ID:        id,
		ServerURL: serverURL,
		Message:   message,
		Tools:     string(toolsJSON),
		StartedAt: s.now().UnixMilli(),
	}); err != nil {
		return nil, fmt.Errorf("inserting run: %w", err)
	}
	return &Recorder{store: s, id: id}, nil
}

// List returns the most recent runs first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.ListRuns(ctx, int64(limit))
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	runs := make([]Run, 0, len(rows))
	for _, r := range rows {
		runs = append(runs, fromRow(r))
	}
	return runs, nil
}

// Get looks a run up by full id or by an unambiguous prefix.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row, err := s.q.GetRun(ctx, id)
	if errors.Is(err, sql.ErrNoRows) && id != "" {
		row, err = s.q.GetRunByPrefix(ctx, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}
	run := fromRow(row)
	return &run, nil
}

// Events loads a run's events in their original order.
func (s *Store) Events(ctx context.Context, runID string) ([]stream.Event, error) {
	rows, err := s.q.ListRunEvents(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("loading events for %s: %w", runID, err)
	}

	events := make([]stream.Event, 0, len(rows))
	for _, row := range rows {
		ev, ok := stream.ParseFrame([]byte(stream.DataPrefix + row.Data))
		if !ok {
			slog.Warn("skipping stored event with invalid JSON", "run_id", runID, "seq", row.Seq)
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}

// Replay feeds a recorded run's events to handle.
func (s *Store) Replay(ctx context.Context, runID string, handle func(stream.Event) error) error {
	events, err := s.Events(ctx, runID)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := handle(ev); err != nil {
			return err
		}
	}
	return nil
}

func fromRow(r db.Run) Run {
	run := Run{
		ID:        r.ID,
		ServerURL: r.ServerURL,
		Message:   r.Message,
		StartedAt: time.UnixMilli(r.StartedAt),
		Events:    int(r.Events),
		Done:      r.Done,
		Error:     r.Error.String,
	}
	if r.FinishedAt.Valid {
		run.FinishedAt = time.UnixMilli(r.FinishedAt.Int64)
	}
	if err := json.Unmarshal([]byte(r.Tools), &run.Tools); err != nil {
		slog.Warn("run has invalid tools JSON", "run_id", r.ID, "error", err)
	}
	return run
}

// Recorder appends the events of one run.
type Recorder struct {
	store *Store
	id    string
	seq   int64
}

func (r *Recorder) ID() string {
	return r.id
}

// Record stores ev after the previously recorded events.
func (r *Recorder) Record(ctx context.Context, ev stream.Event) error {
	data, err := stream.Encode(ev)
	if err != nil {
		return err
	}
	if err := r.store.q.InsertRunEvent(ctx, db.RunEvent{
		RunID: r.id,
		Seq:   r.seq,
		Kind:  string(ev.Kind()),
		Data:  string(data),
	}); err != nil {
		return fmt.Errorf("inserting event %d: %w", r.seq, err)
	}
	r.seq++
	return nil
}

// Finish marks the run complete. runErr is the error that ended the stream,
// if any.
func (r *Recorder) Finish(ctx context.Context, events int, done bool, runErr error) error {
	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}
	if err := r.store.q.FinishRun(ctx, db.FinishRunParams{
		ID:         r.id,
		FinishedAt: r.store.now().UnixMilli(),
		Events:     int64(events),
		Done:       done,
		Error:      errText,
	}); err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}
