package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// sqliteTimeLayout is the text form of CURRENT_TIMESTAMP.
const sqliteTimeLayout = "2006-01-02 15:04:05"

// ErrRunNotFound is returned when a run id is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of an archived run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunFailed      RunStatus = "failed"
	RunInterrupted RunStatus = "interrupted"
)

// RunRecord is a row of the runs table.
type RunRecord struct {
	ID           string // uuid
	CaseName     string
	Partitions   int
	Status       RunStatus
	ErrorMessage string
	StartedAt    time.Time // zero means now
	FinishedAt   time.Time // zero while running
}

// SampleRecord is one function object result at one time step.
type SampleRecord struct {
	ID        int64
	RunID     string
	Object    string // function object name
	Result    string // result name, e.g. interfaceArea
	Time      float64
	TimeIndex int
	Value     float64
}

// Repository reads and writes the archive tables. Sample inserts go through
// the AsyncWriter when one is started.
type Repository struct {
	db          *Database
	asyncWriter *AsyncWriter
}

// NewRepository creates a Repository. asyncWriter may be nil.
func NewRepository(db *Database, asyncWriter *AsyncWriter) *Repository {
	return &Repository{
		db:          db,
		asyncWriter: asyncWriter,
	}
}

// InsertRun records the start of a run.
func (r *Repository) InsertRun(ctx context.Context, run RunRecord) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Status == "" {
		run.Status = RunRunning
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO runs (id, case_name, partitions, status, started_at)
		VALUES (?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))`,
		run.ID, run.CaseName, run.Partitions, string(run.Status), nullTime(run.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a run.
func (r *Repository) FinishRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error_message = ?, finished_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		string(status), nullString(errMsg), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun returns one run.
func (r *Repository) GetRun(ctx context.Context, id string) (RunRecord, error) {
	if r.db == nil {
		return RunRecord{}, fmt.Errorf("database connection is nil")
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT id, case_name, partitions, status, COALESCE(error_message, ''),
		       strftime('%Y-%m-%d %H:%M:%S', started_at),
		       COALESCE(strftime('%Y-%m-%d %H:%M:%S', finished_at), '')
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, err
}

// ListRuns returns the most recent runs, newest first.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, case_name, partitions, status, COALESCE(error_message, ''),
		       strftime('%Y-%m-%d %H:%M:%S', started_at),
		       COALESCE(strftime('%Y-%m-%d %H:%M:%S', finished_at), '')
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}

func scanRun(row Row) (RunRecord, error) {
	var run RunRecord
	var status, startedAt, finishedAt string
	if err := row.Scan(&run.ID, &run.CaseName, &run.Partitions, &status, &run.ErrorMessage, &startedAt, &finishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return run, err
		}
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.Status = RunStatus(status)
	run.StartedAt, _ = time.Parse(sqliteTimeLayout, startedAt)
	if finishedAt != "" {
		run.FinishedAt, _ = time.Parse(sqliteTimeLayout, finishedAt)
	}
	return run, nil
}

const insertSampleQuery = `
	INSERT INTO samples (run_id, object, result, sim_time, time_index, value)
	VALUES (?, ?, ?, ?, ?, ?)`

// InsertSample stores one sample. With a started AsyncWriter the write is
// queued and InsertSample returns immediately; a full queue falls back to a
// synchronous write.
func (r *Repository) InsertSample(ctx context.Context, s SampleRecord) error {
	if r.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	args := []any{s.RunID, s.Object, s.Result, s.Time, s.TimeIndex, s.Value}

	if r.asyncWriter != nil && r.asyncWriter.IsStarted() {
		if r.asyncWriter.Write(asyncInsertOp{query: insertSampleQuery, args: args}) {
			return nil
		}
	}

	if _, err := r.db.ExecContext(ctx, insertSampleQuery, args...); err != nil {
		return fmt.Errorf("failed to insert sample: %w", err)
	}
	return nil
}

// QuerySamples returns the series of one result of one function object in
// time order.
func (r *Repository) QuerySamples(ctx context.Context, runID, object, result string) ([]SampleRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, object, result, sim_time, time_index, value
		FROM samples
		WHERE run_id = ? AND object = ? AND result = ?
		ORDER BY sim_time, id`, runID, object, result)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var samples []SampleRecord
	for rows.Next() {
		var s SampleRecord
		if err := rows.Scan(&s.ID, &s.RunID, &s.Object, &s.Result, &s.Time, &s.TimeIndex, &s.Value); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating samples: %w", err)
	}
	return samples, nil
}

// CountSamples returns the number of samples stored for a run.
func (r *Repository) CountSamples(ctx context.Context, runID string) (int64, error) {
	if r.db == nil {
		return 0, fmt.Errorf("database connection is nil")
	}

	var count int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM samples WHERE run_id = ?", runID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count samples: %w", err)
	}
	return count, nil
}

// asyncInsertOp is a queued insert.
type asyncInsertOp struct {
	query string
	args  []any
}

// CreateAsyncWriteHandler returns the handler that executes queued inserts.
func (r *Repository) CreateAsyncWriteHandler() WriteHandler {
	return func(op WriteOperation) error {
		insertOp, ok := op.Data.(asyncInsertOp)
		if !ok {
			return fmt.Errorf("invalid operation type: expected asyncInsertOp")
		}
		_, err := r.db.ExecContext(context.Background(), insertOp.query, insertOp.args...)
		return err
	}
}

// nullString converts empty strings to NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// nullTime converts the zero time to NULL and others to UTC text.
func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(sqliteTimeLayout)
}
