package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"geo-cluster-pipeline/internal/model"
	apperrors "geo-cluster-pipeline/pkg/errors"
)

// Store is the run registry: runs, their errors, stage progress and logs.
type Store struct {
	db *sql.DB
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		spec TEXT,
		status TEXT,
		best_k INTEGER DEFAULT 0,
		error TEXT DEFAULT '',
		created_at DATETIME,
		updated_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS run_errors (
		id TEXT PRIMARY KEY,
		run_id TEXT,
		stage TEXT,
		code TEXT,
		message TEXT,
		created_at DATETIME
	);`,
	`CREATE TABLE IF NOT EXISTS stage_progress (
		run_id TEXT,
		stage TEXT,
		status TEXT,
		records INTEGER,
		duration_ms INTEGER,
		error TEXT DEFAULT '',
		started_at DATETIME,
		ended_at DATETIME,
		PRIMARY KEY (run_id, stage)
	);`,
	`CREATE TABLE IF NOT EXISTS pipeline_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT,
		level TEXT,
		stage TEXT,
		message TEXT,
		created_at DATETIME
	);`,
}

// Open connects to a sqlite database and creates tables if needed. The
// pool is limited to one connection so ":memory:" databases are shared.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ------------------- Runs -------------------

// CreateRun stores a new pending run.
func (s *Store) CreateRun(ctx context.Context, id string, spec model.RunSpec) (*model.Run, error) {
	specJSON, err := json.Marshal(spec)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, spec, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(specJSON), string(model.StatusPending), now, now)
	if err != nil {
		return nil, err
	}
	return &model.Run{ID: id, Status: model.StatusPending, Spec: spec, CreatedAt: now, UpdatedAt: now}, nil
}

// UpdateRunStatus sets the run status and, for failures, its error message.
func (s *Store) UpdateRunStatus(ctx context.Context, id string, status model.RunStatus, message string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), message, now, id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// SetBestK records the selected cluster count.
func (s *Store) SetBestK(ctx context.Context, id string, k int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET best_k = ?, updated_at = ? WHERE id = ?`, k, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return requireRow(res, id)
}

// GetRun fetches one run.
func (s *Store) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, spec, status, best_k, error, created_at, updated_at FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("run %s not found", id)
	}
	return run, err
}

// ListRuns returns all runs, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, spec, status, best_k, error, created_at, updated_at FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []model.Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run and everything recorded for it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err := requireRow(res, id); err != nil {
		return err
	}
	for _, table := range []string{"run_errors", "stage_progress", "pipeline_logs"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*model.Run, error) {
	var (
		run      model.Run
		specJSON string
		status   string
	)
	if err := row.Scan(&run.ID, &specJSON, &status, &run.BestK, &run.Error, &run.CreatedAt, &run.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(specJSON), &run.Spec); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	return &run, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("run %s not found", id)
	}
	return nil
}

// ------------------- Errors, progress and logs -------------------

// SaveRunError records a stage failure.
func (s *Store) SaveRunError(ctx context.Context, d model.ErrorDetail) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_errors (id, run_id, stage, code, message, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		d.ID, d.RunID, d.Stage, d.Code, d.Message, d.Timestamp)
	return err
}

// ListRunErrors returns the errors of a run in insertion order.
func (s *Store) ListRunErrors(ctx context.Context, runID string) ([]model.ErrorDetail, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, stage, code, message, created_at FROM run_errors WHERE run_id = ? ORDER BY created_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ErrorDetail{}
	for rows.Next() {
		var d model.ErrorDetail
		if err := rows.Scan(&d.ID, &d.RunID, &d.Stage, &d.Code, &d.Message, &d.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveStageProgress upserts the metrics of one stage.
func (s *Store) SaveStageProgress(ctx context.Context, runID string, m model.StageMetrics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_progress (run_id, stage, status, records, duration_ms, error, started_at, ended_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, stage) DO UPDATE SET
		   status = excluded.status, records = excluded.records, duration_ms = excluded.duration_ms,
		   error = excluded.error, started_at = excluded.started_at, ended_at = excluded.ended_at`,
		runID, m.StageName, m.Status, m.RecordsProcessed, m.Duration.Milliseconds(), m.Error, m.StartTime, m.EndTime)
	return err
}

// ListStageProgress returns stage metrics of a run in start order.
func (s *Store) ListStageProgress(ctx context.Context, runID string) ([]model.StageMetrics, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage, status, records, duration_ms, error, started_at, ended_at
		 FROM stage_progress WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.StageMetrics{}
	for rows.Next() {
		var (
			m  model.StageMetrics
			ms int64
		)
		if err := rows.Scan(&m.StageName, &m.Status, &m.RecordsProcessed, &ms, &m.Error, &m.StartTime, &m.EndTime); err != nil {
			return nil, err
		}
		m.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, m)
	}
	return out, rows.Err()
}

// AppendLog persists one pipeline log line.
func (s *Store) AppendLog(ctx context.Context, e model.LogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pipeline_logs (run_id, level, stage, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		e.RunID, e.Level, e.Stage, e.Message, e.Timestamp)
	return err
}

// ListLogs returns the log lines of a run in insertion order.
func (s *Store) ListLogs(ctx context.Context, runID string) ([]model.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, level, stage, message, created_at FROM pipeline_logs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.LogEntry{}
	for rows.Next() {
		var e model.LogEntry
		if err := rows.Scan(&e.RunID, &e.Level, &e.Stage, &e.Message, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
