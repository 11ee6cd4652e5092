package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"banks/internal/etl"
)

// ETLStore persists pipeline run logs and their query results.
type ETLStore struct {
	db      *DB
	results *QueryResultStore
}

// NewETLStore creates a new ETLStore.
func NewETLStore(db *DB) *ETLStore {
	return &ETLStore{db: db, results: NewQueryResultStore(db)}
}

// Results exposes the per-run query result store.
func (s *ETLStore) Results() *QueryResultStore { return s.results }

// RunLog is a historical record of a pipeline run.
type RunLog struct {
	ID          string
	JobName     string
	StartedAt   time.Time
	FinishedAt  time.Time
	Status      string
	FailedAt    string
	RowsRead    int
	RowsWritten int
	DurationMs  int64
	Error       string
}

// RecordRun implements etl.RunRecorder.
func (s *ETLStore) RecordRun(r *etl.RunResult) error {
	err := s.CreateRunLog(&RunLog{
		ID:          r.RunID,
		JobName:     r.JobName,
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
		Status:      r.Status,
		FailedAt:    string(r.FailedAt),
		RowsRead:    r.RowsRead,
		RowsWritten: r.RowsWritten,
		DurationMs:  r.Duration.Milliseconds(),
		Error:       r.Error,
	})
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	if len(r.Results) == 0 {
		return nil
	}
	if err := s.results.SaveRunResults(r.RunID, r.Results, r.FinishedAt); err != nil {
		return fmt.Errorf("record query results: %w", err)
	}
	return nil
}

func (s *ETLStore) CreateRunLog(log *RunLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	_, err := s.db.conn.Exec(
		`INSERT INTO etl_run_logs (id, job_name, started_at, finished_at, status, failed_at,
		 rows_read, rows_written, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobName, log.StartedAt.UTC(), log.FinishedAt.UTC(), log.Status, log.FailedAt,
		log.RowsRead, log.RowsWritten, log.DurationMs, log.Error,
	)
	return err
}

// ListRunLogs returns the most recent runs, newest first.
func (s *ETLStore) ListRunLogs(limit int) ([]RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_name, started_at, finished_at, status, failed_at,
		 rows_read, rows_written, duration_ms, error
		 FROM etl_run_logs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var l RunLog
		if err := rows.Scan(&l.ID, &l.JobName, &l.StartedAt, &l.FinishedAt, &l.Status, &l.FailedAt,
			&l.RowsRead, &l.RowsWritten, &l.DurationMs, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
