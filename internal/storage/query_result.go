package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"banks/internal/etl"
)

// QueryResultStore keeps the report query outputs of each run.
type QueryResultStore struct {
	db *DB
}

// NewQueryResultStore creates a new QueryResultStore.
func NewQueryResultStore(db *DB) *QueryResultStore {
	return &QueryResultStore{db: db}
}

// StoredResult is one query output of a run, columns and rows as JSON.
type StoredResult struct {
	ID          string
	RunID       string
	Position    int
	Title       string
	Format      string
	ColumnsJSON string
	RowsJSON    string
	TotalRows   int
	ExecutedAt  time.Time
}

// Decode unpacks the stored JSON back into a query result. Whole numbers
// come back as int64, other numbers as float64.
func (r *StoredResult) Decode() (*etl.QueryResult, error) {
	res := &etl.QueryResult{Title: r.Title, Format: etl.QueryFormat(r.Format)}
	if err := json.Unmarshal([]byte(r.ColumnsJSON), &res.Columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(r.RowsJSON)))
	dec.UseNumber()
	if err := dec.Decode(&res.Rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	for _, row := range res.Rows {
		for j, v := range row {
			n, ok := v.(json.Number)
			if !ok {
				continue
			}
			if i, err := n.Int64(); err == nil {
				row[j] = i
			} else if f, err := n.Float64(); err == nil {
				row[j] = f
			}
		}
	}
	return res, nil
}

// SaveRunResults stores results in query order, replacing any earlier
// results of the same run.
func (s *QueryResultStore) SaveRunResults(runID string, results []*etl.QueryResult, executedAt time.Time) error {
	tx, err := s.db.Conn().Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM query_results WHERE run_id = ?`, runID); err != nil {
		return err
	}
	for i, res := range results {
		cols, err := json.Marshal(res.Columns)
		if err != nil {
			return fmt.Errorf("encode columns of query %d: %w", i+1, err)
		}
		rows, err := json.Marshal(res.Rows)
		if err != nil {
			return fmt.Errorf("encode rows of query %d: %w", i+1, err)
		}
		_, err = tx.Exec(
			`INSERT INTO query_results (id, run_id, position, title, format, columns_json, rows_json, total_rows, executed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), runID, i+1, res.Title, string(res.Format),
			string(cols), string(rows), len(res.Rows), executedAt.UTC(),
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByRun returns the stored results of a run in query order.
func (s *QueryResultStore) ListByRun(runID string) ([]StoredResult, error) {
	rows, err := s.db.Conn().Query(
		`SELECT id, run_id, position, title, format, columns_json, rows_json, total_rows, executed_at
		 FROM query_results WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredResult
	for rows.Next() {
		var r StoredResult
		if err := rows.Scan(&r.ID, &r.RunID, &r.Position, &r.Title, &r.Format,
			&r.ColumnsJSON, &r.RowsJSON, &r.TotalRows, &r.ExecutedAt); err != nil {
			return nil, fmt.Errorf("scan query result: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
