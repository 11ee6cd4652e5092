package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"banks/internal/etl"
)

// sqlConnector is the shared implementation for MySQL, Postgres, and SQLite.
type sqlConnector struct {
	driverName string
	db         *sql.DB
	log        etl.Logger
}

// newSQLConnector creates a generic SQL connector.
func newSQLConnector(driverName, dsn string, log etl.Logger) (*sqlConnector, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driverName, err)
	}
	// One pipeline run uses one connection at a time.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	if log == nil {
		log = etl.NopLogger
	}
	return &sqlConnector{driverName: driverName, db: db, log: log}, nil
}

func (c *sqlConnector) TestConnection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return c.db.PingContext(ctx)
}

func (c *sqlConnector) DB() *sql.DB { return c.db }

func (c *sqlConnector) Driver() string { return c.driverName }

func (c *sqlConnector) RunQuery(ctx context.Context, query string) (*etl.QueryResult, error) {
	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, c.queryError(err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, c.queryError(fmt.Errorf("columns: %w", err))
	}

	result := &etl.QueryResult{Columns: cols}
	numCols := len(cols)
	for rows.Next() {
		values := make([]any, numCols)
		ptrs := make([]any, numCols)
		for j := range values {
			ptrs[j] = &values[j]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, c.queryError(fmt.Errorf("scan row: %w", err))
		}

		row := make([]any, numCols)
		for j, v := range values {
			row[j] = formatValue(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, c.queryError(fmt.Errorf("iterate: %w", err))
	}

	c.log.Log("Query executed successfully. Process complete.")
	return result, nil
}

func (c *sqlConnector) queryError(err error) error {
	c.log.Log(fmt.Sprintf("Database error: %v", err))
	return etl.NewError(etl.StageQuery, etl.ErrQuery, err, "an error occurred while executing the query")
}

// formatValue converts a database value to a displayable Go value.
func formatValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339)
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	default:
		return val
	}
}

func (c *sqlConnector) Close() error {
	return c.db.Close()
}
