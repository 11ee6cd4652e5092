package etl

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ── Destination ────────────────────────────────────────────
// A Destination persists a dataset into a target system.
// Both sinks reject nil and zero-row datasets with ErrEmptyDataset.

// SyncMode determines how rows are written to a table destination.
type SyncMode string

const (
	SyncReplace SyncMode = "replace" // drop the table, recreate it from the dataset schema
	SyncAppend  SyncMode = "append"  // create the table if missing, add rows
)

// Destination writes a dataset to target (a file path or a table name).
// It returns the number of rows written.
type Destination interface {
	Write(ctx context.Context, target string, ds *Dataset, mode SyncMode) (int, error)
}

// ── SQL Destination ────────────────────────────────────────

// SQLWriter implements Destination for database/sql connections.
// Driver selects identifier quoting and placeholders: "sqlite", "mysql" or "postgres".
type SQLWriter struct {
	DB     *sql.DB
	Driver string
	Log    Logger
}

func (w *SQLWriter) Write(ctx context.Context, table string, ds *Dataset, mode SyncMode) (int, error) {
	log := orNop(w.Log)

	if ds == nil || ds.Len() == 0 {
		err := NewError(StageSinkDB, ErrEmptyDataset, nil, "the provided dataset is empty or nil")
		log.Log(fmt.Sprintf("Data loading error: %v", err))
		return 0, err
	}
	if mode == "" {
		mode = SyncReplace
	}

	written, err := w.write(ctx, table, ds, mode)
	if err != nil {
		log.Log(fmt.Sprintf("Unexpected error while loading data to the database: %v", err))
		return 0, NewError(StageSinkDB, ErrPersistence, err,
			"an unexpected error occurred while saving data to the table %q", table)
	}

	log.Log(fmt.Sprintf("Data successfully loaded to the database table '%s'. Executing queries.", table))
	return written, nil
}

func (w *SQLWriter) write(ctx context.Context, table string, ds *Dataset, mode SyncMode) (int, error) {
	if w.DB == nil {
		return 0, fmt.Errorf("no database connection")
	}

	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	quoted := w.quote(table)
	switch mode {
	case SyncReplace:
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoted); err != nil {
			return 0, fmt.Errorf("drop table: %w", err)
		}
		if _, err := tx.ExecContext(ctx, w.createTableSQL("CREATE TABLE", quoted, ds.Schema())); err != nil {
			return 0, fmt.Errorf("create table: %w", err)
		}
	case SyncAppend:
		if _, err := tx.ExecContext(ctx, w.createTableSQL("CREATE TABLE IF NOT EXISTS", quoted, ds.Schema())); err != nil {
			return 0, fmt.Errorf("create table: %w", err)
		}
	default:
		return 0, fmt.Errorf("unknown sync mode %q", mode)
	}

	stmt, err := tx.PrepareContext(ctx, w.insertSQL(quoted, ds.Schema()))
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	written := 0
	for i := 0; i < ds.Len(); i++ {
		if _, err := stmt.ExecContext(ctx, ds.Row(i)...); err != nil {
			return written, fmt.Errorf("insert row %d: %w", i, err)
		}
		written++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return written, nil
}

func (w *SQLWriter) createTableSQL(verb, table string, schema *Schema) string {
	cols := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = w.quote(f.Name) + " " + mapFieldType(w.Driver, f.Type)
	}
	return fmt.Sprintf("%s %s (%s)", verb, table, strings.Join(cols, ", "))
}

func (w *SQLWriter) insertSQL(table string, schema *Schema) string {
	cols := make([]string, len(schema.Fields))
	marks := make([]string, len(schema.Fields))
	for i, f := range schema.Fields {
		cols[i] = w.quote(f.Name)
		if w.Driver == "postgres" {
			marks[i] = fmt.Sprintf("$%d", i+1)
		} else {
			marks[i] = "?"
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func (w *SQLWriter) quote(name string) string { return QuoteIdent(w.Driver, name) }

// QuoteIdent quotes a table or column name for driver. Queries that read
// what SQLWriter wrote must quote the same way: postgres folds unquoted
// names to lower case and mysql reads "x" as a string literal.
func QuoteIdent(driver, name string) string {
	if driver == "mysql" {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// mapFieldType converts dataset field types to column types.
func mapFieldType(driver string, t FieldType) string {
	switch t {
	case FieldInteger:
		if driver == "postgres" {
			return "BIGINT"
		}
		return "INTEGER"
	case FieldReal:
		if driver == "postgres" {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	default:
		return "TEXT"
	}
}
