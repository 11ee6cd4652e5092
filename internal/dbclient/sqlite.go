package dbclient

import (
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"banks/internal/etl"
)

// newSQLiteConnector opens (or creates) a single-file SQLite database.
// SQLite only supports one writer, so the pool is limited to one connection.
func newSQLiteConnector(cfg Config, log etl.Logger) (*sqlConnector, error) {
	path := cfg.Path
	if path == "" {
		path = cfg.DSN
	}
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	c, err := newSQLConnector(DriverSQLite, path+"?_pragma=busy_timeout(5000)", log)
	if err != nil {
		return nil, err
	}
	c.db.SetMaxOpenConns(1)
	return c, nil
}
