package dbclient

import (
	"context"
	"database/sql"
	"fmt"

	"banks/internal/etl"
)

// Driver names accepted by NewConnector.
const (
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
)

// Config holds what is needed to reach a database.
// For sqlite, Path is the database file. For mysql and postgres either DSN
// is given verbatim or it is built from the host fields.
type Config struct {
	Driver   string
	Path     string
	DSN      string
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string
}

// Connector abstracts interaction with a relational database.
type Connector interface {
	// TestConnection verifies connectivity.
	TestConnection(ctx context.Context) error

	// RunQuery executes query verbatim and returns every row.
	// The cursor is closed before RunQuery returns, on every path.
	RunQuery(ctx context.Context, query string) (*etl.QueryResult, error)

	// DB exposes the pool for writers that need transactions.
	DB() *sql.DB

	// Driver returns the driver name.
	Driver() string

	// Close closes the connection.
	Close() error
}

// NewConnector opens a Connector for cfg. log receives query progress
// messages and may be nil.
func NewConnector(cfg Config, log etl.Logger) (Connector, error) {
	switch cfg.Driver {
	case DriverSQLite, "":
		return newSQLiteConnector(cfg, log)
	case DriverMySQL:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = buildMySQLDSN(cfg)
		}
		return newSQLConnector(DriverMySQL, dsn, log)
	case DriverPostgres:
		dsn := cfg.DSN
		if dsn == "" {
			dsn = buildPostgresDSN(cfg)
		}
		return newSQLConnector(DriverPostgres, dsn, log)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

// Opener returns an etl.Engine Connect function for cfg.
func Opener(cfg Config, log etl.Logger) func(ctx context.Context) (etl.Conn, error) {
	return func(ctx context.Context) (etl.Conn, error) {
		c, err := NewConnector(cfg, log)
		if err != nil {
			return nil, err
		}
		if err := c.TestConnection(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("connect %s: %w", cfg.Driver, err)
		}
		return c, nil
	}
}
