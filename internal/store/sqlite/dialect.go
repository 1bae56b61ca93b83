package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/loykin/safemigrate/internal/constants"
	_ "modernc.org/sqlite"
)

// Dialect implements SQL dialect for SQLite
type Dialect struct{}

// NewDialect creates a new SQLite dialect
func NewDialect() *Dialect {
	return &Dialect{}
}

// GetPlaceholder returns SQLite-style placeholders (?)
func (s *Dialect) GetPlaceholder() string {
	return "?"
}

// ConvertTimeToStorage converts time to SQLite storage format (RFC3339Nano string)
func (s *Dialect) ConvertTimeToStorage(t time.Time) interface{} {
	return t.UTC().Format(time.RFC3339Nano)
}

// ConvertTimeFromStorage parses the stored RFC3339Nano string
func (s *Dialect) ConvertTimeFromStorage(val string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Connect establishes a connection to SQLite with connection pooling
func (s *Dialect) Connect(dsn string, memory bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	if memory {
		// recycling the only connection would drop an in-memory database
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
		db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)
	}
	return db, nil
}

// GetEnsureStatement returns the completed-migrations table definition
func (s *Dialect) GetEnsureStatement(table string) string {
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	identifier TEXT PRIMARY KEY,
	seq INTEGER NOT NULL,
	checksum TEXT NULL,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	applied_at TEXT NOT NULL
)`, table)
}

// GetTableExistsQuery returns a query yielding one row when the named table exists
func (s *Dialect) GetTableExistsQuery() string {
	return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?"
}

// GetDriverName returns the driver name for logging
func (s *Dialect) GetDriverName() string {
	return "sqlite"
}
