package constants

import "time"

// Database Constants
const (
	// PostgreSQL defaults
	DefaultPostgresPort    = 5432
	DefaultPostgresSSLMode = "disable"

	// Connection pool settings
	DefaultPostgresMaxConnections = 25
	DefaultPostgresMaxIdleConns   = 5
	DefaultSQLiteMaxConnections   = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns     = 1

	// SQLite pragmas
	DefaultSQLiteBusyTimeoutMS = 5000
	SQLiteMemoryPath           = ":memory:"

	// Default table holding completed migration identifiers
	DefaultCompletedTable = "safemigrate_migrations"
)

// Time and Duration Constants
const (
	// Connection pool lifetimes
	DefaultMaxConnLifetime = 5 * time.Minute
	DefaultMaxIdleTime     = 1 * time.Minute
	DefaultSQLiteLifetime  = 10 * time.Minute
	DefaultSQLiteIdleTime  = 5 * time.Minute
)

// Backup Constants
const (
	// AllPagesPerStep copies the whole database in a single backup step.
	AllPagesPerStep = -1
	// DefaultBackupSuffix is appended to the database path by the CLI when no backup path is given.
	DefaultBackupSuffix = ".backup"
)

// CLI Constants
const (
	DefaultMigrationsDir = "./migrations"
	DefaultHistoryLimit  = 10
)
