package safemigrate

import (
	"context"
	"fmt"
	"io/fs"

	"github.com/loykin/safemigrate/internal/backup"
	"github.com/loykin/safemigrate/internal/common"
	imig "github.com/loykin/safemigrate/internal/migration"
	"github.com/loykin/safemigrate/internal/store"
)

// Re-export commonly used types for public API

// Unit is one named migration applied inside a write transaction.
type Unit = imig.Unit

// ApplyFunc is the body of a Unit.
type ApplyFunc = imig.ApplyFunc

// Registry is the ordered list of units to apply.
type Registry = imig.Registry

// Runner applies a Registry to a Store.
type Runner = imig.Runner

// RunnerOption configures NewRunner.
type RunnerOption = imig.Option

// Report describes the outcome of a run.
type Report = imig.Report

// State is the phase of a run.
type State = imig.State

const (
	StateIdle      = imig.StateIdle
	StateBackingUp = imig.StateBackingUp
	StateApplying  = imig.StateApplying
	StateCommitted = imig.StateCommitted
	StateFailed    = imig.StateFailed
)

// Policy configures the snapshot taken before migrating.
type Policy = backup.Policy

// Progress reports backup progress in pages.
type Progress = backup.Progress

// BackupManager takes, keeps and discards snapshots.
type BackupManager = backup.Manager

// AllPages copies the whole database in one backup step.
const AllPages = backup.AllPages

// Store is an open database together with its completed-migrations table.
type Store = store.Store

// StoreConfig selects the backend for OpenStore.
type StoreConfig = store.Config

// SqliteConfig and PostgresConfig are the driver configurations accepted by OpenStore.
type (
	SqliteConfig   = store.SqliteConfig
	PostgresConfig = store.PostgresConfig
)

// Record is one completed migration.
type Record = store.Record

const (
	DriverSqlite     = store.DriverSqlite
	DriverPostgresql = store.DriverPostgresql
)

// Error types returned by registration, backup and runs.
type (
	DuplicateIdentifierError = imig.DuplicateIdentifierError
	ApplyFailedError         = imig.ApplyFailedError
	BackupFailedError        = imig.BackupFailedError
	BackupError              = backup.Error
)

var (
	ErrDuplicateIdentifier = imig.ErrDuplicateIdentifier
	ErrInvalidUnit         = imig.ErrInvalidUnit
	ErrRegistrySealed      = imig.ErrRegistrySealed
	ErrRunInProgress       = imig.ErrRunInProgress
	ErrBackupFailed        = imig.ErrBackupFailed
	ErrApplyFailed         = imig.ErrApplyFailed
	ErrBackupIOFailure     = backup.ErrIOFailure
	ErrBackupCancelled     = backup.ErrCancelled
	ErrBackupUnsupported   = store.ErrBackupUnsupported
)

// Logger is the structured logger used by the runner and backup manager.
type Logger = common.Logger

// LogLevel controls logger verbosity.
type LogLevel = common.LogLevel

const (
	LogLevelError = common.LogLevelError
	LogLevelWarn  = common.LogLevelWarn
	LogLevelInfo  = common.LogLevelInfo
	LogLevelDebug = common.LogLevelDebug
)

// NewRegistry registers units in order.
func NewRegistry(units ...Unit) (*Registry, error) { return imig.NewRegistry(units...) }

// SQLUnit returns a Unit that executes body.
func SQLUnit(id, body string) Unit { return imig.SQLUnit(id, body) }

// LoadSQL reads "<n>_<name>.sql" files from dir in fsys.
func LoadSQL(fsys fs.FS, dir string) ([]Unit, error) { return imig.LoadSQL(fsys, dir) }

// LoadSQLDir reads "<n>_<name>.sql" files from a local directory.
func LoadSQLDir(dir string) ([]Unit, error) { return imig.LoadSQLDir(dir) }

func NewRunner(opts ...RunnerOption) *Runner { return imig.NewRunner(opts...) }

var (
	WithLogger        = imig.WithLogger
	WithBackupManager = imig.WithBackupManager
	WithClock         = imig.WithClock
)

// NewBackupManager returns a backup manager logging through logger (nil for the default logger).
func NewBackupManager(logger *Logger) *BackupManager { return backup.NewManager(logger) }

// NewBackupPolicy returns a policy writing to path that deletes the snapshot on success.
func NewBackupPolicy(path string) *Policy { return backup.NewPolicy(path) }

// OpenStore opens the database described by cfg.
func OpenStore(cfg StoreConfig) (*Store, error) { return store.Open(cfg) }

// OpenSQLite opens (creating if needed) a SQLite database file with foreign keys enabled.
func OpenSQLite(path string) (*Store, error) { return store.OpenSQLite(path) }

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory() (*Store, error) { return store.OpenMemory() }

// Migrate runs reg against st with a default Runner and discards the report.
func Migrate(ctx context.Context, st *Store, reg *Registry, policy *Policy) error {
	_, err := imig.NewRunner().Run(ctx, st, reg, policy)
	return err
}

// OpenMemoryMigrated returns an in-memory database with every unit of reg applied,
// for tests and previews.
func OpenMemoryMigrated(ctx context.Context, reg *Registry) (*Store, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, st, reg, nil); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate in-memory database: %w", err)
	}
	return st, nil
}

// Logger constructors

func NewLogger(level LogLevel) *Logger      { return common.NewLogger(level) }
func NewJSONLogger(level LogLevel) *Logger  { return common.NewJSONLogger(level) }
func NewColorLogger(level LogLevel) *Logger { return common.NewColorLogger(level) }

// SetDefaultLogger replaces the logger used when none is injected.
func SetDefaultLogger(logger *Logger) { common.SetDefaultLogger(logger) }
