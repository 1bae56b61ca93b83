package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/loykin/safemigrate/internal/common"
	"github.com/loykin/safemigrate/internal/constants"
	"github.com/loykin/safemigrate/internal/store/connector"
	"github.com/loykin/safemigrate/internal/store/postgresql"
	"github.com/loykin/safemigrate/internal/store/sqlite"
	"github.com/loykin/safemigrate/internal/util"
)

// ErrBackupUnsupported is returned by Backup when the backend has no online backup primitive.
var ErrBackupUnsupported = errors.New("backup is not supported by this driver")

// Record and Progress are re-exported so callers need not import connector.
type (
	Record   = connector.Record
	Progress = connector.Progress
)

// Store is an open database plus the backend that knows its dialect.
// DB is shared with migration code; with sqlite it holds a single connection,
// so work inside a migration transaction must go through the *sql.Tx.
type Store struct {
	DB        *sql.DB
	TableName string

	driver    string
	connector connector.Connector
	path      string
}

func newConnector(driver string) (connector.Connector, error) {
	switch util.TrimAndLower(driver) {
	case "", DriverSqlite, "sqlite3":
		return sqlite.NewStore(), nil
	case DriverPostgresql, "postgres", "pg":
		return postgresql.NewStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", driver)
	}
}

// Open connects to the database described by cfg.
func Open(cfg Config) (*Store, error) {
	conn, err := newConnector(cfg.Driver)
	if err != nil {
		return nil, err
	}

	table := util.TrimWithDefault(cfg.TableName, constants.DefaultCompletedTable)
	if !util.ValidIdentifier(table) {
		return nil, fmt.Errorf("invalid table name: %q", table)
	}

	var m map[string]interface{}
	if cfg.DriverConfig != nil {
		m = cfg.DriverConfig.ToMap()
	}
	if err := conn.Load(m); err != nil {
		return nil, err
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	db, err := conn.Connect()
	if err != nil {
		return nil, err
	}

	st := &Store{
		DB:        db,
		TableName: table,
		driver:    conn.DriverName(),
		connector: conn,
	}
	if s, ok := conn.(*sqlite.Store); ok {
		st.path = s.Path()
	}

	common.GetLogger().WithStore(st.driver).Debug("store opened", "table", table, "path", st.path)
	return st, nil
}

// OpenSQLite opens (creating if needed) the SQLite database file at path.
func OpenSQLite(path string) (*Store, error) {
	if _, ok := util.TrimEmptyCheck(path); !ok {
		return nil, fmt.Errorf("sqlite path is required")
	}
	return Open(Config{Driver: DriverSqlite, DriverConfig: &sqlite.Config{Path: path}})
}

// OpenMemory opens a private in-memory SQLite database.
func OpenMemory() (*Store, error) {
	return Open(Config{Driver: DriverSqlite, DriverConfig: &sqlite.Config{Path: constants.SQLiteMemoryPath}})
}

// Close closes the underlying database. It is safe on a nil Store.
func (s *Store) Close() error {
	if s == nil || s.connector == nil {
		return nil
	}
	return s.connector.Close()
}

// Driver returns the backend name, "sqlite" or "postgresql".
func (s *Store) Driver() string {
	return s.driver
}

// Path returns the SQLite file path (":memory:" for in-memory databases), or "" for other drivers.
func (s *Store) Path() string {
	return s.path
}

// Completed returns the completed migrations in the order they were recorded.
// A database without the completed table yields an empty slice and is not written to.
func (s *Store) Completed(ctx context.Context) ([]Record, error) {
	return s.completed(ctx, s.DB)
}

func (s *Store) completed(ctx context.Context, q connector.Querier) ([]Record, error) {
	exists, err := s.connector.TableExists(ctx, q, s.TableName)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}
	return s.connector.ListCompleted(ctx, q, s.TableName)
}

// CompletedIDs returns the identifiers of Completed as a set.
func (s *Store) CompletedIDs(ctx context.Context) (map[string]Record, error) {
	recs, err := s.Completed(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Record, len(recs))
	for _, r := range recs {
		out[r.Identifier] = r
	}
	return out, nil
}

// IsCompleted reports whether id is recorded as completed.
func (s *Store) IsCompleted(ctx context.Context, id string) (bool, error) {
	set, err := s.CompletedIDs(ctx)
	if err != nil {
		return false, err
	}
	_, ok := set[id]
	return ok, nil
}

// Ensure creates the completed table through q (normally a migration transaction).
func (s *Store) Ensure(ctx context.Context, q connector.Execer) error {
	return s.connector.Ensure(ctx, q, s.TableName)
}

// Record writes r through q (normally the same transaction that applied the migration).
func (s *Store) Record(ctx context.Context, q connector.Execer, r Record) error {
	return s.connector.Record(ctx, q, s.TableName, r)
}

// Clear deletes every row of the given tables in one write transaction and
// resets their auto-increment counters. Table structure is left in place.
func (s *Store) Clear(ctx context.Context, tables ...string) error {
	logger := common.GetLogger().WithStore(s.driver)

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear: %w", err)
	}
	if err := s.connector.Clear(ctx, tx, tables...); err != nil {
		_ = tx.Rollback()
		logger.Error("failed to clear database", "error", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		logger.Error("failed to clear database", "error", err)
		return fmt.Errorf("commit clear: %w", err)
	}
	logger.Info("database cleared", "tables", tables)
	return nil
}

// Backup copies the live database into dstPath with the backend's online backup primitive.
func (s *Store) Backup(ctx context.Context, dstPath string, pagesPerStep int, step func(Progress) error) error {
	b, ok := s.connector.(connector.Backuper)
	if !ok {
		return fmt.Errorf("%s: %w", s.driver, ErrBackupUnsupported)
	}
	return b.Backup(ctx, dstPath, pagesPerStep, step)
}
