package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/safemigrate/internal/common"
	"github.com/loykin/safemigrate/internal/store/connector"
	"github.com/loykin/safemigrate/internal/util"
)

// Store is the SQLite backend of the completed-migrations store.
type Store struct {
	db      *sql.DB
	dialect *Dialect
	Config  Config
}

var _ connector.Connector = (*Store)(nil)
var _ connector.Backuper = (*Store)(nil)

// NewStore creates a new SQLite store
func NewStore() *Store {
	return &Store{
		dialect: NewDialect(),
	}
}

// Load decodes a driver configuration map (keys as in Config's mapstructure tags)
func (s *Store) Load(config map[string]interface{}) error {
	var cfg Config
	if err := mapstructure.Decode(config, &cfg); err != nil {
		return fmt.Errorf("decode sqlite config: %w", err)
	}
	util.TrimStructFields(&cfg)
	s.Config = cfg
	return nil
}

// Validate checks the loaded configuration
func (s *Store) Validate() error {
	return s.Config.Validate()
}

// DriverName returns "sqlite"
func (s *Store) DriverName() string {
	return s.dialect.GetDriverName()
}

// Path returns the database file path, or ":memory:".
func (s *Store) Path() string {
	if isMemory(s.Config.Path) {
		return ":memory:"
	}
	return s.Config.Path
}

// Connect opens the database described by Config
func (s *Store) Connect() (*sql.DB, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	memory := s.Config.DSN == "" && isMemory(s.Config.Path)
	db, err := s.dialect.Connect(s.Config.BuildDSN(), memory)
	if err != nil {
		return nil, err
	}
	s.db = db

	logger := common.GetLogger().WithStore("sqlite")
	logger.Debug("SQLite database connection established", "path", s.Path())
	return db, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ensure creates the completed-migrations table if missing
func (s *Store) Ensure(ctx context.Context, q connector.Execer, table string) error {
	stmt := s.dialect.GetEnsureStatement(table)
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table, err)
	}
	return nil
}

// TableExists reports whether table exists without creating it
func (s *Store) TableExists(ctx context.Context, q connector.Querier, table string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, s.dialect.GetTableExistsQuery(), table).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return true, nil
}

// ListCompleted returns completed migrations ordered by seq, then applied_at
func (s *Store) ListCompleted(ctx context.Context, q connector.Querier, table string) ([]connector.Record, error) {
	query := fmt.Sprintf("SELECT identifier, seq, checksum, duration_ms, applied_at FROM %s ORDER BY seq, applied_at", table)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []connector.Record
	for rows.Next() {
		var (
			r         connector.Record
			checksum  sql.NullString
			durMS     int64
			appliedAt string
		)
		if err := rows.Scan(&r.Identifier, &r.Seq, &checksum, &durMS, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completed migration: %w", err)
		}
		r.Checksum = checksum.String
		r.Duration = time.Duration(durMS) * time.Millisecond
		r.AppliedAt = s.dialect.ConvertTimeFromStorage(appliedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completed migrations: %w", err)
	}
	return out, nil
}

// Record inserts one completed migration. A duplicate identifier is an error.
func (s *Store) Record(ctx context.Context, q connector.Execer, table string, r connector.Record) error {
	ph := s.dialect.GetPlaceholder()
	query := fmt.Sprintf("INSERT INTO %s(identifier, seq, checksum, duration_ms, applied_at) VALUES(%s,%s,%s,%s,%s)",
		table, ph, ph, ph, ph, ph)

	var checksum interface{}
	if r.Checksum != "" {
		checksum = r.Checksum
	}
	_, err := q.ExecContext(ctx, query, r.Identifier, r.Seq, checksum, r.Duration.Milliseconds(), s.dialect.ConvertTimeToStorage(r.AppliedAt))
	if err != nil {
		return fmt.Errorf("failed to record migration %s: %w", r.Identifier, err)
	}
	return nil
}

// Clear deletes every row of the given tables and resets their AUTOINCREMENT counters.
func (s *Store) Clear(ctx context.Context, q connector.Execer, tables ...string) error {
	for _, table := range tables {
		if !util.ValidIdentifier(table) {
			return fmt.Errorf("invalid table name: %q", table)
		}
		if _, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
		// sqlite_sequence only exists once some table uses AUTOINCREMENT
		if _, err := q.ExecContext(ctx, "DELETE FROM sqlite_sequence WHERE name = ?", table); err != nil && !isNoSuchTable(err) {
			return fmt.Errorf("failed to reset sequence for %s: %w", table, err)
		}
	}
	return nil
}
