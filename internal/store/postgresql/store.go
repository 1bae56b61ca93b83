package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/safemigrate/internal/common"
	"github.com/loykin/safemigrate/internal/store/connector"
	"github.com/loykin/safemigrate/internal/util"
)

// Store is the PostgreSQL backend of the completed-migrations store.
// It does not implement connector.Backuper.
type Store struct {
	db      *sql.DB
	dialect *Dialect
	Config  Config
}

var _ connector.Connector = (*Store)(nil)

// NewStore creates a new PostgreSQL store
func NewStore() *Store {
	return &Store{
		dialect: NewDialect(),
	}
}

// Load decodes a driver configuration map
func (p *Store) Load(config map[string]interface{}) error {
	var cfg Config
	if err := mapstructure.Decode(config, &cfg); err != nil {
		return fmt.Errorf("decode postgresql config: %w", err)
	}
	util.TrimStructFields(&cfg)
	p.Config = cfg
	return nil
}

// Validate requires a DSN or a host
func (p *Store) Validate() error {
	if p.Config.BuildDSN() == "" {
		return fmt.Errorf("postgresql: dsn or host is required")
	}
	return nil
}

// DriverName returns "postgresql"
func (p *Store) DriverName() string {
	return p.dialect.GetDriverName()
}

// Connect establishes a connection to PostgreSQL
func (p *Store) Connect() (*sql.DB, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	db, err := p.dialect.Connect(p.Config.BuildDSN())
	if err != nil {
		return nil, err
	}
	p.db = db

	logger := common.GetLogger().WithStore("postgresql")
	logger.Debug("PostgreSQL database connection established", "dsn", p.Config.BuildDSN())
	return db, nil
}

// Close closes the database connection
func (p *Store) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}

// Ensure creates the completed-migrations table if missing
func (p *Store) Ensure(ctx context.Context, q connector.Execer, table string) error {
	if _, err := q.ExecContext(ctx, p.dialect.GetEnsureStatement(table)); err != nil {
		return fmt.Errorf("failed to create table %s in PostgreSQL: %w", table, err)
	}
	return nil
}

// TableExists reports whether table exists without creating it
func (p *Store) TableExists(ctx context.Context, q connector.Querier, table string) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, p.dialect.GetTableExistsQuery(), table).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return exists, nil
}

// ListCompleted returns completed migrations ordered by seq, then applied_at
func (p *Store) ListCompleted(ctx context.Context, q connector.Querier, table string) ([]connector.Record, error) {
	query := fmt.Sprintf("SELECT identifier, seq, checksum, duration_ms, applied_at FROM %s ORDER BY seq, applied_at", table)
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []connector.Record
	for rows.Next() {
		var (
			r        connector.Record
			checksum sql.NullString
			durMS    int64
		)
		if err := rows.Scan(&r.Identifier, &r.Seq, &checksum, &durMS, &r.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan completed migration: %w", err)
		}
		r.Checksum = checksum.String
		r.Duration = time.Duration(durMS) * time.Millisecond
		r.AppliedAt = r.AppliedAt.UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating completed migrations: %w", err)
	}
	return out, nil
}

// Record inserts one completed migration
func (p *Store) Record(ctx context.Context, q connector.Execer, table string, r connector.Record) error {
	query := fmt.Sprintf("INSERT INTO %s(identifier, seq, checksum, duration_ms, applied_at) VALUES(%s,%s,%s,%s,%s)",
		table,
		p.dialect.GetPlaceholder(1), p.dialect.GetPlaceholder(2), p.dialect.GetPlaceholder(3),
		p.dialect.GetPlaceholder(4), p.dialect.GetPlaceholder(5))

	var checksum interface{}
	if r.Checksum != "" {
		checksum = r.Checksum
	}
	if _, err := q.ExecContext(ctx, query, r.Identifier, r.Seq, checksum, r.Duration.Milliseconds(), r.AppliedAt.UTC()); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", r.Identifier, err)
	}
	return nil
}

// Clear truncates the given tables and restarts their identity sequences
func (p *Store) Clear(ctx context.Context, q connector.Execer, tables ...string) error {
	for _, table := range tables {
		if !util.ValidIdentifier(table) {
			return fmt.Errorf("invalid table name: %q", table)
		}
		if _, err := q.ExecContext(ctx, fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)); err != nil {
			return fmt.Errorf("failed to clear table %s: %w", table, err)
		}
	}
	return nil
}
