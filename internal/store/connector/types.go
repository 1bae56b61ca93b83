package connector

import (
	"context"
	"database/sql"
	"time"
)

// Record is one row of the completed-migrations table.
// Seq is the registration position of the migration when it was applied.
type Record struct {
	Identifier string
	Seq        int
	Checksum   string
	Duration   time.Duration
	AppliedAt  time.Time
}

// Execer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Progress reports how far an online backup has got, in database pages.
type Progress struct {
	TotalPages     int
	CompletedPages int
}

// RemainingPages never goes below zero.
func (p Progress) RemainingPages() int {
	if r := p.TotalPages - p.CompletedPages; r > 0 {
		return r
	}
	return 0
}

func (p Progress) IsCompleted() bool {
	return p.CompletedPages >= p.TotalPages
}

// Connector is implemented by each database backend.
// Methods that take an Execer or Querier run against whatever the caller passes,
// so records can be written inside the caller's migration transaction.
type Connector interface {
	Connect() (*sql.DB, error)
	Validate() error
	Load(config map[string]interface{}) error
	DriverName() string
	Ensure(ctx context.Context, q Execer, table string) error
	TableExists(ctx context.Context, q Querier, table string) (bool, error)
	ListCompleted(ctx context.Context, q Querier, table string) ([]Record, error)
	Record(ctx context.Context, q Execer, table string, r Record) error
	Clear(ctx context.Context, q Execer, tables ...string) error
	Close() error
}

// Backuper is implemented by backends that can copy a live database to a file.
// step is called after every copied chunk; a non-nil return aborts the backup with that error.
type Backuper interface {
	Backup(ctx context.Context, dstPath string, pagesPerStep int, step func(Progress) error) error
}
