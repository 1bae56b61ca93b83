package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/loykin/safemigrate/internal/store/connector"
	sqlite3 "modernc.org/sqlite"
)

// ErrNotConnected is returned when a backup is requested before Connect.
var ErrNotConnected = errors.New("sqlite store is not connected")

// onlineBackuper is the subset of the modernc driver connection used for backups.
type onlineBackuper interface {
	NewBackup(dstURI string) (*sqlite3.Backup, error)
}

// Backup copies the live database into dstPath with the SQLite online backup API.
// pagesPerStep <= 0 copies everything in one step. step is called after each chunk.
func (s *Store) Backup(ctx context.Context, dstPath string, pagesPerStep int, step func(connector.Progress) error) error {
	if s.db == nil {
		return ErrNotConnected
	}
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection for backup: %w", err)
	}
	defer func() { _ = conn.Close() }()

	var total int
	if err := conn.QueryRowContext(ctx, "PRAGMA page_count").Scan(&total); err != nil {
		return fmt.Errorf("read page count: %w", err)
	}

	n := int32(-1)
	if pagesPerStep > 0 {
		n = int32(pagesPerStep)
	}

	return conn.Raw(func(driverConn any) error {
		src, ok := driverConn.(onlineBackuper)
		if !ok {
			return fmt.Errorf("driver connection %T does not support online backup", driverConn)
		}
		bck, err := src.NewBackup(dstPath)
		if err != nil {
			return fmt.Errorf("open backup destination %s: %w", dstPath, err)
		}

		completed := 0
		for {
			more, err := bck.Step(n)
			if err != nil {
				_ = bck.Finish()
				return fmt.Errorf("backup step: %w", err)
			}
			if more && n > 0 {
				completed = min(completed+int(n), total)
			} else {
				completed = total
			}
			if step != nil {
				if err := step(connector.Progress{TotalPages: total, CompletedPages: completed}); err != nil {
					_ = bck.Finish()
					return err
				}
			}
			if !more {
				break
			}
			if err := ctx.Err(); err != nil {
				_ = bck.Finish()
				return err
			}
		}
		if err := bck.Finish(); err != nil {
			return fmt.Errorf("finish backup: %w", err)
		}
		return nil
	})
}

func isNoSuchTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}
