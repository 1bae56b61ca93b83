package backup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/loykin/safemigrate/internal/common"
	"github.com/loykin/safemigrate/internal/constants"
	"github.com/loykin/safemigrate/internal/store/sqlite"
)

// Source is a live database that can copy itself to a file.
// Path is the file the source reads from, or "" / ":memory:" when it has none.
type Source interface {
	Backup(ctx context.Context, dstPath string, pagesPerStep int, step func(Progress) error) error
	Path() string
}

// Snapshot is a finished backup. DB is an independent handle on the copy,
// owned by the Manager until Discard or Keep is called for Path.
type Snapshot struct {
	Path string
	DB   *sql.DB
}

// Manager takes, keeps and discards snapshot files.
type Manager struct {
	logger *common.Logger

	mu      sync.Mutex
	handles map[string]*sql.DB
}

// NewManager returns a Manager logging through logger, or the default logger when nil.
func NewManager(logger *common.Logger) *Manager {
	if logger == nil {
		logger = common.GetLogger()
	}
	return &Manager{
		logger:  logger.WithComponent("backup"),
		handles: make(map[string]*sql.DB),
	}
}

// Snapshot copies src into path. On any failure the partial file is removed and
// an *Error is returned; KindCancelled when progress or ctx stopped the copy.
func (m *Manager) Snapshot(ctx context.Context, src Source, path string, pagesPerStep int, progress func(Progress) error) (*Snapshot, error) {
	logger := m.logger.WithBackup(path)
	if path == "" {
		return nil, &Error{Kind: KindIOFailure, Err: errors.New("empty backup path")}
	}

	// checked before anything at path is removed
	if sameDatabase(src.Path(), path) {
		return nil, &Error{Kind: KindIOFailure, Path: path, Err: errors.New("backup path is the source database")}
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return nil, &Error{Kind: KindIOFailure, Path: path, Err: errors.New("backup path is a directory")}
	}
	// stale journal files would be replayed onto the new copy
	if err := removeFiles(path); err != nil {
		return nil, &Error{Kind: KindIOFailure, Path: path, Err: err}
	}

	var cancelErr error
	step := func(p Progress) error {
		logger.Debug("backup progress", "completed_pages", p.CompletedPages, "total_pages", p.TotalPages)
		if progress == nil {
			return nil
		}
		if err := progress(p); err != nil {
			cancelErr = err
			return err
		}
		return nil
	}

	logger.Info("backup started", "pages_per_step", pagesPerStep)
	start := time.Now()

	if err := src.Backup(ctx, path, pagesPerStep, step); err != nil {
		kind := KindIOFailure
		if cancelErr != nil || ctx.Err() != nil {
			kind = KindCancelled
		}
		if rmErr := removeFiles(path); rmErr != nil {
			logger.Warn("failed to remove partial backup", "error", rmErr)
		}
		logger.Error("backup failed", "kind", kind.String(), "error", err)
		return nil, &Error{Kind: kind, Path: path, Err: err}
	}

	db, err := openSnapshot(ctx, path)
	if err != nil {
		if rmErr := removeFiles(path); rmErr != nil {
			logger.Warn("failed to remove unreadable backup", "error", rmErr)
		}
		logger.Error("backup failed", "kind", KindIOFailure.String(), "error", err)
		return nil, &Error{Kind: KindIOFailure, Path: path, Err: err}
	}

	m.mu.Lock()
	if old, ok := m.handles[path]; ok {
		_ = old.Close()
	}
	m.handles[path] = db
	m.mu.Unlock()

	logger.Info("backup finished", "duration", time.Since(start))
	return &Snapshot{Path: path, DB: db}, nil
}

// sameDatabase reports whether dst names the file srcPath refers to.
func sameDatabase(srcPath, dst string) bool {
	if srcPath == "" || srcPath == constants.SQLiteMemoryPath {
		return false
	}
	a, errA := filepath.Abs(srcPath)
	b, errB := filepath.Abs(dst)
	if errA == nil && errB == nil && a == b {
		return true
	}
	ai, errA := os.Stat(srcPath)
	bi, errB := os.Stat(dst)
	return errA == nil && errB == nil && os.SameFile(ai, bi)
}

func openSnapshot(ctx context.Context, path string) (*sql.DB, error) {
	cfg := sqlite.Config{Path: path}
	db, err := sqlite.NewDialect().Connect(cfg.BuildDSN(), false)
	if err != nil {
		return nil, err
	}
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("verify backup: %w", err)
	}
	if result != "ok" {
		_ = db.Close()
		return nil, fmt.Errorf("verify backup: quick_check reported %q", result)
	}
	return db, nil
}

// Discard closes the Manager's handle for path and deletes the file.
// A file that does not exist is not an error.
func (m *Manager) Discard(path string) error {
	m.release(path)
	if err := removeFiles(path); err != nil {
		m.logger.WithBackup(path).Warn("failed to discard backup", "error", err)
		return &Error{Kind: KindIOFailure, Path: path, Err: err}
	}
	m.logger.WithBackup(path).Info("backup discarded")
	return nil
}

// Keep closes the Manager's handle for path and leaves the file in place.
func (m *Manager) Keep(path string) {
	m.release(path)
	m.logger.WithBackup(path).Info("backup kept")
}

// Close releases every open snapshot handle without touching files.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for path, db := range m.handles {
		if err := db.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.handles, path)
	}
	return errors.Join(errs...)
}

func (m *Manager) release(path string) {
	m.mu.Lock()
	db, ok := m.handles[path]
	delete(m.handles, path)
	m.mu.Unlock()
	if ok {
		_ = db.Close()
	}
}

// removeFiles deletes path and the journal files SQLite may leave beside it.
func removeFiles(path string) error {
	var errs []error
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
