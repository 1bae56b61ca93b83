package migration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loykin/safemigrate/internal/backup"
	"github.com/loykin/safemigrate/internal/common"
	"github.com/loykin/safemigrate/internal/store"
)

// State is the phase of a run.
type State int

const (
	StateIdle State = iota
	StateBackingUp
	StateApplying
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBackingUp:
		return "backing_up"
	case StateApplying:
		return "applying"
	case StateCommitted:
		return "committed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Report describes a finished run, successful or not.
type Report struct {
	// RunID tags every log line of the run.
	RunID string
	State State
	// Applied lists the identifiers committed by this run, in order.
	Applied []string
	// Skipped lists registered identifiers that were already completed.
	Skipped    []string
	BackupPath string
	BackupKept bool
	// DiscardErr is set when the run succeeded but the backup could not be deleted.
	DiscardErr error
	Duration   time.Duration
}

type Option func(*Runner)

func WithLogger(logger *common.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithBackupManager(m *backup.Manager) Option {
	return func(r *Runner) {
		if m != nil {
			r.backups = m
		}
	}
}

// WithClock replaces time.Now for recorded timestamps and durations.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		if now != nil {
			r.now = now
		}
	}
}

// Runner applies a Registry to a database, optionally behind a backup.
// A Runner may be reused; concurrent runs on the same *store.Store are refused.
type Runner struct {
	logger  *common.Logger
	backups *backup.Manager
	now     func() time.Time

	mu    sync.Mutex
	state State
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		logger: common.GetLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.backups == nil {
		r.backups = backup.NewManager(r.logger)
	}
	r.logger = r.logger.WithComponent("migration")
	return r
}

// State returns the phase of the most recent run.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(report *Report, s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	report.State = s
}

type pendingUnit struct {
	seq  int
	unit Unit
}

// Run applies every unit of reg that st has not completed, in registration order.
// When policy is non-nil a snapshot is taken first; it is discarded or kept on
// success according to policy and always kept on failure.
//
// Once the snapshot exists ctx is no longer consulted: every pending unit is applied.
//
// Errors: *BackupFailedError when the policy is invalid or the snapshot fails (nothing was applied),
// *ApplyFailedError when a unit fails (earlier units stay committed), and
// ErrRunInProgress when st is already being migrated.
func (r *Runner) Run(ctx context.Context, st *store.Store, reg *Registry, policy *backup.Policy) (*Report, error) {
	if st == nil || reg == nil {
		return nil, errors.New("migration: store and registry are required")
	}
	start := r.now()
	report := &Report{RunID: uuid.NewString()}
	logger := r.logger.WithRun(report.RunID)
	r.setState(report, StateIdle)

	reg.Seal()
	units := reg.All()
	if len(units) == 0 {
		r.setState(report, StateCommitted)
		return report, nil
	}

	if !activeRuns.tryAcquire(st) {
		return report, ErrRunInProgress
	}
	defer activeRuns.release(st)

	var snap *backup.Snapshot
	if policy != nil {
		r.setState(report, StateBackingUp)
		err := policy.Validate()
		if err == nil {
			snap, err = r.backups.Snapshot(ctx, st, policy.Path, policy.PagesPerStep, policy.Progress)
		}
		if err != nil {
			r.setState(report, StateFailed)
			report.Duration = r.now().Sub(start)
			return report, &BackupFailedError{Err: err}
		}
		report.BackupPath = snap.Path
	}

	r.setState(report, StateApplying)
	// the backup progress callback is the only cancellation point
	ctx = context.WithoutCancel(ctx)

	completed, err := st.CompletedIDs(ctx)
	if err != nil {
		r.fail(report, snap, start)
		logger.Error("failed to read completed migrations", "error", err)
		return report, fmt.Errorf("read completed migrations: %w", err)
	}

	var pending []pendingUnit
	for i, u := range units {
		rec, done := completed[u.ID]
		if !done {
			pending = append(pending, pendingUnit{seq: i, unit: u})
			continue
		}
		report.Skipped = append(report.Skipped, u.ID)
		if rec.Checksum != "" && u.Checksum != "" && rec.Checksum != u.Checksum {
			logger.WithMigration(u.ID).Warn("migration changed since it was applied",
				"recorded_checksum", rec.Checksum, "checksum", u.Checksum)
		}
	}

	for _, p := range pending {
		if applyErr := r.apply(ctx, logger, st, p); applyErr != nil {
			logger.WithMigration(p.unit.ID).Error("migration failed", "error", applyErr)
			r.fail(report, snap, start)
			return report, newApplyFailedError(p.unit.ID, applyErr, units, completed, report.Applied)
		}
		report.Applied = append(report.Applied, p.unit.ID)
	}

	r.setState(report, StateCommitted)
	if snap != nil {
		if policy.DeleteIfSuccessful {
			if err := r.backups.Discard(snap.Path); err != nil {
				logger.Warn("failed to discard backup", "backup_path", snap.Path, "error", err)
				report.DiscardErr = err
			}
		} else {
			r.backups.Keep(snap.Path)
			report.BackupKept = true
		}
	}
	report.Duration = r.now().Sub(start)
	logger.Info("migrations complete",
		"applied", len(report.Applied), "skipped", len(report.Skipped), "duration", report.Duration)
	return report, nil
}

func (r *Runner) fail(report *Report, snap *backup.Snapshot, start time.Time) {
	r.setState(report, StateFailed)
	if snap != nil {
		r.backups.Keep(snap.Path)
		report.BackupKept = true
	}
	report.Duration = r.now().Sub(start)
}

// apply runs one unit in its own write transaction, ending in an explicit
// commit or rollback.
func (r *Runner) apply(txCtx context.Context, logger *common.Logger, st *store.Store, p pendingUnit) (err error) {
	started := r.now()

	tx, err := st.DB.BeginTx(txCtx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = st.Ensure(txCtx, tx); err != nil {
		return err
	}
	if err = p.unit.Apply(txCtx, tx); err != nil {
		return err
	}
	finished := r.now()
	err = st.Record(txCtx, tx, store.Record{
		Identifier: p.unit.ID,
		Seq:        p.seq,
		Checksum:   p.unit.Checksum,
		Duration:   finished.Sub(started),
		AppliedAt:  finished.UTC(),
	})
	if err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	logger.WithMigration(p.unit.ID).Info("migration applied", "duration", finished.Sub(started))
	return nil
}

func newApplyFailedError(id string, cause error, units []Unit, before map[string]store.Record, applied []string) *ApplyFailedError {
	done := make(map[string]bool, len(before)+len(applied))
	for k := range before {
		done[k] = true
	}
	for _, k := range applied {
		done[k] = true
	}

	e := &ApplyFailedError{Identifier: id, Cause: cause}
	for _, u := range units {
		e.Registered = append(e.Registered, u.ID)
		if done[u.ID] {
			e.Completed = append(e.Completed, u.ID)
		} else {
			e.Pending = append(e.Pending, u.ID)
		}
	}
	return e
}
