package migration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDuplicateIdentifier is matched by *DuplicateIdentifierError.
	ErrDuplicateIdentifier = errors.New("duplicate migration identifier")
	// ErrInvalidUnit is returned when a unit has no identifier or no apply function.
	ErrInvalidUnit = errors.New("invalid migration unit")
	// ErrRegistrySealed is returned by Register once a run has started.
	ErrRegistrySealed = errors.New("migration registry is sealed")
	// ErrRunInProgress is returned when another run holds the same store.
	ErrRunInProgress = errors.New("a migration run is already in progress for this database")
	// ErrBackupFailed is matched by *BackupFailedError.
	ErrBackupFailed = errors.New("backup failed")
	// ErrApplyFailed is matched by *ApplyFailedError.
	ErrApplyFailed = errors.New("migration failed")
)

// DuplicateIdentifierError reports a second unit registered under an existing ID.
type DuplicateIdentifierError struct {
	ID string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("duplicate migration identifier %q", e.ID)
}

func (e *DuplicateIdentifierError) Is(target error) bool {
	return target == ErrDuplicateIdentifier
}

// BackupFailedError aborts a run before any migration is attempted.
// Err is the *backup.Error from the snapshot.
type BackupFailedError struct {
	Err error
}

func (e *BackupFailedError) Error() string {
	return fmt.Sprintf("migration aborted, backup failed: %v", e.Err)
}

func (e *BackupFailedError) Unwrap() error {
	return e.Err
}

func (e *BackupFailedError) Is(target error) bool {
	return target == ErrBackupFailed
}

// ApplyFailedError names the migration that failed and what state the database was left in.
// Completed lists every registered identifier recorded as applied after the failure,
// in registry order; Pending is Registered minus Completed and starts with Identifier.
type ApplyFailedError struct {
	Identifier string
	Cause      error
	Registered []string
	Completed  []string
	Pending    []string
}

func (e *ApplyFailedError) Error() string {
	return fmt.Sprintf("migration %q failed: %v (completed: [%s], pending: [%s])",
		e.Identifier, e.Cause, strings.Join(e.Completed, ", "), strings.Join(e.Pending, ", "))
}

func (e *ApplyFailedError) Unwrap() error {
	return e.Cause
}

func (e *ApplyFailedError) Is(target error) bool {
	return target == ErrApplyFailed
}
