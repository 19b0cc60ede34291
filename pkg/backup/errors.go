package backup

import (
	"errors"
	"fmt"
)

// ErrBackupNotFound indicates the requested backup id is not in the registry.
var ErrBackupNotFound = errors.New("backup not found")

// ErrInvalidBackupState indicates a restore was requested from a backup
// that never completed.
var ErrInvalidBackupState = errors.New("backup is not in completed state")

// ChecksumMismatchError reports a file whose recomputed checksum differs
// from the one recorded in the manifest.
type ChecksumMismatchError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}

// VerificationError indicates a backup failed integrity verification.
type VerificationError struct {
	BackupID string
	Reason   string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("backup %s failed verification: %s", e.BackupID, e.Reason)
}

// RestoreRollbackError indicates a restore failed and rolling back to the
// pre-restore state failed too. The filesystem may be partially restored;
// manual intervention is required.
type RestoreRollbackError struct {
	Original error
	Rollback error
}

func (e *RestoreRollbackError) Error() string {
	return fmt.Sprintf("restore failed (%v) and rollback failed (%v): manual intervention required",
		e.Original, e.Rollback)
}

func (e *RestoreRollbackError) Unwrap() error { return e.Original }
