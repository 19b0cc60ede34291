package backup

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/checksum"
	"github.com/cvforge/cvforge-backup/pkg/compress"
	"github.com/cvforge/cvforge-backup/pkg/registry"
)

// restoreState tracks where a restore is in its lifecycle, for logging and
// post-mortem diagnosis.
type restoreState int

const (
	stateIdle restoreState = iota
	stateVerifying
	stateRestoring
	stateRollingBack
	stateDone
	stateRolledBack
	stateFatal
)

func (s restoreState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateVerifying:
		return "verifying"
	case stateRestoring:
		return "restoring"
	case stateRollingBack:
		return "rolling_back"
	case stateDone:
		return "done"
	case stateRolledBack:
		return "rolled_back"
	case stateFatal:
		return "fatal"
	}
	return "unknown"
}

// Restore brings targetRoot back to the state captured by the given
// backup. Before any file is touched the backup is re-verified and a
// pre-restore backup of the current state is taken; if the restore then
// fails part-way, that pre-restore backup is restored so the filesystem
// ends up either fully restored or exactly as it was.
func (e *Engine) Restore(backupID, targetRoot string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if targetRoot == "" {
		targetRoot = e.cfg.RootDir
	}
	return e.restore(backupID, targetRoot, true)
}

func (e *Engine) restore(backupID, targetRoot string, withRollback bool) error {
	state := stateIdle
	setState := func(s restoreState) {
		state = s
		e.logger.Debug("restore state change",
			zap.String("backup", backupID), zap.Stringer("state", state))
	}

	rec, ok := e.reg.Get(backupID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrBackupNotFound, backupID)
	}
	if rec.Status != registry.StatusCompleted {
		return fmt.Errorf("%w: %s is %s", ErrInvalidBackupState, backupID, rec.Status)
	}

	setState(stateVerifying)
	backupDir := filepath.Join(e.cfg.BackupDir, rec.ID)
	verified, err := e.Verify(backupDir, rec)
	if err != nil {
		return fmt.Errorf("verify backup %s: %w", backupID, err)
	}
	if !verified {
		return &VerificationError{BackupID: backupID, Reason: "pre-restore integrity check failed"}
	}

	// The safety net: current state of the declared sources at the target,
	// taken before the first mutation.
	var preRestore *registry.BackupRecord
	if withRollback {
		preRestore, err = e.createBackup(registry.TypePreRestore, targetRoot, rec.Sources)
		if err != nil {
			return fmt.Errorf("create pre-restore backup: %w", err)
		}
	}

	setState(stateRestoring)
	e.logger.Info("restoring backup",
		zap.String("backup", backupID),
		zap.String("target", targetRoot),
		zap.Int("files", len(rec.Files)))

	restoreErr := e.restoreFiles(backupDir, rec, targetRoot)
	if restoreErr == nil {
		setState(stateDone)
		e.logger.Info("restore completed", zap.String("backup", backupID))
		return nil
	}

	if !withRollback {
		setState(stateFatal)
		return restoreErr
	}

	setState(stateRollingBack)
	e.logger.Error("restore failed, rolling back to pre-restore state",
		zap.String("backup", backupID),
		zap.String("pre_restore", preRestore.ID),
		zap.Error(restoreErr))

	if rbErr := e.restore(preRestore.ID, targetRoot, false); rbErr != nil {
		setState(stateFatal)
		return &RestoreRollbackError{Original: restoreErr, Rollback: rbErr}
	}

	setState(stateRolledBack)
	// the filesystem is back in the pre-restore state; the caller still
	// gets the original failure
	return restoreErr
}

func (e *Engine) restoreFiles(backupDir string, rec *registry.BackupRecord, targetRoot string) error {
	for i, entry := range rec.Files {
		if e.restoreHook != nil {
			if err := e.restoreHook(i, entry); err != nil {
				return err
			}
		}
		if err := e.restoreFile(backupDir, entry, targetRoot); err != nil {
			return fmt.Errorf("restore %s: %w", entry.Source, err)
		}
	}
	return nil
}

func (e *Engine) restoreFile(backupDir string, entry registry.FileEntry, targetRoot string) error {
	artifact := filepath.Join(backupDir, entry.Destination)
	dest := filepath.Join(targetRoot, filepath.FromSlash(entry.Source))
	if err := os.MkdirAll(filepath.Dir(dest), dirMode); err != nil {
		return err
	}

	if entry.Compressed {
		if err := compress.GunzipFile(artifact, dest); err != nil {
			return err
		}
	} else {
		if err := copyFile(artifact, dest); err != nil {
			return err
		}
	}

	sum, err := checksum.File(dest)
	if err != nil {
		return err
	}
	if sum != entry.Checksum {
		return &ChecksumMismatchError{Path: dest, Want: entry.Checksum, Got: sum}
	}
	return nil
}
