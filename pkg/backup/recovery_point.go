package backup

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/checksum"
	"github.com/cvforge/cvforge-backup/pkg/registry"
)

// stateHashDelimiter separates source contents in the data state hash.
const stateHashDelimiter = "\n"

// CreateRecoveryPoint takes a recovery-point backup and records a named
// checkpoint with a fingerprint of the current source state. Points are
// append-only; there is no update or delete.
func (e *Engine) CreateRecoveryPoint(description string) (*registry.RecoveryPoint, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rec, err := e.createBackup(registry.TypeRecoveryPoint, e.cfg.RootDir, nil)
	if err != nil {
		return nil, fmt.Errorf("create recovery point backup: %w", err)
	}

	paths := make([]string, 0, len(e.cfg.Sources))
	for _, src := range e.cfg.Sources {
		paths = append(paths, resolve(e.cfg.RootDir, src))
	}
	stateHash, err := checksum.State(paths, stateHashDelimiter)
	if err != nil {
		return nil, fmt.Errorf("compute data state hash: %w", err)
	}

	rp := &registry.RecoveryPoint{
		ID:            uuid.New().String(),
		Timestamp:     rec.Timestamp,
		Description:   description,
		BackupID:      rec.ID,
		DataStateHash: stateHash,
		Verified:      rec.Status == registry.StatusCompleted,
	}
	e.points.Add(rp)
	if err := e.points.Save(); err != nil {
		return nil, err
	}

	e.logger.Info("created recovery point",
		zap.String("id", rp.ID),
		zap.String("backup", rp.BackupID),
		zap.String("description", description))
	return rp, nil
}
