package backup

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// CleanupResult aggregates what a retention pass reclaimed.
type CleanupResult struct {
	RemovedCount   int   `json:"removed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
}

// Cleanup enforces the retention policy: for every type, the `keep` most
// recent backups survive and the rest are deleted, directories and
// registry entries both. A directory that cannot be removed is logged and
// skipped; the registry is persisted once at the end.
func (e *Engine) Cleanup() (*CleanupResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result := &CleanupResult{}

	types := make([]string, 0, len(e.cfg.Policies))
	for t := range e.cfg.Policies {
		types = append(types, t)
	}
	sort.Strings(types)

	for _, t := range types {
		policy := e.cfg.Policies[t]
		records := e.reg.ByType(t) // newest first
		if len(records) <= policy.Keep {
			continue
		}
		for _, victim := range records[policy.Keep:] {
			dir := filepath.Join(e.cfg.BackupDir, victim.ID)
			if err := os.RemoveAll(dir); err != nil {
				e.logger.Warn("failed to remove backup directory",
					zap.String("backup", victim.ID), zap.Error(err))
				continue
			}
			e.reg.Remove(victim.ID)
			result.RemovedCount++
			result.ReclaimedBytes += victim.CompressedSize
			e.logger.Info("removed expired backup",
				zap.String("backup", victim.ID),
				zap.String("reclaimed", humanize.Bytes(uint64(victim.CompressedSize))))
		}
	}

	if err := e.reg.Save(); err != nil {
		return result, err
	}
	return result, nil
}
