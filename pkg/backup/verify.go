package backup

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/checksum"
	"github.com/cvforge/cvforge-backup/pkg/compress"
	"github.com/cvforge/cvforge-backup/pkg/registry"
)

// Verify recomputes the checksum of every stored artifact and compares it
// to the manifest. It fails fast on the first missing or mismatching
// artifact, reads only, and is safe to call any number of times. The same
// check runs right after creation and immediately before any restore.
func (e *Engine) Verify(backupDir string, rec *registry.BackupRecord) (bool, error) {
	if _, err := os.Stat(filepath.Join(backupDir, manifestFileName)); err != nil {
		if os.IsNotExist(err) {
			e.logger.Warn("manifest missing", zap.String("backup", rec.ID))
			return false, nil
		}
		return false, err
	}

	for _, entry := range rec.Files {
		artifact := filepath.Join(backupDir, entry.Destination)
		sum, ok, err := artifactChecksum(artifact, entry.Compressed)
		if err != nil {
			return false, err
		}
		if !ok {
			e.logger.Warn("artifact missing",
				zap.String("backup", rec.ID), zap.String("artifact", entry.Destination))
			return false, nil
		}
		if sum != entry.Checksum {
			e.logger.Warn("artifact checksum mismatch",
				zap.String("backup", rec.ID),
				zap.String("artifact", entry.Destination),
				zap.String("want", entry.Checksum),
				zap.String("got", sum))
			return false, nil
		}
	}
	return true, nil
}

// artifactChecksum hashes the original bytes of a stored artifact,
// decompressing in-stream when needed. Nothing is written to disk.
func artifactChecksum(path string, compressed bool) (string, bool, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	if !compressed {
		sum, err := checksum.File(path)
		if err != nil {
			return "", false, err
		}
		return sum, true, nil
	}
	rc, err := compress.OpenGzip(path)
	if err != nil {
		// a truncated or corrupted gzip stream can no longer match
		return "", true, nil
	}
	defer rc.Close()
	sum, err := checksum.Reader(rc)
	if err != nil {
		return "", true, nil
	}
	return sum, true, nil
}
