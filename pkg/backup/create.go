package backup

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/checksum"
	"github.com/cvforge/cvforge-backup/pkg/compress"
	"github.com/cvforge/cvforge-backup/pkg/registry"
)

const dirMode = 0700

// presence is the tri-state result of a source existence check, so a
// missing file is a normal branch instead of an exception path.
type presence int

const (
	present presence = iota
	absent
	statFailed
)

func checkSource(path string) (os.FileInfo, presence, error) {
	fi, err := os.Stat(path)
	if err == nil {
		return fi, present, nil
	}
	if os.IsNotExist(err) {
		return nil, absent, nil
	}
	return nil, statFailed, err
}

// CreateBackup backs up the given sources (the configured list when none
// are given) into a new backup directory and records the result in the
// registry. Missing sources are skipped with a warning; any other I/O
// error fails the whole backup.
func (e *Engine) CreateBackup(backupType string, sources ...string) (*registry.BackupRecord, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.createBackup(backupType, e.cfg.RootDir, sources)
}

func (e *Engine) createBackup(backupType, root string, sources []string) (*registry.BackupRecord, error) {
	// every backup type must be bounded by a retention policy, or it
	// would accumulate forever
	if _, ok := e.cfg.Policies[backupType]; !ok {
		return nil, fmt.Errorf("unknown backup type %q", backupType)
	}

	start := e.now()
	if len(sources) == 0 {
		sources = e.cfg.Sources
	}

	rec := &registry.BackupRecord{
		ID:        backupType + "-" + start.UTC().Format(backupTimeLayout),
		Type:      backupType,
		Timestamp: start.UTC(),
		Sources:   append([]string(nil), sources...),
		Status:    registry.StatusInProgress,
		Checksums: map[string]string{},
	}
	backupDir := filepath.Join(e.cfg.BackupDir, rec.ID)
	if err := os.MkdirAll(backupDir, dirMode); err != nil {
		return nil, err
	}

	e.logger.Info("starting backup",
		zap.String("id", rec.ID),
		zap.String("type", backupType),
		zap.Int("sources", len(sources)))

	fail := func(err error) (*registry.BackupRecord, error) {
		rec.Status = registry.StatusFailed
		rec.Errors = append(rec.Errors, err.Error())
		e.writeManifest(backupDir, rec)
		e.reg.Add(rec)
		if serr := e.reg.Save(); serr != nil {
			e.logger.Error("failed to persist registry", zap.Error(serr))
		}
		return rec, err
	}

	for _, src := range sources {
		abs := resolve(root, src)
		fi, state, err := checkSource(abs)
		switch state {
		case absent:
			e.logger.Warn("source does not exist, skipping", zap.String("source", src))
			continue
		case statFailed:
			return fail(fmt.Errorf("stat source %s: %w", src, err))
		}

		var files []string
		if fi.IsDir() {
			files, err = collectFiles(abs)
			if err != nil {
				return fail(fmt.Errorf("walk source %s: %w", src, err))
			}
		} else {
			files = []string{abs}
		}

		for _, file := range files {
			rel, err := relSource(root, src, abs, file)
			if err != nil {
				return fail(err)
			}
			entry, stored, err := e.backupFile(file, rel, backupDir)
			if err != nil {
				return fail(fmt.Errorf("backup %s: %w", rel, err))
			}
			rec.Files = append(rec.Files, *entry)
			rec.Checksums[rel] = entry.Checksum
			rec.TotalSize += entry.OriginalSize
			rec.CompressedSize += stored
		}
	}

	if err := e.writeManifest(backupDir, rec); err != nil {
		return fail(fmt.Errorf("write manifest: %w", err))
	}

	if e.cfg.VerificationEnabled {
		ok, err := e.Verify(backupDir, rec)
		if err != nil {
			return fail(fmt.Errorf("verify backup: %w", err))
		}
		if !ok {
			return fail(&VerificationError{BackupID: rec.ID, Reason: "post-backup self check failed"})
		}
	}

	rec.Status = registry.StatusCompleted
	rec.DurationSeconds = e.now().Sub(start).Seconds()
	if rec.TotalSize > 0 {
		rec.CompressionRatio = float64(rec.TotalSize-rec.CompressedSize) / float64(rec.TotalSize)
	}
	// rewrite so the on-disk manifest carries the final status
	if err := e.writeManifest(backupDir, rec); err != nil {
		return fail(fmt.Errorf("write manifest: %w", err))
	}

	e.reg.Add(rec)
	if err := e.reg.Save(); err != nil {
		return rec, err
	}

	e.logger.Info("backup completed",
		zap.String("id", rec.ID),
		zap.Int("files", len(rec.Files)),
		zap.String("total", humanize.Bytes(uint64(rec.TotalSize))),
		zap.String("stored", humanize.Bytes(uint64(rec.CompressedSize))))
	return rec, nil
}

// backupFile checksums one source file and stores its artifact, gzipped
// when compression is on and the file is big enough to be worth it. It
// returns the entry and the stored (on-disk) artifact size.
func (e *Engine) backupFile(path, rel, backupDir string) (*registry.FileEntry, int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, 0, err
	}
	sum, err := checksum.File(path)
	if err != nil {
		return nil, 0, err
	}

	entry := &registry.FileEntry{
		Source:       rel,
		Destination:  flatten(rel),
		Checksum:     sum,
		OriginalSize: fi.Size(),
	}

	if e.cfg.CompressionEnabled && fi.Size() > e.cfg.CompressionThreshold {
		entry.Destination += ".gz"
		entry.Compressed = true
		stored, err := compress.GzipFile(path, filepath.Join(backupDir, entry.Destination))
		if err != nil {
			return nil, 0, err
		}
		return entry, stored, nil
	}

	if err := copyFile(path, filepath.Join(backupDir, entry.Destination)); err != nil {
		return nil, 0, err
	}
	return entry, fi.Size(), nil
}

func (e *Engine) writeManifest(backupDir string, rec *registry.BackupRecord) error {
	buf, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(backupDir, manifestFileName), buf, 0644)
}

// collectFiles walks a directory with an explicit stack, depth-first and
// sorted, so traversal order is deterministic and deep trees can't blow
// the call stack.
func collectFiles(root string) ([]string, error) {
	var files []string
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			path := filepath.Join(dir, entry.Name())
			if entry.IsDir() {
				stack = append(stack, path)
			} else {
				files = append(files, path)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// relSource maps an on-disk file back to its declared source-relative path.
func relSource(root, declared, declaredAbs, file string) (string, error) {
	if file == declaredAbs {
		return filepath.ToSlash(declared), nil
	}
	rel, err := filepath.Rel(declaredAbs, file)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(filepath.Join(declared, rel)), nil
}

// flatten turns a source-relative path into a single artifact filename.
func flatten(rel string) string {
	return strings.ReplaceAll(rel, "/", "_")
}

func resolve(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
