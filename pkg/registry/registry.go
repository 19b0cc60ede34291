package registry

import (
	"encoding/json"
	"os"
	"path"
	"sort"
	"time"

	"go.uber.org/zap"
)

const (
	dirMode      = 0700
	registryFile = "backup-registry.json"
	tempPattern  = "registry-*"
)

// Registry is the durable catalog of backup records. It is loaded once at
// startup, mutated in memory and persisted after every state-changing
// operation. It is not safe for concurrent writers; the engine serializes
// all mutating operations behind a single lock.
type Registry struct {
	dir     string
	logger  *zap.Logger
	backups []*BackupRecord
}

type registryPayload struct {
	UpdatedAt time.Time       `json:"updated_at"`
	Metrics   Metrics         `json:"metrics"`
	Backups   []*BackupRecord `json:"backups"`
}

// New creates a registry backed by dir/backup-registry.json.
func New(dir string, logger *zap.Logger) (*Registry, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, err
	}
	r := &Registry{dir: dir, logger: logger}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// load reads the registry file. A missing file yields an empty registry; an
// unreadable one is reinitialized as empty with a warning, the backup
// directories on disk are left alone.
func (r *Registry) load() error {
	buf, err := os.ReadFile(r.filename())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var payload registryPayload
	if err := json.Unmarshal(buf, &payload); err != nil {
		r.logger.Warn("registry file is corrupt, reinitializing as empty",
			zap.String("path", r.filename()), zap.Error(err))
		r.backups = nil
		return nil
	}
	r.backups = payload.Backups
	return nil
}

// Save persists the registry atomically via a temp file and rename.
func (r *Registry) Save() error {
	payload := registryPayload{
		UpdatedAt: time.Now().UTC(),
		Metrics:   r.Metrics(),
		Backups:   r.backups,
	}
	buf, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(r.dir, r.filename(), buf)
}

// Add appends a record to the registry.
func (r *Registry) Add(rec *BackupRecord) {
	r.backups = append(r.backups, rec)
}

// Get returns the record with the given id.
func (r *Registry) Get(id string) (*BackupRecord, bool) {
	for _, rec := range r.backups {
		if rec.ID == id {
			return rec, true
		}
	}
	return nil, false
}

// Remove drops the record with the given id from the catalog.
func (r *Registry) Remove(id string) {
	for i, rec := range r.backups {
		if rec.ID == id {
			r.backups = append(r.backups[:i], r.backups[i+1:]...)
			return
		}
	}
}

// All returns every record, newest first.
func (r *Registry) All() []*BackupRecord {
	out := make([]*BackupRecord, len(r.backups))
	copy(out, r.backups)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// ByType returns all records of one backup type, newest first.
func (r *Registry) ByType(backupType string) []*BackupRecord {
	var out []*BackupRecord
	for _, rec := range r.backups {
		if rec.Type == backupType {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Len returns the number of records in the catalog.
func (r *Registry) Len() int { return len(r.backups) }

// Metrics recomputes the aggregate block from the current records.
func (r *Registry) Metrics() Metrics {
	var m Metrics
	m.TotalBackups = len(r.backups)
	for _, rec := range r.backups {
		switch rec.Status {
		case StatusCompleted:
			m.Completed++
		case StatusFailed:
			m.Failed++
		}
		m.TotalSize += rec.TotalSize
		m.CompressedSize += rec.CompressedSize
	}
	return m
}

func (r *Registry) filename() string {
	return path.Join(r.dir, registryFile)
}

// writeFileAtomic writes buf to a temp file in dir and renames it over
// filename, so a crash never leaves a partial catalog behind.
func writeFileAtomic(dir, filename string, buf []byte) error {
	f, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf); err != nil {
		f.Close()
		os.Remove(f.Name())
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return err
	}
	return os.Rename(f.Name(), filename)
}
