package registry

import "time"

// Backup types understood by the retention policy map.
const (
	TypeHourly        = "hourly"
	TypeDaily         = "daily"
	TypeWeekly        = "weekly"
	TypeMonthly       = "monthly"
	TypeManual        = "manual"
	TypeRecoveryPoint = "recovery-point"
	TypePreRestore    = "pre-restore"
	TypeAutomated     = "automated"
)

// Backup record statuses. A record is created in_progress and transitions
// exactly once to completed or failed.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// FileEntry describes one backed-up file inside a backup directory.
type FileEntry struct {
	Source       string `json:"source"`
	Destination  string `json:"destination"`
	Checksum     string `json:"checksum"`
	OriginalSize int64  `json:"original_size"`
	Compressed   bool   `json:"compressed"`
}

// BackupRecord is the manifest of a single backup operation. Once the
// status leaves in_progress the record is immutable, only the retention
// manager may delete it.
type BackupRecord struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Timestamp        time.Time         `json:"timestamp"`
	Sources          []string          `json:"sources"`
	Status           string            `json:"status"`
	Files            []FileEntry       `json:"files"`
	TotalSize        int64             `json:"total_size"`
	CompressedSize   int64             `json:"compressed_size"`
	Checksums        map[string]string `json:"checksums"`
	Errors           []string          `json:"errors"`
	DurationSeconds  float64           `json:"duration_seconds"`
	CompressionRatio float64           `json:"compression_ratio"`
}

// RecoveryPoint is a named checkpoint referencing a backup plus a
// fingerprint of the source state at that moment.
type RecoveryPoint struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	Description   string    `json:"description"`
	BackupID      string    `json:"backup_id"`
	DataStateHash string    `json:"data_state_hash"`
	Verified      bool      `json:"verified"`
}

// RetentionPolicy bounds how many backups of one type are kept.
type RetentionPolicy struct {
	Keep int `json:"keep"`
}

// Metrics is the aggregate block persisted alongside the records.
type Metrics struct {
	TotalBackups   int   `json:"total_backups"`
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	TotalSize      int64 `json:"total_size"`
	CompressedSize int64 `json:"compressed_size"`
}
