package backup

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/registry"
)

const (
	backupTimeLayout = "20060102150405.000000"
	manifestFileName = "backup-manifest.json"
	reportFileName   = "backup-recovery-report.json"

	// DefaultCompressionThreshold is the original size above which a file
	// is worth gzipping; tiny payloads are copied verbatim.
	DefaultCompressionThreshold = 1024
)

// Config holds the static collaborator contract: what to back up, where to
// put it and how much to keep.
type Config struct {
	// RootDir is the project root that source paths are relative to.
	RootDir string
	// BackupDir holds the per-backup directories and the catalogs.
	BackupDir string
	// Sources is the declared list of file or directory paths.
	Sources []string

	Policies map[string]registry.RetentionPolicy

	CompressionEnabled   bool
	CompressionThreshold int64
	VerificationEnabled  bool

	// MaxStorageBytes only feeds report recommendations; it is not enforced.
	MaxStorageBytes int64
}

// DefaultPolicies returns the retention keep-counts used when the config
// file does not override them.
func DefaultPolicies() map[string]registry.RetentionPolicy {
	return map[string]registry.RetentionPolicy{
		registry.TypeHourly:        {Keep: 24},
		registry.TypeDaily:         {Keep: 30},
		registry.TypeWeekly:        {Keep: 12},
		registry.TypeMonthly:       {Keep: 12},
		registry.TypeManual:        {Keep: 10},
		registry.TypeRecoveryPoint: {Keep: 20},
		registry.TypePreRestore:    {Keep: 5},
		registry.TypeAutomated:     {Keep: 30},
	}
}

// Engine ties the creator, verifier, restore, retention and reporting
// stages together over one registry. All mutating operations are
// serialized behind mu; at most one backup or restore is in flight.
type Engine struct {
	cfg    Config
	reg    *registry.Registry
	points *registry.RecoveryPointStore
	logger *zap.Logger
	now    func() time.Time

	mu sync.Mutex

	// restoreHook is called before each file is restored; tests use it to
	// inject failures mid-restore.
	restoreHook func(index int, entry registry.FileEntry) error
}

// Option provides mechanism to configure Engine.
type Option func(e *Engine) error

// WithLogger returns an Option which sets the logger for Engine.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithClock returns an Option which sets the time source for Engine.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) error {
		e.now = now
		return nil
	}
}

// New creates an Engine with given options, loading both catalogs from
// cfg.BackupDir.
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.logger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		e.logger = l
	}
	if e.cfg.CompressionThreshold == 0 {
		e.cfg.CompressionThreshold = DefaultCompressionThreshold
	}
	if e.cfg.Policies == nil {
		e.cfg.Policies = DefaultPolicies()
	}

	reg, err := registry.New(cfg.BackupDir, e.logger)
	if err != nil {
		return nil, err
	}
	points, err := registry.NewRecoveryPointStore(cfg.BackupDir, e.logger)
	if err != nil {
		return nil, err
	}
	e.reg = reg
	e.points = points
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// ListBackups returns all registry records, newest first.
func (e *Engine) ListBackups() []*registry.BackupRecord {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reg.All()
}

// ListRecoveryPoints returns all recovery points in creation order.
func (e *Engine) ListRecoveryPoints() []*registry.RecoveryPoint {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.points.All()
}
