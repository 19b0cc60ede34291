package backup

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/cvforge/cvforge-backup/pkg/registry"
)

// Report is the health summary consumed by the dashboard layer, persisted
// as backup-recovery-report.json.
type Report struct {
	GeneratedAt     time.Time      `json:"generated_at"`
	Metrics         ReportMetrics  `json:"metrics"`
	Distribution    map[string]int `json:"distribution"`
	Storage         StorageTotals  `json:"storage"`
	HealthScore     int            `json:"health_score"`
	Recommendations []string       `json:"recommendations"`
}

// ReportMetrics summarizes registry state.
type ReportMetrics struct {
	TotalBackups   int        `json:"total_backups"`
	Completed      int        `json:"completed"`
	Failed         int        `json:"failed"`
	SuccessRate    float64    `json:"success_rate"`
	LastBackupTime *time.Time `json:"last_backup_time,omitempty"`
	RecoveryPoints int        `json:"recovery_points"`
}

// StorageTotals summarizes on-disk usage.
type StorageTotals struct {
	OriginalBytes   int64 `json:"original_bytes"`
	CompressedBytes int64 `json:"compressed_bytes"`
	SavedBytes      int64 `json:"saved_bytes"`
	MaxBytes        int64 `json:"max_bytes,omitempty"`
}

// GenerateReport derives the health report from the current registry and
// configuration and persists it. It mutates nothing else.
func (e *Engine) GenerateReport() (*Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now().UTC()
	m := e.reg.Metrics()

	report := &Report{
		GeneratedAt:  now,
		Distribution: map[string]int{},
		Metrics: ReportMetrics{
			TotalBackups:   m.TotalBackups,
			Completed:      m.Completed,
			Failed:         m.Failed,
			RecoveryPoints: e.points.Len(),
		},
		Storage: StorageTotals{
			OriginalBytes:   m.TotalSize,
			CompressedBytes: m.CompressedSize,
			SavedBytes:      m.TotalSize - m.CompressedSize,
			MaxBytes:        e.cfg.MaxStorageBytes,
		},
	}
	if m.TotalBackups > 0 {
		report.Metrics.SuccessRate = float64(m.Completed) / float64(m.TotalBackups)
	}

	var lastSuccess *time.Time
	for _, rec := range e.reg.All() {
		report.Distribution[rec.Type]++
		if rec.Status == registry.StatusCompleted && lastSuccess == nil {
			ts := rec.Timestamp
			lastSuccess = &ts
		}
	}
	report.Metrics.LastBackupTime = lastSuccess

	report.HealthScore = e.healthScore(now, m, lastSuccess)
	report.Recommendations = e.recommendations(now, report, lastSuccess)

	if err := e.writeReport(report); err != nil {
		return nil, err
	}
	return report, nil
}

// healthScore starts at 100 and loses points for failures (up to 50,
// proportional to the failure rate), staleness (5 per day past the first,
// capped at 30) and retention-policy types with no backups at all (10
// each). Clamped to [0, 100].
func (e *Engine) healthScore(now time.Time, m registry.Metrics, lastSuccess *time.Time) int {
	score := 100.0

	if m.TotalBackups > 0 {
		failureRate := float64(m.Failed) / float64(m.TotalBackups)
		score -= math.Min(50, failureRate*50)
	}

	if lastSuccess != nil {
		days := now.Sub(*lastSuccess).Hours() / 24
		if days > 1 {
			score -= math.Min(30, (days-1)*5)
		}
	} else {
		score -= 30
	}

	for t := range e.cfg.Policies {
		if len(e.reg.ByType(t)) == 0 {
			score -= 10
		}
	}

	if score < 0 {
		score = 0
	}
	return int(math.Round(score))
}

func (e *Engine) recommendations(now time.Time, r *Report, lastSuccess *time.Time) []string {
	var recs []string

	switch {
	case lastSuccess == nil:
		recs = append(recs, "No successful backup exists yet; run a backup as soon as possible.")
	case now.Sub(*lastSuccess) > 24*time.Hour:
		recs = append(recs, fmt.Sprintf("Last successful backup was %s; run a backup soon.",
			humanize.Time(*lastSuccess)))
	}

	if r.Storage.MaxBytes > 0 && r.Storage.CompressedBytes > r.Storage.MaxBytes {
		recs = append(recs, fmt.Sprintf("Backup storage uses %s, over the configured maximum of %s; lower retention keep-counts or raise the limit.",
			humanize.Bytes(uint64(r.Storage.CompressedBytes)),
			humanize.Bytes(uint64(r.Storage.MaxBytes))))
	}

	if r.Metrics.RecoveryPoints == 0 {
		recs = append(recs, "No recovery points exist; create one to enable point-in-time restoration.")
	}

	if !e.cfg.VerificationEnabled {
		recs = append(recs, "Backup verification is disabled; corrupted backups will not be detected until restore.")
	}

	if r.Metrics.Failed > 0 {
		recs = append(recs, fmt.Sprintf("%d backups have failed; inspect their errors in the registry.", r.Metrics.Failed))
	}

	return recs
}

func (e *Engine) writeReport(report *Report) error {
	buf, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(e.cfg.BackupDir, reportFileName), buf, 0644)
}
