package backup

import "github.com/cvforge/cvforge-backup/pkg/registry"

// HealthyScore is the health threshold below which a run is reported as
// failing (non-zero exit for the CLI, retries for the scheduler).
const HealthyScore = 80

// Run performs the full maintenance pipeline: automated backup, recovery
// point, retention pass, health report.
func (e *Engine) Run() (*Report, error) {
	if _, err := e.CreateBackup(registry.TypeAutomated); err != nil {
		return nil, err
	}
	if _, err := e.CreateRecoveryPoint("automated run"); err != nil {
		return nil, err
	}
	if _, err := e.Cleanup(); err != nil {
		return nil, err
	}
	return e.GenerateReport()
}
