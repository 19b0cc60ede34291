package registry

import (
	"encoding/json"
	"os"
	"path"
	"time"

	"go.uber.org/zap"
)

const recoveryPointsFile = "recovery-points.json"

// RecoveryPointStore is the append-only catalog of recovery points,
// persisted the same way as the backup registry.
type RecoveryPointStore struct {
	dir    string
	logger *zap.Logger
	points []*RecoveryPoint
}

type recoveryPointPayload struct {
	UpdatedAt time.Time        `json:"updated_at"`
	Points    []*RecoveryPoint `json:"recovery_points"`
}

// NewRecoveryPointStore creates a store backed by dir/recovery-points.json.
func NewRecoveryPointStore(dir string, logger *zap.Logger) (*RecoveryPointStore, error) {
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, err
	}
	s := &RecoveryPointStore{dir: dir, logger: logger}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RecoveryPointStore) load() error {
	buf, err := os.ReadFile(s.filename())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var payload recoveryPointPayload
	if err := json.Unmarshal(buf, &payload); err != nil {
		s.logger.Warn("recovery points file is corrupt, reinitializing as empty",
			zap.String("path", s.filename()), zap.Error(err))
		s.points = nil
		return nil
	}
	s.points = payload.Points
	return nil
}

// Save persists the store atomically.
func (s *RecoveryPointStore) Save() error {
	payload := recoveryPointPayload{
		UpdatedAt: time.Now().UTC(),
		Points:    s.points,
	}
	buf, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(s.dir, s.filename(), buf)
}

// Add appends a recovery point. Points are never updated or deleted.
func (s *RecoveryPointStore) Add(rp *RecoveryPoint) {
	s.points = append(s.points, rp)
}

// All returns every recovery point in insertion order.
func (s *RecoveryPointStore) All() []*RecoveryPoint {
	out := make([]*RecoveryPoint, len(s.points))
	copy(out, s.points)
	return out
}

// Len returns the number of recovery points.
func (s *RecoveryPointStore) Len() int { return len(s.points) }

func (s *RecoveryPointStore) filename() string {
	return path.Join(s.dir, recoveryPointsFile)
}
