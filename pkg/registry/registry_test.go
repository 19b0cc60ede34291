package registry

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	return r, dir
}

func record(id, backupType, status string, ts time.Time) *BackupRecord {
	return &BackupRecord{
		ID:             id,
		Type:           backupType,
		Timestamp:      ts,
		Status:         status,
		TotalSize:      100,
		CompressedSize: 40,
	}
}

func TestRegistryLoadMissingFile(t *testing.T) {
	r, _ := newTestRegistry(t)
	assert.Equal(t, 0, r.Len())
}

func TestRegistrySaveLoadRoundTrip(t *testing.T) {
	r, dir := newTestRegistry(t)
	now := time.Now().UTC()
	r.Add(record("daily-1", TypeDaily, StatusCompleted, now))
	r.Add(record("manual-1", TypeManual, StatusFailed, now.Add(time.Minute)))
	require.NoError(t, r.Save())

	r2, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 2, r2.Len())

	rec, ok := r2.Get("daily-1")
	require.True(t, ok)
	assert.Equal(t, TypeDaily, rec.Type)
	assert.Equal(t, StatusCompleted, rec.Status)

	m := r2.Metrics()
	assert.Equal(t, 2, m.TotalBackups)
	assert.Equal(t, 1, m.Completed)
	assert.Equal(t, 1, m.Failed)
	assert.Equal(t, int64(200), m.TotalSize)
}

func TestRegistryCorruptFileReinitializes(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, registryFile), []byte("{not json"), 0644))

	r, err := New(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, r.Len())
}

func TestRegistryRemove(t *testing.T) {
	r, _ := newTestRegistry(t)
	now := time.Now().UTC()
	r.Add(record("daily-1", TypeDaily, StatusCompleted, now))
	r.Add(record("daily-2", TypeDaily, StatusCompleted, now.Add(time.Hour)))

	r.Remove("daily-1")
	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("daily-1")
	assert.False(t, ok)

	// removing an unknown id is a no-op
	r.Remove("daily-nope")
	assert.Equal(t, 1, r.Len())
}

func TestRegistryByTypeOrder(t *testing.T) {
	r, _ := newTestRegistry(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r.Add(record("daily-old", TypeDaily, StatusCompleted, base))
	r.Add(record("daily-new", TypeDaily, StatusCompleted, base.Add(24*time.Hour)))
	r.Add(record("manual-1", TypeManual, StatusCompleted, base.Add(time.Hour)))

	daily := r.ByType(TypeDaily)
	require.Len(t, daily, 2)
	assert.Equal(t, "daily-new", daily[0].ID)
	assert.Equal(t, "daily-old", daily[1].ID)

	all := r.All()
	require.Len(t, all, 3)
	assert.Equal(t, "daily-new", all[0].ID)
}

func TestRecoveryPointStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewRecoveryPointStore(dir, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())

	s.Add(&RecoveryPoint{ID: "rp-1", BackupID: "recovery-point-1", Verified: true})
	require.NoError(t, s.Save())

	s2, err := NewRecoveryPointStore(dir, zap.NewNop())
	require.NoError(t, err)
	require.Equal(t, 1, s2.Len())
	assert.Equal(t, "rp-1", s2.All()[0].ID)
}
