package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvforge/cvforge-backup/pkg/registry"
)

func TestCleanupEnforcesKeepCount(t *testing.T) {
	e, clock := newTestEngine(t)
	writeSource(t, e, "cv.json", repeat('x', 64))

	var ids []string
	for i := 0; i < 31; i++ {
		rec, err := e.CreateBackup(registry.TypeDaily)
		require.NoError(t, err)
		ids = append(ids, rec.ID)
		clock.Advance(24 * time.Hour)
	}
	require.Equal(t, 31, len(e.reg.ByType(registry.TypeDaily)))

	result, err := e.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 1, result.RemovedCount)
	assert.Greater(t, result.ReclaimedBytes, int64(0))

	daily := e.reg.ByType(registry.TypeDaily)
	require.Len(t, daily, 30)

	// the oldest is gone, registry and directory both
	oldest := ids[0]
	_, ok := e.reg.Get(oldest)
	assert.False(t, ok)
	_, err = os.Stat(filepath.Join(e.cfg.BackupDir, oldest))
	assert.True(t, os.IsNotExist(err))

	// survivors are exactly the 30 most recent
	for _, id := range ids[1:] {
		_, ok := e.reg.Get(id)
		assert.True(t, ok, id)
	}
}

func TestCleanupBoundsEveryType(t *testing.T) {
	e, clock := newTestEngine(t)
	e.cfg.Policies = map[string]registry.RetentionPolicy{
		registry.TypeDaily:  {Keep: 2},
		registry.TypeManual: {Keep: 1},
	}
	writeSource(t, e, "cv.json", repeat('x', 64))

	for i := 0; i < 4; i++ {
		_, err := e.CreateBackup(registry.TypeDaily)
		require.NoError(t, err)
		_, err = e.CreateBackup(registry.TypeManual)
		require.NoError(t, err)
		clock.Advance(time.Hour)
	}

	result, err := e.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 5, result.RemovedCount)

	for typ, policy := range e.cfg.Policies {
		assert.LessOrEqual(t, len(e.reg.ByType(typ)), policy.Keep, typ)
	}
}

func TestCleanupNothingToDo(t *testing.T) {
	e, _ := newTestEngine(t)
	writeSource(t, e, "cv.json", repeat('x', 64))
	_, err := e.CreateBackup(registry.TypeDaily)
	require.NoError(t, err)

	result, err := e.Cleanup()
	require.NoError(t, err)
	assert.Zero(t, result.RemovedCount)
	assert.Zero(t, result.ReclaimedBytes)
	assert.Len(t, e.reg.ByType(registry.TypeDaily), 1)
}

func TestCleanupSurvivorsAreMostRecent(t *testing.T) {
	e, _ := newTestEngine(t)
	e.cfg.Policies = map[string]registry.RetentionPolicy{registry.TypeDaily: {Keep: 2}}

	// synthetic records with controlled timestamps, inserted out of order
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	for _, i := range []int{2, 0, 3, 1} {
		id := registry.TypeDaily + "-" + base.Add(time.Duration(i)*24*time.Hour).Format(backupTimeLayout)
		require.NoError(t, os.MkdirAll(filepath.Join(e.cfg.BackupDir, id), 0700))
		e.reg.Add(&registry.BackupRecord{
			ID:             id,
			Type:           registry.TypeDaily,
			Timestamp:      base.Add(time.Duration(i) * 24 * time.Hour),
			Status:         registry.StatusCompleted,
			CompressedSize: 10,
		})
	}

	result, err := e.Cleanup()
	require.NoError(t, err)
	assert.Equal(t, 2, result.RemovedCount)
	assert.Equal(t, int64(20), result.ReclaimedBytes)

	survivors := e.reg.ByType(registry.TypeDaily)
	require.Len(t, survivors, 2)
	assert.Equal(t, base.Add(3*24*time.Hour), survivors[0].Timestamp)
	assert.Equal(t, base.Add(2*24*time.Hour), survivors[1].Timestamp)
}
