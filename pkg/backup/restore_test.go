package backup

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvforge/cvforge-backup/pkg/registry"
)

func TestRestoreRoundTrip(t *testing.T) {
	e, _ := newTestEngine(t)
	writeSource(t, e, "small.json", repeat('a', 200))
	writeSource(t, e, "large.json", repeat('b', 4096))
	writeSource(t, e, "data/nested.json", []byte(`{"nested":true}`))

	rec, err := e.CreateBackup(registry.TypeManual)
	require.NoError(t, err)

	// mutate every source, then restore
	writeSource(t, e, "small.json", []byte("changed"))
	writeSource(t, e, "large.json", []byte("changed too"))
	writeSource(t, e, "data/nested.json", []byte("{}"))

	require.NoError(t, e.Restore(rec.ID, ""))

	assert.Equal(t, repeat('a', 200), readSource(t, e, "small.json"))
	assert.Equal(t, repeat('b', 4096), readSource(t, e, "large.json"))
	assert.Equal(t, []byte(`{"nested":true}`), readSource(t, e, "data/nested.json"))
}

func TestRestoreUnknownBackup(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.Restore("manual-nope", "")
	assert.True(t, errors.Is(err, ErrBackupNotFound))
}

func TestRestoreFailedBackupRejected(t *testing.T) {
	e, _ := newTestEngine(t)
	e.reg.Add(&registry.BackupRecord{ID: "manual-1", Type: registry.TypeManual, Status: registry.StatusFailed})

	err := e.Restore("manual-1", "")
	assert.True(t, errors.Is(err, ErrInvalidBackupState))
}

func TestRestoreCorruptBackupDoesNotTouchTarget(t *testing.T) {
	e, _ := newTestEngine(t)
	writeSource(t, e, "cv.json", repeat('a', 2048))

	rec, err := e.CreateBackup(registry.TypeManual)
	require.NoError(t, err)

	// current state diverges from the backup
	writeSource(t, e, "cv.json", []byte("current state"))
	flipByte(t, filepath.Join(e.cfg.BackupDir, rec.ID, "cv.json.gz"))

	err = e.Restore(rec.ID, "")
	var verr *VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, rec.ID, verr.BackupID)

	// no filesystem mutation happened
	assert.Equal(t, []byte("current state"), readSource(t, e, "cv.json"))

	// no pre-restore backup was taken either
	assert.Empty(t, e.reg.ByType(registry.TypePreRestore))
}

func TestRestoreRollsBackOnFailure(t *testing.T) {
	for n := 0; n < 3; n++ {
		t.Run(fmt.Sprintf("fail on file %d", n), func(t *testing.T) {
			e, _ := newTestEngine(t)
			writeSource(t, e, "a.json", repeat('1', 300))
			writeSource(t, e, "b.json", repeat('2', 2048))
			writeSource(t, e, "c.json", repeat('3', 80))

			rec, err := e.CreateBackup(registry.TypeManual)
			require.NoError(t, err)

			// this is the state rollback must preserve
			writeSource(t, e, "a.json", []byte("pre-restore a"))
			writeSource(t, e, "b.json", []byte("pre-restore b"))
			writeSource(t, e, "c.json", []byte("pre-restore c"))

			injected := errors.New("injected failure")
			fired := false
			e.restoreHook = func(i int, _ registry.FileEntry) error {
				if i == n && !fired {
					fired = true
					return injected
				}
				return nil
			}

			err = e.Restore(rec.ID, "")
			require.True(t, errors.Is(err, injected))
			var rbErr *RestoreRollbackError
			assert.False(t, errors.As(err, &rbErr))

			assert.Equal(t, []byte("pre-restore a"), readSource(t, e, "a.json"))
			assert.Equal(t, []byte("pre-restore b"), readSource(t, e, "b.json"))
			assert.Equal(t, []byte("pre-restore c"), readSource(t, e, "c.json"))
		})
	}
}

func TestRestoreRollbackFailureIsFatal(t *testing.T) {
	e, _ := newTestEngine(t)
	writeSource(t, e, "a.json", repeat('1', 300))

	rec, err := e.CreateBackup(registry.TypeManual)
	require.NoError(t, err)

	injected := errors.New("injected failure")
	e.restoreHook = func(int, registry.FileEntry) error { return injected }

	err = e.Restore(rec.ID, "")
	var rbErr *RestoreRollbackError
	require.True(t, errors.As(err, &rbErr))
	assert.True(t, errors.Is(err, injected))
	assert.Error(t, rbErr.Rollback)
}

func TestRestoreToAlternateRoot(t *testing.T) {
	e, _ := newTestEngine(t)
	writeSource(t, e, "cv.json", []byte(`{"name":"original"}`))

	rec, err := e.CreateBackup(registry.TypeManual)
	require.NoError(t, err)

	target := t.TempDir()
	require.NoError(t, e.Restore(rec.ID, target))

	buf, err := os.ReadFile(filepath.Join(target, "cv.json"))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"name":"original"}`), buf)
}
