package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cvforge/cvforge-backup/pkg/registry"
)

// testClock is a controllable time source; every call advances it so
// backup ids stay unique.
type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *testClock) {
	t.Helper()
	root := t.TempDir()
	cfg := Config{
		RootDir:              root,
		BackupDir:            filepath.Join(root, "backups"),
		CompressionEnabled:   true,
		CompressionThreshold: 1024,
		VerificationEnabled:  true,
		Policies: map[string]registry.RetentionPolicy{
			registry.TypeDaily:         {Keep: 30},
			registry.TypeManual:        {Keep: 10},
			registry.TypeRecoveryPoint: {Keep: 20},
			registry.TypePreRestore:    {Keep: 5},
			registry.TypeAutomated:     {Keep: 30},
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	clock := newTestClock()
	e, err := New(cfg, WithLogger(zap.NewNop()), WithClock(clock.Now))
	require.NoError(t, err)
	return e, clock
}

func writeSource(t *testing.T, e *Engine, rel string, content []byte) {
	t.Helper()
	path := filepath.Join(e.cfg.RootDir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
	for _, src := range e.cfg.Sources {
		if src == rel {
			return
		}
	}
	e.cfg.Sources = append(e.cfg.Sources, rel)
}

func readSource(t *testing.T, e *Engine, rel string) []byte {
	t.Helper()
	buf, err := os.ReadFile(filepath.Join(e.cfg.RootDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	return buf
}

func repeat(b byte, n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

func TestNewAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	e, err := New(Config{RootDir: dir, BackupDir: filepath.Join(dir, "backups")},
		WithLogger(zap.NewNop()))
	require.NoError(t, err)
	assert.Equal(t, int64(DefaultCompressionThreshold), e.cfg.CompressionThreshold)
	assert.Equal(t, DefaultPolicies(), e.cfg.Policies)
}
