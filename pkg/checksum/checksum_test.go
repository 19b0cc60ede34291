package checksum

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sha256("hello world")
const helloWorldSum = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func TestReader(t *testing.T) {
	sum, err := Reader(strings.NewReader("hello world"))
	require.NoError(t, err)
	assert.Equal(t, helloWorldSum, sum)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0644))

	sum, err := File(path)
	require.NoError(t, err)
	assert.Equal(t, helloWorldSum, sum)

	_, err = File(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestState(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("one"), 0644))
	require.NoError(t, os.WriteFile(b, []byte("two"), 0644))

	sum1, err := State([]string{a, b}, "\n")
	require.NoError(t, err)
	sum2, err := State([]string{a, b}, "\n")
	require.NoError(t, err)
	assert.Equal(t, sum1, sum2)

	// missing files are skipped, not zero-filled
	withMissing, err := State([]string{a, filepath.Join(dir, "nope"), b}, "\n")
	require.NoError(t, err)
	assert.Equal(t, sum1, withMissing)

	require.NoError(t, os.WriteFile(b, []byte("changed"), 0644))
	sum3, err := State([]string{a, b}, "\n")
	require.NoError(t, err)
	assert.NotEqual(t, sum1, sum3)
}
