package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSaveWritesLogFile(t *testing.T) {
	store := NewRunLogStore(filepath.Join(t.TempDir(), "logs"))

	path, err := store.Save("eval-1", "test", "platform=linux", "run output\n")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "run output\n", string(data))
}

func TestSaveSanitizesNames(t *testing.T) {
	store := NewRunLogStore(t.TempDir())

	path, err := store.Save("eval/1", "te st", "platform=linux,toolchain=stable", "x")
	require.NoError(t, err)

	base := filepath.Base(path)
	require.NotContains(t, base, "/")
	require.NotContains(t, base, " ")
	require.NotContains(t, base, "=")
	require.NotContains(t, base, ",")
}

func TestSanitizeEmptyFallsBack(t *testing.T) {
	require.Equal(t, "run", sanitize("///"))
	require.Equal(t, "ab-c_1", sanitize("ab-c_1"))
}
