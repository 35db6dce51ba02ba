package opossum

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPositionIndexFileAddKeepsSortedAndDeduplicated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idx.json")
	f := newPositionIndexFile(path, false)

	require.NoError(t, f.add(5))
	require.NoError(t, f.add(1))
	require.NoError(t, f.add(3))
	require.NoError(t, f.add(3)) // duplicate, ignored

	positions, err := f.read()
	require.NoError(t, err)
	require.Equal(t, []uint64{1, 3, 5}, positions)
}

func TestPositionIndexFileReadMissingIsEmpty(t *testing.T) {
	f := newPositionIndexFile(filepath.Join(t.TempDir(), "missing.json"), false)
	positions, err := f.read()
	require.NoError(t, err)
	require.Nil(t, positions)

	exists, err := f.exists()
	require.NoError(t, err)
	require.False(t, exists)
}

func TestPositionIndexFileCorruptedTreatedAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	require.NoError(t, os.WriteFile(path, []byte("{not valid json"), 0o644))

	f := newPositionIndexFile(path, false)
	positions, err := f.read()
	require.NoError(t, err)
	require.Nil(t, positions)
}

func TestAtomicWriteFileCreatesNoLeftoverTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "data.json")
	require.NoError(t, atomicWriteFile(path, []byte(`{"positions":[1]}`), true))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "data.json", entries[0].Name())
}
