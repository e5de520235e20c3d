package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	rel, err := store.Save("data/clean.csv", []byte("a,b\n1,2\n"))
	require.NoError(t, err)
	require.Equal(t, "data/clean.csv", rel)
	require.Equal(t, filepath.Join(dir, "data", "clean.csv"), store.Path(rel))

	f, err := store.Open(rel)
	require.NoError(t, err)
	defer f.Close()
	content, err := io.ReadAll(f)
	require.NoError(t, err)
	require.Equal(t, "a,b\n1,2\n", string(content))

	entries, err := os.ReadDir(filepath.Join(dir, "data"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLocalStorageSaveOverwritesAndStats(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("out.txt", []byte("first"))
	require.NoError(t, err)
	_, err = store.Save("out.txt", []byte("second!"))
	require.NoError(t, err)

	content, err := os.ReadFile(store.Path("out.txt"))
	require.NoError(t, err)
	require.Equal(t, "second!", string(content))

	info, err := store.Stat("out.txt")
	require.NoError(t, err)
	require.Equal(t, int64(7), info.Size())

	_, err = store.Stat("absent.txt")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestLocalStorageOpenMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = store.Open("missing.csv")
	require.Error(t, err)
}
