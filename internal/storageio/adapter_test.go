package storageio_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/steveyegge/proseql/internal/dberrors"
	"github.com/steveyegge/proseql/internal/storageio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenReadRoundTrips(t *testing.T) {
	fs := storageio.FS{}
	path := filepath.Join(t.TempDir(), "nested", "notes.json")

	require.NoError(t, fs.Write(path, []byte(`{"a":1}`)))

	data, err := fs.Read(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestWriteReplacesExistingContentAtomically(t *testing.T) {
	fs := storageio.FS{}
	path := filepath.Join(t.TempDir(), "notes.json")

	require.NoError(t, fs.Write(path, []byte("first")))
	require.NoError(t, fs.Write(path, []byte("second")))

	data, err := fs.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file must not survive a successful write")
}

func TestAppendAddsWithoutTruncating(t *testing.T) {
	fs := storageio.FS{}
	path := filepath.Join(t.TempDir(), "log.jsonl")

	require.NoError(t, fs.Append(path, []byte("{\"id\":1}\n")))
	require.NoError(t, fs.Append(path, []byte("{\"id\":2}\n")))

	data, err := fs.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1}\n{\"id\":2}\n", string(data))
}

func TestReadMissingFileReturnsStorageError(t *testing.T) {
	fs := storageio.FS{}
	_, err := fs.Read(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	var se *dberrors.StorageError
	assert.ErrorAs(t, err, &se)
}

func TestEnsureDirCreatesDirectory(t *testing.T) {
	fs := storageio.FS{}
	dir := filepath.Join(t.TempDir(), "a", "b", "c")
	require.NoError(t, fs.EnsureDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWatchReportsWriteToFile(t *testing.T) {
	fs := storageio.FS{}
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.json")
	require.NoError(t, fs.Write(path, []byte("initial")))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	events, err := fs.Watch(ctx, path)
	require.NoError(t, err)

	require.NoError(t, fs.Write(path, []byte("changed")))

	select {
	case evt := <-events:
		assert.Equal(t, path, evt.Path)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a watch event")
	}
}
