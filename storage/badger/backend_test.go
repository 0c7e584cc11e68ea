package badger

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenBackend_InMemory(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	assert.False(t, backend.IsClosed())
}

func TestOpenBackend_FileSystem(t *testing.T) {
	tmpDir := filepath.Join(t.TempDir(), "index")
	backend, err := OpenBackend(tmpDir, false)
	require.NoError(t, err)
	require.NotNil(t, backend)
	defer backend.Close()

	info, err := os.Stat(tmpDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOpenBackend_NotADirectory(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(tmpFile, []byte("x"), 0644))

	_, err := OpenBackend(tmpFile, false)
	assert.Error(t, err)
}

func TestBackendClose(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)

	assert.False(t, backend.IsClosed())
	require.NoError(t, backend.Close())
	assert.True(t, backend.IsClosed())
}

func TestBackend_Persistence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	backend, err := OpenBackend(dir, false)
	require.NoError(t, err)
	repo := NewChunkRepository(backend)
	require.NoError(t, repo.Upsert(ctx, docChunk("doc-a", 0, "persisted", 1, 0)))
	require.NoError(t, backend.Close())

	backend, err = OpenBackend(dir, false)
	require.NoError(t, err)
	defer backend.Close()
	chunks, err := NewChunkRepository(backend).SourceChunks(ctx, "doc-a", "")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "persisted", chunks[0].Text)
}

func TestOpenOrRecover_CorruptDirectory(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "index")
	require.NoError(t, os.MkdirAll(dir, 0755))
	// A garbage manifest makes badger refuse to open.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "MANIFEST"), []byte("not a manifest"), 0644))

	backend, err := OpenOrRecover(dir)
	require.NoError(t, err)
	defer backend.Close()

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	var moved bool
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "index.corrupt-") {
			moved = true
		}
	}
	assert.True(t, moved, "corrupt index should be moved aside")

	stats, err := NewChunkRepository(backend).Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)
}

func TestOpenOrRecover_Healthy(t *testing.T) {
	dir := t.TempDir()
	backend, err := OpenOrRecover(dir)
	require.NoError(t, err)
	require.NoError(t, backend.Close())

	backend, err = OpenOrRecover(dir)
	require.NoError(t, err)
	defer backend.Close()

	entries, err := os.ReadDir(filepath.Dir(dir))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".corrupt-")
	}
}
