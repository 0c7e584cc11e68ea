package badger

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testModel = "mock/test"

func docChunk(docID string, index int, text string, x, y float32) *core.Chunk {
	return &core.Chunk{
		DocID:      docID,
		Index:      index,
		SourceType: core.SourceDocument,
		Text:       text,
		Vector:     core.NormalizeVector([]float32{x, y}),
		Model:      testModel,
	}
}

func blockChunk(docID, blockID string, st core.SourceType, index int, text string, x, y float32) *core.Chunk {
	c := docChunk(docID, index, text, x, y)
	c.BlockID = blockID
	c.SourceType = st
	return c
}

func newTestRepos(t *testing.T) (storage.ChunkRepository, storage.StateRepository) {
	t.Helper()
	chunks, states, backend, err := NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		chunks.Close()
		states.Close()
		backend.Close()
	})
	return chunks, states
}

func TestUpsert_Idempotent(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	c := docChunk("doc-a", 0, "hello", 1, 0)
	require.NoError(t, repo.Upsert(ctx, c))
	require.NoError(t, repo.Upsert(ctx, docChunk("doc-a", 0, "hello", 1, 0)))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Chunks)
	assert.Equal(t, 1, stats.Documents)

	results, err := repo.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ChunkID("doc-a", "", 0), results[0].Chunk.Id)
}

func TestUpsert_ReplacesVector(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, docChunk("doc-a", 0, "v1", 1, 0)))
	require.NoError(t, repo.Upsert(ctx, docChunk("doc-a", 0, "v2", 0, 1)))

	results, err := repo.Query(ctx, []float32{0, 1}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v2", results[0].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestUpsert_Invalid(t *testing.T) {
	repo, _ := newTestRepos(t)
	err := repo.Upsert(context.Background(), &core.Chunk{DocID: "d", SourceType: core.SourceDocument, Text: "x"})
	assert.ErrorIs(t, err, core.ErrEmptyVector)
}

func TestDeleteByDocument_Isolation(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		docChunk("doc-a", 0, "a0", 1, 0),
		docChunk("doc-a", 1, "a1", 1, 0.1),
		blockChunk("doc-a", "file-1", core.SourceFile, 0, "a file", 1, 0.2),
		docChunk("doc-b", 0, "b0", 1, 0.05),
		docChunk("doc-b", 1, "b1", 0.9, 0.1),
	))

	n, err := repo.DeleteByDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	results, err := repo.Query(ctx, []float32{1, 0}, 100)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "doc-b", r.Chunk.DocID)
	}
}

func TestDeleteByBlock_Scoped(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		docChunk("doc-a", 0, "body", 1, 0),
		blockChunk("doc-a", "file-1", core.SourceFile, 0, "first file", 1, 0),
		blockChunk("doc-a", "file-1", core.SourceFile, 1, "first file tail", 1, 0),
		blockChunk("doc-a", "file-2", core.SourceFile, 0, "second file", 1, 0),
	))

	n, err := repo.DeleteByBlock(ctx, "doc-a", "file-1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	remaining, err := repo.SourceChunks(ctx, "doc-a", "file-2")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "second file", remaining[0].Text)

	body, err := repo.SourceChunks(ctx, "doc-a", "")
	require.NoError(t, err)
	assert.Len(t, body, 1)

	_, err = repo.DeleteByBlock(ctx, "doc-a", "")
	assert.ErrorIs(t, err, core.ErrEmptyBlockID)
}

func TestDeleteDocumentChunks_KeepsBlocks(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		docChunk("doc-a", 0, "body", 1, 0),
		blockChunk("doc-a", "bm-1", core.SourceBookmark, 0, "page", 1, 0),
	))

	n, err := repo.DeleteDocumentChunks(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Documents)
	assert.Equal(t, 1, stats.Bookmarks)
}

func TestReplaceSource_DropsStaleTail(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		docChunk("doc-a", 0, "old 0", 1, 0),
		docChunk("doc-a", 1, "old 1", 1, 0),
		docChunk("doc-a", 2, "old 2", 1, 0),
		blockChunk("doc-a", "f", core.SourceFile, 0, "file", 1, 0),
	))

	require.NoError(t, repo.ReplaceSource(ctx, "doc-a", "", []*core.Chunk{docChunk("doc-a", 0, "new 0", 0, 1)}))

	body, err := repo.SourceChunks(ctx, "doc-a", "")
	require.NoError(t, err)
	require.Len(t, body, 1)
	assert.Equal(t, "new 0", body[0].Text)

	file, err := repo.SourceChunks(ctx, "doc-a", "f")
	require.NoError(t, err)
	assert.Len(t, file, 1)

	require.NoError(t, repo.ReplaceSource(ctx, "doc-a", "", nil))
	body, err = repo.SourceChunks(ctx, "doc-a", "")
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestReplaceSource_RejectsForeignChunk(t *testing.T) {
	repo, _ := newTestRepos(t)
	err := repo.ReplaceSource(context.Background(), "doc-a", "", []*core.Chunk{docChunk("doc-b", 0, "x", 1, 0)})
	assert.ErrorIs(t, err, core.ErrInvalidChunk)
}

func TestQuery_OrderingAndLimit(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		docChunk("near", 0, "near", 1, 0),
		docChunk("mid", 0, "mid", 0.7, 0.7),
		docChunk("far", 0, "far", 0, 1),
		docChunk("opposite", 0, "opposite", -1, 0),
	))

	results, err := repo.Query(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Chunk.DocID)
	assert.Equal(t, "mid", results[1].Chunk.DocID)
	assert.Equal(t, "far", results[2].Chunk.DocID)
	for i := 0; i < len(results)-1; i++ {
		assert.GreaterOrEqual(t, results[i].Score, results[i+1].Score)
	}
}

func TestQuery_SkipsOtherModelsAndDimensions(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	stale := docChunk("stale", 0, "stale", 1, 0)
	stale.Model = "mock/old"
	wide := docChunk("wide", 0, "wide", 1, 0)
	wide.Vector = []float32{1, 0, 0}
	require.NoError(t, repo.Upsert(ctx, docChunk("fresh", 0, "fresh", 1, 0), stale, wide))

	repo.SetModelTag(testModel)
	results, err := repo.Query(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fresh", results[0].Chunk.DocID)
}

func TestModelTag_FiltersStatsAndRejectsOtherModels(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	old := docChunk("old", 0, "old", 1, 0)
	old.Model = "mock/old"
	require.NoError(t, repo.Upsert(ctx, old, docChunk("fresh", 0, "fresh", 1, 0)))

	repo.SetModelTag(testModel)
	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.IndexStats{Documents: 1, Chunks: 1}, stats)

	late := docChunk("late", 0, "late", 1, 0)
	late.Model = "mock/old"
	err = repo.ReplaceSource(ctx, "late", "", []*core.Chunk{late})
	assert.ErrorIs(t, err, storage.ErrModelMismatch)
	err = repo.Upsert(ctx, late)
	assert.ErrorIs(t, err, storage.ErrModelMismatch)

	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Documents)

	require.NoError(t, repo.ReplaceSource(ctx, "late", "", []*core.Chunk{docChunk("late", 0, "late", 1, 0)}))
	stats, err = repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Documents)
}

func TestQuery_InvalidArguments(t *testing.T) {
	repo, _ := newTestRepos(t)
	_, err := repo.Query(context.Background(), nil, 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	_, err = repo.Query(context.Background(), []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestStats_DistinctSources(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx,
		docChunk("d1", 0, "x", 1, 0),
		docChunk("d1", 1, "y", 1, 0),
		docChunk("d2", 0, "z", 1, 0),
		blockChunk("d1", "bm", core.SourceBookmark, 0, "b", 1, 0),
		blockChunk("d1", "f1", core.SourceFile, 0, "f", 1, 0),
		blockChunk("d2", "f2", core.SourceFile, 0, "f", 1, 0),
		blockChunk("d2", "dir", core.SourceFolder, 0, "dir", 1, 0),
		blockChunk("d2", "dir", core.SourceFolder, 1, "dir", 1, 0),
	))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.IndexStats{Documents: 2, Bookmarks: 1, Files: 2, Folders: 1, Chunks: 8}, stats)
}

func TestReset(t *testing.T) {
	repo, states := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, docChunk("d1", 0, "x", 1, 0)))
	require.NoError(t, states.SaveIndexMeta(ctx, core.IndexMeta{ModelTag: testModel}))
	require.NoError(t, repo.Reset(ctx))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Chunks)

	meta, err := states.LoadIndexMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, testModel, meta.ModelTag)
}

func TestForEachChunk_StopsOnError(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Upsert(ctx, docChunk(fmt.Sprintf("d%d", i), 0, "x", 1, 0)))
	}

	stop := fmt.Errorf("stop")
	seen := 0
	err := repo.ForEachChunk(ctx, func(*core.Chunk) error {
		seen++
		if seen == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 2, seen)
}

func TestChunkRepository_ClosedBackend(t *testing.T) {
	backend, err := OpenBackend("", true)
	require.NoError(t, err)
	repo := NewChunkRepository(backend)
	require.NoError(t, backend.Close())

	err = repo.Upsert(context.Background(), docChunk("d", 0, "x", 1, 0))
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
	_, err = repo.Query(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}

func TestConcurrentQueryAndWrite(t *testing.T) {
	repo, _ := newTestRepos(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			_ = repo.ReplaceSource(ctx, "doc", "", []*core.Chunk{
				docChunk("doc", 0, "a", 1, 0),
				docChunk("doc", 1, "b", 1, 0),
			})
		}
	}()
	for i := 0; i < 50; i++ {
		results, err := repo.Query(ctx, []float32{1, 0}, 10)
		require.NoError(t, err)
		// Replacement is atomic: either nothing yet or both chunks.
		assert.Contains(t, []int{0, 2}, len(results))
	}
	<-done
}
