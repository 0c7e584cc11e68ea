package badger

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlockState_SaveGet(t *testing.T) {
	_, states := newTestRepos(t)
	ctx := context.Background()

	state := &core.BlockState{
		DocID:      "doc-a",
		BlockID:    "bm-1",
		SourceType: core.SourceBookmark,
		Locator:    "https://example.com",
		Indexing:   true,
	}
	require.NoError(t, states.SaveBlockState(ctx, state))
	assert.False(t, state.UpdatedAt.IsZero())

	got, err := states.GetBlockState(ctx, "doc-a", "bm-1")
	require.NoError(t, err)
	assert.True(t, got.Indexing)
	assert.Equal(t, "https://example.com", got.Locator)

	_, err = states.GetBlockState(ctx, "doc-a", "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBlockState_Validation(t *testing.T) {
	_, states := newTestRepos(t)
	ctx := context.Background()
	assert.ErrorIs(t, states.SaveBlockState(ctx, &core.BlockState{BlockID: "b"}), core.ErrEmptyDocID)
	assert.ErrorIs(t, states.SaveBlockState(ctx, &core.BlockState{DocID: "d"}), core.ErrEmptyBlockID)
}

func TestBlockContent(t *testing.T) {
	_, states := newTestRepos(t)
	ctx := context.Background()

	_, err := states.GetBlockContent(ctx, "doc-a", "f")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, states.SaveBlockContent(ctx, "doc-a", "f", "extracted text"))
	text, err := states.GetBlockContent(ctx, "doc-a", "f")
	require.NoError(t, err)
	assert.Equal(t, "extracted text", text)
}

func TestDeleteBlockState(t *testing.T) {
	_, states := newTestRepos(t)
	ctx := context.Background()

	require.NoError(t, states.SaveBlockState(ctx, &core.BlockState{DocID: "d", BlockID: "b", SourceType: core.SourceFile}))
	require.NoError(t, states.SaveBlockContent(ctx, "d", "b", "text"))
	require.NoError(t, states.DeleteBlockState(ctx, "d", "b"))

	_, err := states.GetBlockState(ctx, "d", "b")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = states.GetBlockContent(ctx, "d", "b")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteDocumentBlockStates(t *testing.T) {
	_, states := newTestRepos(t)
	ctx := context.Background()

	for _, s := range []*core.BlockState{
		{DocID: "d1", BlockID: "a", SourceType: core.SourceFile},
		{DocID: "d1", BlockID: "b", SourceType: core.SourceBookmark},
		{DocID: "d2", BlockID: "c", SourceType: core.SourceFolder},
	} {
		require.NoError(t, states.SaveBlockState(ctx, s))
		require.NoError(t, states.SaveBlockContent(ctx, s.DocID, s.BlockID, "text"))
	}

	require.NoError(t, states.DeleteDocumentBlockStates(ctx, "d1"))

	list, err := states.ListBlockStates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "d2", list[0].DocID)

	_, err = states.GetBlockContent(ctx, "d1", "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	text, err := states.GetBlockContent(ctx, "d2", "c")
	require.NoError(t, err)
	assert.Equal(t, "text", text)
}

func TestIndexMeta(t *testing.T) {
	_, states := newTestRepos(t)
	ctx := context.Background()

	meta, err := states.LoadIndexMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, core.IndexMeta{}, meta)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, states.SaveIndexMeta(ctx, core.IndexMeta{ModelTag: "ollama/m", LastIndexTime: now}))

	meta, err = states.LoadIndexMeta(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ollama/m", meta.ModelTag)
	assert.True(t, now.Equal(meta.LastIndexTime))
}
