package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryCache(t *testing.T) {
	inner := &funcEmbedder{fn: constant([]float32{1, 0})}
	cache, err := NewQueryCache(inner, "mock/a", 2)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = cache.EmbedQuery(ctx, "fox")
	require.NoError(t, err)
	_, err = cache.EmbedQuery(ctx, "fox")
	require.NoError(t, err)
	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, cache.Len())

	_, _ = cache.EmbedQuery(ctx, "dog")
	_, _ = cache.EmbedQuery(ctx, "cat")
	assert.Equal(t, 2, cache.Len(), "least recently used entry evicted")

	cache.Purge()
	assert.Zero(t, cache.Len())
	_, err = cache.EmbedQuery(ctx, "fox")
	require.NoError(t, err)
	assert.Equal(t, int32(4), inner.calls.Load())
}

func TestQueryCache_ErrorsAreNotCached(t *testing.T) {
	inner := &funcEmbedder{fn: constant([]float32{1})}
	cache, err := NewQueryCache(NewGuard(inner), "mock/a", 0)
	require.NoError(t, err)

	_, err = cache.EmbedQuery(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, cache.Len())
}
