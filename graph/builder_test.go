package graph

import (
	"context"
	"testing"

	"github.com/poiesic/notevec/ai/mock"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
	"github.com/poiesic/notevec/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	docs []core.Document
}

func (s *memStore) ListDocuments(ctx context.Context) ([]core.Document, error) {
	return s.docs, nil
}

func (s *memStore) GetDocument(ctx context.Context, id string) (*core.Document, error) {
	for i := range s.docs {
		if s.docs[i].ID == id {
			return &s.docs[i], nil
		}
	}
	return nil, core.ErrDocumentNotFound
}

func (s *memStore) ListExternalBlocks(ctx context.Context) ([]core.ExternalBlock, error) {
	return nil, nil
}

func chunks(docID, blockID string, kind core.SourceType, title, model string, texts ...string) []*core.Chunk {
	out := make([]*core.Chunk, len(texts))
	for i, text := range texts {
		out[i] = &core.Chunk{
			DocID:       docID,
			BlockID:     blockID,
			Index:       i,
			SourceType:  kind,
			SourceTitle: title,
			Text:        text,
			Vector:      mock.Vector(text, mock.DefaultDimension),
			Model:       model,
		}
	}
	return out
}

func setupBuilder(t *testing.T) (*Builder, storage.ChunkRepository) {
	t.Helper()
	repo, states, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
		states.Close()
		backend.Close()
	})

	ctx := context.Background()
	var all []*core.Chunk
	all = append(all, chunks("a", "", core.SourceDocument, "", "mock/test", "red fox hunts", "fox dens")...)
	all = append(all, chunks("a", "bm1", core.SourceBookmark, "Fox Guide", "mock/test", "fox habitat guide")...)
	all = append(all, chunks("b", "", core.SourceDocument, "", "mock/test", "badger setts")...)
	all = append(all, chunks("c", "", core.SourceDocument, "", "mock/test", "bake bread")...)
	all = append(all, chunks("d", "", core.SourceDocument, "", "mock/test", "fox fox")...)
	require.NoError(t, repo.Upsert(ctx, all...))

	store := &memStore{docs: []core.Document{
		{ID: "a", Title: "Foxes", Tags: []string{"wild", "animals", "wild"}},
		{ID: "b", Title: "Badgers", Tags: []string{"animals"}},
		{ID: "c", Title: "Bread", Tags: []string{"food"}},
		{ID: "d", Title: "More foxes", Tags: []string{"wild"}},
	}}
	b, err := NewBuilder(repo, store)
	require.NoError(t, err)
	return b, repo
}

func findEdge(g *core.GraphData, source, target string) *core.GraphEdge {
	for i := range g.Edges {
		e := &g.Edges[i]
		if (e.Source == source && e.Target == target) || (e.Source == target && e.Target == source) {
			return e
		}
	}
	return nil
}

func TestNewBuilder(t *testing.T) {
	_, err := NewBuilder(nil, &memStore{})
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	repo, states, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer states.Close()
	_, err = NewBuilder(repo, nil)
	assert.ErrorIs(t, err, ErrDocumentStoreRequired)
}

func TestBuildGraph(t *testing.T) {
	b, _ := setupBuilder(t)

	g, err := b.BuildGraph(context.Background(), 0.3)
	require.NoError(t, err)

	t.Run("nodes", func(t *testing.T) {
		require.Len(t, g.Nodes, 5)
		ids := make([]string, len(g.Nodes))
		for i, n := range g.Nodes {
			ids[i] = n.ID
		}
		assert.Equal(t, []string{"a", "a#bm1", "b", "c", "d"}, ids)

		assert.Equal(t, "Foxes", g.Nodes[0].Label)
		assert.Equal(t, 2, g.Nodes[0].Value)
		assert.Equal(t, []string{"animals", "wild"}, g.Nodes[0].Tags)
		assert.Equal(t, core.SourceDocument, g.Nodes[0].Type)

		assert.Equal(t, "Fox Guide", g.Nodes[1].Label)
		assert.Equal(t, core.SourceBookmark, g.Nodes[1].Type)
		assert.Equal(t, "a", g.Nodes[1].DocID)
		assert.Equal(t, "bm1", g.Nodes[1].BlockID)
		assert.Equal(t, 1, g.Nodes[1].Value)
	})

	t.Run("edges", func(t *testing.T) {
		assert.Len(t, g.Edges, 5)

		own := findEdge(g, "a", "a#bm1")
		require.NotNil(t, own)
		assert.Equal(t, core.EdgeSemantic, own.Kind)
		assert.Empty(t, own.SharedTags, "a document shares no tags with its own blocks")
		assert.Greater(t, own.Similarity, float32(0.3))

		tag := findEdge(g, "a", "b")
		require.NotNil(t, tag)
		assert.Equal(t, core.EdgeTag, tag.Kind)
		assert.Equal(t, []string{"animals"}, tag.SharedTags)

		inherited := findEdge(g, "a#bm1", "b")
		require.NotNil(t, inherited)
		assert.Equal(t, core.EdgeTag, inherited.Kind)

		both := findEdge(g, "a", "d")
		require.NotNil(t, both)
		assert.Equal(t, core.EdgeBoth, both.Kind)
		assert.Equal(t, []string{"wild"}, both.SharedTags)

		assert.Nil(t, findEdge(g, "c", "a"))
		assert.Nil(t, findEdge(g, "b", "d"))
	})
}

func TestBuildGraphThreshold(t *testing.T) {
	b, _ := setupBuilder(t)
	ctx := context.Background()

	for _, threshold := range []float32{-0.1, 1.5} {
		_, err := b.BuildGraph(ctx, threshold)
		assert.ErrorIs(t, err, ErrInvalidThreshold)
	}

	g, err := b.BuildGraph(ctx, 1)
	require.NoError(t, err)
	for _, e := range g.Edges {
		assert.Equal(t, core.EdgeTag, e.Kind, "%s-%s", e.Source, e.Target)
	}
	assert.Nil(t, findEdge(g, "a", "a#bm1"))
}

func TestBuildGraphModelTag(t *testing.T) {
	b, repo := setupBuilder(t)
	ctx := context.Background()
	require.NoError(t, repo.Upsert(ctx, chunks("e", "", core.SourceDocument, "", "other/model", "stale vector")...))

	g, err := b.BuildGraph(ctx, 0.5)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 6)
	assert.Equal(t, "e", g.Nodes[5].Label, "unknown documents fall back to their id")

	b.SetModelTag("mock/test")
	g, err = b.BuildGraph(ctx, 0.5)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 5)
}

func TestBuildGraphEmpty(t *testing.T) {
	repo, states, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()
	defer states.Close()

	b, err := NewBuilder(repo, &memStore{})
	require.NoError(t, err)
	g, err := b.BuildGraph(context.Background(), 0.5)
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
	assert.Empty(t, g.Edges)
}
