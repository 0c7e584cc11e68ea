package rebuild

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/notevec/ai/mock"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/ingestion"
	"github.com/poiesic/notevec/storage"
	"github.com/poiesic/notevec/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory core.DocumentStore.
type memStore struct {
	docs   []core.Document
	blocks []core.ExternalBlock
	err    error
}

func (s *memStore) ListDocuments(ctx context.Context) ([]core.Document, error) {
	return s.docs, s.err
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
	return s.blocks, nil
}

// recordingIndexer records calls and fails for selected ids.
type recordingIndexer struct {
	mu       sync.Mutex
	docs     []string
	blocks   []string
	failDocs map[string]bool
	block    chan struct{}
}

func (r *recordingIndexer) IndexDocumentNow(ctx context.Context, doc core.Document) (int, error) {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc.ID)
	if r.failDocs[doc.ID] {
		return 0, errors.New("embedding provider unavailable")
	}
	return 1, nil
}

func (r *recordingIndexer) IndexExternalBlock(ctx context.Context, block core.ExternalBlock) (core.ExtractedContent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.blocks = append(r.blocks, block.BlockID)
	return core.ExtractedContent{Text: "x", Indexed: true}, nil
}

func (r *recordingIndexer) DocumentDeleted(ctx context.Context, docID string) error {
	return nil
}

func (r *recordingIndexer) RemoveExternalBlock(ctx context.Context, docID, blockID string) error {
	return nil
}

func testStore(docs, blocks int) *memStore {
	s := &memStore{}
	for i := 0; i < docs; i++ {
		s.docs = append(s.docs, core.Document{ID: fmt.Sprintf("doc-%d", i), Text: fmt.Sprintf("document number %d", i)})
	}
	for i := 0; i < blocks; i++ {
		s.blocks = append(s.blocks, core.ExternalBlock{
			DocID: "doc-0", BlockID: fmt.Sprintf("file-%d", i), Type: core.SourceFile, Locator: fmt.Sprintf("/f%d.txt", i),
		})
	}
	return s
}

func TestNewRebuilder_Validation(t *testing.T) {
	_, err := NewRebuilder(nil, &recordingIndexer{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrDocumentStoreRequired)
	_, err = NewRebuilder(&memStore{}, nil, nil, nil, nil)
	assert.ErrorIs(t, err, ErrIndexerRequired)
}

func TestRebuilder_Run_Progress(t *testing.T) {
	indexer := &recordingIndexer{}
	r, err := NewRebuilder(testStore(3, 2), indexer, nil, nil, nil)
	require.NoError(t, err)

	var events []Progress
	result, err := r.Run(context.Background(), func(p Progress) {
		events = append(events, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Documents)
	assert.Equal(t, 2, result.External)
	assert.Equal(t, 5, result.Indexed())
	assert.Zero(t, result.Failed)

	assert.Equal(t, []Progress{
		{PhaseDocuments, 0, 3},
		{PhaseDocuments, 1, 3},
		{PhaseDocuments, 2, 3},
		{PhaseDocuments, 3, 3},
		{PhaseExternal, 0, 2},
		{PhaseExternal, 1, 2},
		{PhaseExternal, 2, 2},
	}, events)
	assert.Equal(t, []string{"doc-0", "doc-1", "doc-2"}, indexer.docs)
	assert.Equal(t, []string{"file-0", "file-1"}, indexer.blocks)
}

func TestRebuilder_Run_ContinuesPastFailures(t *testing.T) {
	indexer := &recordingIndexer{failDocs: map[string]bool{"doc-1": true}}
	r, err := NewRebuilder(testStore(3, 1), indexer, nil, nil, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Documents)
	assert.Equal(t, 1, result.External)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0].Error(), "doc-1")
	assert.Len(t, indexer.docs, 3, "every document attempted")
}

func TestRebuilder_Run_StoreError(t *testing.T) {
	store := &memStore{err: errors.New("disk on fire")}
	r, err := NewRebuilder(store, &recordingIndexer{}, nil, nil, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), nil)
	assert.ErrorContains(t, err, "disk on fire")
}

func TestRebuilder_Run_Cancelled(t *testing.T) {
	indexer := &recordingIndexer{}
	r, err := NewRebuilder(testStore(5, 0), indexer, nil, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	result, err := r.Run(ctx, func(p Progress) {
		if p.Current == 2 {
			cancel()
		}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, result.Documents)
}

func TestRebuilder_Run_OneAtATime(t *testing.T) {
	indexer := &recordingIndexer{block: make(chan struct{})}
	r, err := NewRebuilder(testStore(1, 0), indexer, nil, nil, nil)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := r.Run(context.Background(), nil)
		done <- err
	}()

	require.Eventually(t, r.Running, time.Second, time.Millisecond)
	_, err = r.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRebuildInProgress)

	close(indexer.block)
	require.NoError(t, <-done)
	assert.False(t, r.Running())
}

func TestRebuilder_Run_ItemTimeout(t *testing.T) {
	indexer := &recordingIndexer{block: make(chan struct{})}
	defer close(indexer.block)
	r, err := NewRebuilder(testStore(2, 0), indexer, nil, &Config{ReportInterval: 1, ItemTimeout: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	result, err := r.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.ErrorIs(t, result.Errors[0], context.DeadlineExceeded)
}

type fileExtractor struct{}

func (fileExtractor) Extract(ctx context.Context, kind core.SourceType, locator string) (core.ExtractedContent, error) {
	return core.ExtractedContent{Text: "attachment at " + locator, Title: locator}, nil
}

func TestRebuilder_Integration(t *testing.T) {
	chunks, states, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	settings := ingestion.Settings{ModelTag: "mock/test", MaxChunkSize: 100, ChunkOverlap: 10, BatchSize: 8}
	pipeline, err := ingestion.NewPipeline(chunks, states, fileExtractor{}, mock.NewMockEmbedder(), settings)
	require.NoError(t, err)
	defer pipeline.Release()

	ctx := context.Background()
	// A document and a block that no longer exist in the store.
	_, err = pipeline.IndexDocumentNow(ctx, core.Document{ID: "deleted", Text: "gone but indexed"})
	require.NoError(t, err)
	_, err = pipeline.IndexExternalBlock(ctx, core.ExternalBlock{DocID: "doc-0", BlockID: "detached", Type: core.SourceFile, Locator: "/old.txt"})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	store := testStore(4, 2)
	r, err := NewRebuilder(store, pipeline, chunks, nil, nil)
	require.NoError(t, err)

	result, err := r.Run(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, result.Documents)
	assert.Equal(t, 2, result.External)
	assert.Equal(t, 2, result.Pruned)

	stats, err := chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Documents)
	assert.Equal(t, 2, stats.Files)

	_, err = states.GetBlockState(ctx, "doc-0", "detached")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = states.GetBlockState(ctx, "doc-0", "file-0")
	assert.NoError(t, err)
}

func TestRebuilder_PruneKeepsSourcesIndexedDuringRun(t *testing.T) {
	chunks, states, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer backend.Close()

	settings := ingestion.Settings{ModelTag: "mock/test", MaxChunkSize: 100, ChunkOverlap: 10, BatchSize: 8}
	pipeline, err := ingestion.NewPipeline(chunks, states, fileExtractor{}, mock.NewMockEmbedder(), settings)
	require.NoError(t, err)
	defer pipeline.Release()

	ctx := context.Background()
	store := testStore(2, 1)
	r, err := NewRebuilder(store, pipeline, chunks, nil, nil)
	require.NoError(t, err)

	added := false
	result, err := r.Run(ctx, func(p Progress) {
		if p.Phase != PhaseExternal || added {
			return
		}
		added = true
		// Created and indexed by the host while the rebuild runs.
		late := core.Document{ID: "late", Text: "written during the rebuild"}
		store.docs = append(store.docs, late)
		_, err := pipeline.IndexDocumentNow(ctx, late)
		require.NoError(t, err)
		// Indexed before the store lists it.
		_, err = pipeline.IndexDocumentNow(ctx, core.Document{ID: "unlisted", Text: "not listed yet"})
		require.NoError(t, err)
		block := core.ExternalBlock{DocID: "doc-1", BlockID: "late-file", Type: core.SourceFile, Locator: "/late.txt"}
		_, err = pipeline.IndexExternalBlock(ctx, block)
		require.NoError(t, err)
	})
	require.NoError(t, err)
	assert.Zero(t, result.Pruned)

	stats, err := chunks.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Documents)
	assert.Equal(t, 2, stats.Files)

	state, err := states.GetBlockState(ctx, "doc-1", "late-file")
	require.NoError(t, err)
	assert.True(t, state.Indexed)
}
