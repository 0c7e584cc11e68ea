package badger

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
//
// Reads run inside badger read transactions and see a consistent snapshot.
// The RWMutex additionally keeps Query from observing a delete that had to
// be split across several transactions.
type ChunkRepository struct {
	backend *Backend

	mu       sync.RWMutex
	modelTag string
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) *ChunkRepository {
	return &ChunkRepository{
		backend: backend,
	}
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// SetModelTag sets the model tag of the index. Query and Stats see only
// chunks with this tag and writes of chunks with another tag fail with
// storage.ErrModelMismatch. An empty tag accepts all chunks.
func (r *ChunkRepository) SetModelTag(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modelTag = tag
}

// Upsert writes chunks, replacing existing chunks with the same identity.
func (r *ChunkRepository) Upsert(ctx context.Context, chunks ...*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkModel(chunks); err != nil {
		return err
	}

	wb, err := r.newBatch()
	if err != nil {
		return err
	}
	defer wb.discard()
	if err := r.writeChunks(wb, chunks); err != nil {
		return err
	}
	return wb.commit()
}

// ReplaceSource deletes every chunk of the source and writes chunks in the
// same transaction when it fits.
func (r *ChunkRepository) ReplaceSource(ctx context.Context, docID, blockID string, chunks []*core.Chunk) error {
	if docID == "" {
		return core.ErrEmptyDocID
	}
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return err
		}
		if chunk.DocID != docID || chunk.BlockID != blockID {
			return fmt.Errorf("%w: chunk of %s in replacement of %s", core.ErrInvalidChunk,
				chunk.Key(), core.SourceKey{DocID: docID, BlockID: blockID})
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.checkModel(chunks); err != nil {
		return err
	}

	keys, err := r.backend.keysWithPrefix(makeSourcePrefix(chunkPrefix, docID, blockID))
	if err != nil {
		return err
	}

	wb, err := r.newBatch()
	if err != nil {
		return err
	}
	defer wb.discard()
	for _, key := range keys {
		if err := wb.delete(key); err != nil {
			return err
		}
	}
	if err := r.writeChunks(wb, chunks); err != nil {
		return err
	}
	return wb.commit()
}

// DeleteByDocument removes every chunk of docID, blocks included.
func (r *ChunkRepository) DeleteByDocument(ctx context.Context, docID string) (int, error) {
	if docID == "" {
		return 0, core.ErrEmptyDocID
	}
	return r.deletePrefix(makeDocumentPrefix(chunkPrefix, docID))
}

// DeleteByBlock removes the chunks of one external block.
func (r *ChunkRepository) DeleteByBlock(ctx context.Context, docID, blockID string) (int, error) {
	if docID == "" {
		return 0, core.ErrEmptyDocID
	}
	if blockID == "" {
		return 0, core.ErrEmptyBlockID
	}
	return r.deletePrefix(makeSourcePrefix(chunkPrefix, docID, blockID))
}

// DeleteDocumentChunks removes only the document-internal chunks of docID.
func (r *ChunkRepository) DeleteDocumentChunks(ctx context.Context, docID string) (int, error) {
	if docID == "" {
		return 0, core.ErrEmptyDocID
	}
	return r.deletePrefix(makeSourcePrefix(chunkPrefix, docID, ""))
}

// Query ranks chunks by dot product with vector. Vectors are unit length,
// so the score is their cosine similarity.
func (r *ChunkRepository) Query(ctx context.Context, vector []float32, limit int) ([]core.ScoredChunk, error) {
	if len(vector) == 0 || limit <= 0 {
		return nil, storage.ErrInvalidQuery
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var results []core.ScoredChunk
	err := r.iterate(ctx, []byte(chunkPrefix), func(chunk *core.Chunk) error {
		if !r.current(chunk) {
			return nil
		}
		if len(chunk.Vector) != len(vector) {
			return nil
		}
		results = append(results, core.ScoredChunk{
			Chunk: chunk,
			Score: core.DotProduct(vector, chunk.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b core.ScoredChunk) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Stats counts distinct sources per type and the total number of chunks
// embedded under the current model tag.
func (r *ChunkRepository) Stats(ctx context.Context) (core.IndexStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var stats core.IndexStats
	seen := make(map[core.SourceKey]struct{})
	err := r.iterate(ctx, []byte(chunkPrefix), func(chunk *core.Chunk) error {
		if !r.current(chunk) {
			return nil
		}
		stats.Chunks++
		key := chunk.Key()
		if _, ok := seen[key]; ok {
			return nil
		}
		seen[key] = struct{}{}
		stats.Add(chunk.SourceType)
		return nil
	})
	return stats, err
}

// ForEachChunk calls fn for every chunk in key order.
func (r *ChunkRepository) ForEachChunk(ctx context.Context, fn func(*core.Chunk) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.iterate(ctx, []byte(chunkPrefix), fn)
}

// SourceChunks returns the chunks of one source ordered by index.
func (r *ChunkRepository) SourceChunks(ctx context.Context, docID, blockID string) ([]*core.Chunk, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var chunks []*core.Chunk
	err := r.iterate(ctx, makeSourcePrefix(chunkPrefix, docID, blockID), func(chunk *core.Chunk) error {
		chunks = append(chunks, chunk)
		return nil
	})
	return chunks, err
}

// Reset removes every chunk.
func (r *ChunkRepository) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backend.DropPrefix([]byte(chunkPrefix))
}

// current reports whether chunk was embedded under the model tag. Callers hold r.mu.
func (r *ChunkRepository) current(chunk *core.Chunk) bool {
	return r.modelTag == "" || chunk.Model == r.modelTag
}

// checkModel rejects chunks embedded under another model tag. Callers hold r.mu.
func (r *ChunkRepository) checkModel(chunks []*core.Chunk) error {
	for _, chunk := range chunks {
		if !r.current(chunk) {
			return fmt.Errorf("%w: chunk %s has model %q, index uses %q",
				storage.ErrModelMismatch, chunk.Key(), chunk.Model, r.modelTag)
		}
	}
	return nil
}

func (r *ChunkRepository) newBatch() (*batch, error) {
	if r.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}
	return r.backend.newBatch(), nil
}

func (r *ChunkRepository) writeChunks(wb *batch, chunks []*core.Chunk) error {
	now := time.Now().UTC()
	for _, chunk := range chunks {
		chunk.Id = core.ChunkID(chunk.DocID, chunk.BlockID, chunk.Index)
		if chunk.UpdatedAt.IsZero() {
			chunk.UpdatedAt = now
		}
		key := makeChunkKey(chunk.DocID, chunk.BlockID, chunk.Index)
		if err := wb.set(key, storage.MarshalChunk(chunk)); err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepository) deletePrefix(prefix []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys, err := r.backend.keysWithPrefix(prefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	wb, err := r.newBatch()
	if err != nil {
		return 0, err
	}
	defer wb.discard()
	for _, key := range keys {
		if err := wb.delete(key); err != nil {
			return 0, err
		}
	}
	if err := wb.commit(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// iterate decodes every chunk under prefix. Callers hold r.mu.
func (r *ChunkRepository) iterate(ctx context.Context, prefix []byte, fn func(*core.Chunk) error) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if err := fn(chunk); err != nil {
				return err
			}
		}
		return nil
	}, false)
}
