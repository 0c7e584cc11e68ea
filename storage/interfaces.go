package storage

import (
	"context"

	"github.com/poiesic/notevec/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	// It does not close the shared backend.
	Close() error
}

// ChunkRepository is the vector index: chunks keyed by (DocID, BlockID, Index).
type ChunkRepository interface {
	Repository

	// Upsert writes chunks, replacing any existing chunk with the same identity.
	// Calling Upsert twice with the same chunks leaves one copy of each.
	Upsert(ctx context.Context, chunks ...*core.Chunk) error

	// ReplaceSource atomically replaces every chunk of one source with chunks.
	// An empty blockID addresses the document-internal chunks of docID.
	// A nil or empty chunks slice clears the source.
	ReplaceSource(ctx context.Context, docID, blockID string, chunks []*core.Chunk) error

	// DeleteByDocument removes every chunk of docID, including the chunks of
	// its external blocks. Returns the number of chunks removed.
	DeleteByDocument(ctx context.Context, docID string) (int, error)

	// DeleteByBlock removes the chunks of one external block only.
	DeleteByBlock(ctx context.Context, docID, blockID string) (int, error)

	// DeleteDocumentChunks removes the document-internal chunks of docID,
	// leaving its external blocks intact.
	DeleteDocumentChunks(ctx context.Context, docID string) (int, error)

	// Query returns up to limit chunks ranked by cosine similarity to vector,
	// highest first. Chunks embedded by another model or with a different
	// dimension are skipped.
	Query(ctx context.Context, vector []float32, limit int) ([]core.ScoredChunk, error)

	// Stats counts distinct indexed sources by type. Like Query it ignores
	// chunks embedded by another model.
	Stats(ctx context.Context) (core.IndexStats, error)

	// ForEachChunk calls fn for every chunk in key order.
	// Returning an error from fn stops the iteration and returns that error.
	ForEachChunk(ctx context.Context, fn func(*core.Chunk) error) error

	// SourceChunks returns the chunks of one source ordered by index.
	SourceChunks(ctx context.Context, docID, blockID string) ([]*core.Chunk, error)

	// SetModelTag sets the model tag of the index. Chunks tagged otherwise
	// are invisible to Query and Stats, and writing them fails with
	// ErrModelMismatch.
	SetModelTag(tag string)

	// Reset removes every chunk.
	Reset(ctx context.Context) error
}

// StateRepository persists external block states, their extracted text and
// index-wide metadata.
type StateRepository interface {
	Repository

	// SaveBlockState creates or replaces the state of one external block.
	// UpdatedAt is set automatically.
	SaveBlockState(ctx context.Context, state *core.BlockState) error

	// GetBlockState returns the state of one external block.
	// Returns ErrNotFound if the block has never been indexed.
	GetBlockState(ctx context.Context, docID, blockID string) (*core.BlockState, error)

	// DeleteBlockState removes the state and stored content of one block.
	DeleteBlockState(ctx context.Context, docID, blockID string) error

	// DeleteDocumentBlockStates removes the states and content of every block of docID.
	DeleteDocumentBlockStates(ctx context.Context, docID string) error

	// ListBlockStates returns every block state in key order.
	ListBlockStates(ctx context.Context) ([]*core.BlockState, error)

	// SaveBlockContent stores the extracted text of one block.
	SaveBlockContent(ctx context.Context, docID, blockID, text string) error

	// GetBlockContent returns the extracted text of one block.
	// Returns ErrNotFound if none is stored.
	GetBlockContent(ctx context.Context, docID, blockID string) (string, error)

	// LoadIndexMeta returns the persisted index metadata.
	// Returns a zero IndexMeta if none has been saved.
	LoadIndexMeta(ctx context.Context) (core.IndexMeta, error)

	// SaveIndexMeta persists index metadata.
	SaveIndexMeta(ctx context.Context, meta core.IndexMeta) error
}
