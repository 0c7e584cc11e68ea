package ingestion

import "errors"

var (
	// ErrChunkRepositoryRequired is returned when a chunk repository is not provided.
	ErrChunkRepositoryRequired = errors.New("chunk repository required")

	// ErrStateRepositoryRequired is returned when a state repository is not provided.
	ErrStateRepositoryRequired = errors.New("state repository required")

	// ErrExtractorRequired is returned when a content extractor is not provided.
	ErrExtractorRequired = errors.New("extractor required")

	// ErrNoEmbedder is returned by indexing operations while no embedder is configured.
	ErrNoEmbedder = errors.New("no embedder configured")

	// ErrExtractionFailed wraps a failure to read an external block's content.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmbeddingFailed wraps a failure to embed a source's chunks.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrSuperseded is returned when a job's result was discarded because its
	// document or block was deleted while it ran.
	ErrSuperseded = errors.New("indexing job superseded by delete")

	// ErrQueueFull is returned by SubmitExternalBlock when the task queue is full.
	ErrQueueFull = errors.New("indexing queue full")

	// ErrReleased is returned after Release has been called.
	ErrReleased = errors.New("pipeline released")
)
