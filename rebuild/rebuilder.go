// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/ingestion"
	"github.com/poiesic/notevec/storage"
)

// Indexer runs the per-item indexing and removal operations.
// *ingestion.Pipeline implements it.
type Indexer interface {
	IndexDocumentNow(ctx context.Context, doc core.Document) (int, error)
	IndexExternalBlock(ctx context.Context, block core.ExternalBlock) (core.ExtractedContent, error)
	DocumentDeleted(ctx context.Context, docID string) error
	RemoveExternalBlock(ctx context.Context, docID, blockID string) error
}

var _ Indexer = (*ingestion.Pipeline)(nil)

// Config holds configuration for the rebuild operation.
type Config struct {
	// ReportInterval is how often to log progress (number of items)
	ReportInterval int

	// ItemTimeout bounds the indexing of a single document or block.
	ItemTimeout time.Duration

	// Prune removes indexed sources whose document or block no longer exists.
	// Sources written after the rebuild started are kept.
	Prune bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		ReportInterval: 25,
		ItemTimeout:    2 * time.Minute,
		Prune:          true,
	}
}

// Result summarizes a rebuild.
type Result struct {
	Documents int // documents indexed
	External  int // external blocks indexed
	Failed    int
	Pruned    int // sources removed because their document or block is gone
	Errors    []error
	Elapsed   time.Duration
}

// Indexed returns the number of items indexed successfully.
func (r Result) Indexed() int {
	return r.Documents + r.External
}

// Rebuilder reindexes a whole document store. Only one rebuild runs at a time.
type Rebuilder struct {
	store   core.DocumentStore
	indexer Indexer
	chunks  storage.ChunkRepository
	config  *Config
	running atomic.Bool
	logger  *slog.Logger
}

// NewRebuilder creates a new rebuilder. chunks may be nil, which disables pruning.
func NewRebuilder(store core.DocumentStore, indexer Indexer, chunks storage.ChunkRepository, config *Config, logger *slog.Logger) (*Rebuilder, error) {
	if store == nil {
		return nil, ErrDocumentStoreRequired
	}
	if indexer == nil {
		return nil, ErrIndexerRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Rebuilder{
		store:   store,
		indexer: indexer,
		chunks:  chunks,
		config:  config,
		logger:  logger.With("component", "rebuild"),
	}, nil
}

// Running reports whether a rebuild is in progress.
func (r *Rebuilder) Running() bool {
	return r.running.Load()
}

// Run reindexes every document, then every external block, calling
// progress after each item. Item failures are counted in the result and do
// not stop the run. The returned error is non-nil only when the rebuild
// could not run or was cancelled; the partial result is returned with it.
func (r *Rebuilder) Run(ctx context.Context, progress func(Progress)) (Result, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Result{}, ErrRebuildInProgress
	}
	defer r.running.Store(false)

	if progress == nil {
		progress = func(Progress) {}
	}
	start := time.Now()
	var result Result
	finish := func(err error) (Result, error) {
		result.Elapsed = time.Since(start)
		return result, err
	}

	docs, err := r.store.ListDocuments(ctx)
	if err != nil {
		return finish(fmt.Errorf("failed to list documents: %w", err))
	}
	blocks, err := r.store.ListExternalBlocks(ctx)
	if err != nil {
		return finish(fmt.Errorf("failed to list external blocks: %w", err))
	}

	r.logger.Info("starting rebuild", "documents", len(docs), "blocks", len(blocks))

	tracker := NewProgressTracker(r.logger, PhaseDocuments, len(docs), r.config.ReportInterval)
	tracker.Start()
	progress(tracker.Current())
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		err := r.withTimeout(ctx, func(ctx context.Context) error {
			_, err := r.indexer.IndexDocumentNow(ctx, doc)
			return err
		})
		if r.record(&result, err, "document", doc.ID, "") {
			result.Documents++
		}
		progress(tracker.Increment(1))
	}
	tracker.Finish()

	tracker = NewProgressTracker(r.logger, PhaseExternal, len(blocks), r.config.ReportInterval)
	tracker.Start()
	progress(tracker.Current())
	for _, block := range blocks {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		err := r.withTimeout(ctx, func(ctx context.Context) error {
			_, err := r.indexer.IndexExternalBlock(ctx, block)
			return err
		})
		if r.record(&result, err, "block", block.DocID, block.BlockID) {
			result.External++
		}
		progress(tracker.Increment(1))
	}
	tracker.Finish()

	if r.config.Prune && r.chunks != nil {
		pruned, err := r.prune(ctx, start)
		result.Pruned = pruned
		if err != nil {
			return finish(fmt.Errorf("failed to prune index: %w", err))
		}
	}

	result.Elapsed = time.Since(start)
	r.logger.Info("rebuild complete",
		"documents", result.Documents,
		"external", result.External,
		"failed", result.Failed,
		"pruned", result.Pruned,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}

func (r *Rebuilder) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if r.config.ItemTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, r.config.ItemTimeout)
	defer cancel()
	return fn(ctx)
}

// record logs and counts a failed item. It reports whether the item succeeded.
// Items deleted while the rebuild ran are neither successes nor failures.
func (r *Rebuilder) record(result *Result, err error, kind, docID, blockID string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, ingestion.ErrSuperseded):
		r.logger.Debug("item deleted during rebuild", "kind", kind, "doc", docID, "block", blockID)
		return false
	}
	r.logger.Warn("failed to index item", "kind", kind, "doc", docID, "block", blockID, "err", err)
	result.Failed++
	key := core.SourceKey{DocID: docID, BlockID: blockID}
	result.Errors = append(result.Errors, fmt.Errorf("%s %s: %w", kind, key, err))
	return false
}

// prune removes the chunks and block states of sources that are no longer in
// the store. The store is listed again so that sources created while the
// rebuild ran are live, and a source with any chunk written since start is
// left alone.
func (r *Rebuilder) prune(ctx context.Context, start time.Time) (int, error) {
	docs, err := r.store.ListDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list documents: %w", err)
	}
	blocks, err := r.store.ListExternalBlocks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list external blocks: %w", err)
	}
	liveDocs := make(map[string]struct{}, len(docs))
	for _, doc := range docs {
		liveDocs[doc.ID] = struct{}{}
	}
	liveBlocks := make(map[core.SourceKey]struct{}, len(blocks))
	for _, block := range blocks {
		liveBlocks[block.Key()] = struct{}{}
	}

	// Stored timestamps have microsecond precision.
	cutoff := start.Truncate(time.Microsecond)
	staleDocs := make(map[string]bool)
	staleBlocks := make(map[core.SourceKey]bool)
	err = r.chunks.ForEachChunk(ctx, func(chunk *core.Chunk) error {
		fresh := !chunk.UpdatedAt.Before(cutoff)
		if _, ok := liveDocs[chunk.DocID]; !ok {
			staleDocs[chunk.DocID] = staleDocs[chunk.DocID] || fresh
			return nil
		}
		if chunk.BlockID != "" {
			if _, ok := liveBlocks[chunk.Key()]; !ok {
				staleBlocks[chunk.Key()] = staleBlocks[chunk.Key()] || fresh
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	pruned := 0
	for docID, fresh := range staleDocs {
		if fresh {
			continue
		}
		if err := r.indexer.DocumentDeleted(ctx, docID); err != nil {
			return pruned, err
		}
		pruned++
	}
	for key, fresh := range staleBlocks {
		if fresh {
			continue
		}
		if err := r.indexer.RemoveExternalBlock(ctx, key.DocID, key.BlockID); err != nil {
			return pruned, err
		}
		pruned++
	}
	if pruned > 0 {
		r.logger.Info("pruned stale sources", "sources", pruned)
	}
	return pruned, nil
}
