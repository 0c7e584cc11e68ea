package ingestion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
)

// task is one submitted external block waiting in the queue.
type task struct {
	id    string
	block core.ExternalBlock
	stamp stamp
}

// IndexExternalBlock extracts, chunks and embeds one bookmark, file or
// folder block, replacing any chunks the block had before. The block state
// tracks progress: Indexing while the job runs, then Indexed or IndexError.
//
// An extraction that yields no text is not an error: the block's chunks are
// cleared and the reason is recorded in the state and in the returned
// content. Extraction and embedding failures are returned wrapped in
// ErrExtractionFailed and ErrEmbeddingFailed, with the content's Error set.
func (p *Pipeline) IndexExternalBlock(ctx context.Context, block core.ExternalBlock) (core.ExtractedContent, error) {
	if err := core.ValidateExternalBlock(&block); err != nil {
		return core.ExtractedContent{}, err
	}
	return p.indexBlock(ctx, block, p.stampFor(block.DocID, block.BlockID))
}

func (p *Pipeline) indexBlock(ctx context.Context, block core.ExternalBlock, s stamp) (core.ExtractedContent, error) {
	unlock := p.locks.lock(block.DocID)
	defer unlock()

	embedder, settings, gen, err := p.snapshot()
	if err != nil {
		return core.ExtractedContent{}, err
	}
	if p.stale(block.DocID, block.BlockID, s) {
		return core.ExtractedContent{}, ErrSuperseded
	}
	ctx, done, err := p.beginJob(ctx, block.DocID)
	if err != nil {
		return core.ExtractedContent{}, err
	}
	defer done()

	logger := p.logger.With("doc", block.DocID, "block", block.BlockID, "type", block.Type)
	state := &core.BlockState{
		DocID:      block.DocID,
		BlockID:    block.BlockID,
		SourceType: block.Type,
		Locator:    block.Locator,
		Title:      block.Title,
		Indexing:   true,
	}
	if err := p.states.SaveBlockState(ctx, state); err != nil {
		return core.ExtractedContent{}, err
	}
	p.statusChanged(block.DocID, block.BlockID)

	logger.Debug("extracting external block", "locator", block.Locator)
	content, err := p.extractor.Extract(ctx, block.Type, block.Locator)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		return p.failBlock(ctx, state, content, s, gen, err)
	}
	if content.Title == "" {
		content.Title = block.Title
	}
	if block.Title != "" {
		state.Title = block.Title
	} else {
		state.Title = content.Title
	}

	chunks, err := buildChunks(ctx, embedder, settings, source{
		docID:   block.DocID,
		blockID: block.BlockID,
		kind:    block.Type,
		title:   state.Title,
	}, content.Text)
	if err != nil {
		return p.failBlock(ctx, state, content, s, gen, err)
	}

	if p.stale(block.DocID, block.BlockID, s) {
		logger.Debug("discarding superseded block index")
		return core.ExtractedContent{}, ErrSuperseded
	}
	if p.currentGeneration() != gen {
		return p.abandonBlock(ctx, state)
	}
	if err := p.chunks.ReplaceSource(ctx, block.DocID, block.BlockID, chunks); err != nil {
		if errors.Is(err, storage.ErrModelMismatch) {
			return p.abandonBlock(ctx, state)
		}
		return p.failBlock(ctx, state, content, s, gen, err)
	}
	if err := p.states.SaveBlockContent(ctx, block.DocID, block.BlockID, content.Text); err != nil {
		return p.failBlock(ctx, state, content, s, gen, err)
	}

	state.Indexing = false
	state.Indexed = len(chunks) > 0
	state.ChunkCount = len(chunks)
	state.IndexError = ""
	if len(chunks) == 0 {
		state.IndexError = content.Error
	}
	if err := p.states.SaveBlockState(ctx, state); err != nil {
		return core.ExtractedContent{}, err
	}

	content.Indexed = state.Indexed
	content.Indexing = false
	logger.Info("external block indexed", "chunks", len(chunks), "chars", len([]rune(content.Text)))
	p.touchIndexTime(ctx, settings.ModelTag, gen)
	p.statusChanged(block.DocID, block.BlockID)
	return content, nil
}

// failBlock records err in the block state unless the block was deleted
// meanwhile, and returns content carrying the error.
func (p *Pipeline) failBlock(ctx context.Context, state *core.BlockState, content core.ExtractedContent, s stamp, gen uint64, err error) (core.ExtractedContent, error) {
	if p.stale(state.DocID, state.BlockID, s) {
		return core.ExtractedContent{}, ErrSuperseded
	}
	if p.currentGeneration() != gen {
		return p.abandonBlock(ctx, state)
	}
	p.logger.Error("error indexing external block",
		"doc", state.DocID, "block", state.BlockID, "err", err)

	state.Indexing = false
	state.Indexed = false
	state.IndexError = err.Error()
	// The request context may be the reason for the failure.
	if saveErr := p.states.SaveBlockState(context.WithoutCancel(ctx), state); saveErr != nil {
		err = errors.Join(err, saveErr)
	}
	p.statusChanged(state.DocID, state.BlockID)

	content.Error = state.IndexError
	content.Indexed = false
	content.Indexing = false
	return content, err
}

// abandonBlock leaves a block whose job was invalidated by a model change
// waiting for a reindex. Callers hold the document lock.
func (p *Pipeline) abandonBlock(ctx context.Context, state *core.BlockState) (core.ExtractedContent, error) {
	p.logger.Debug("discarding block index of previous model", "doc", state.DocID, "block", state.BlockID)
	state.Indexing = false
	state.Indexed = false
	state.ChunkCount = 0
	state.IndexError = ""
	if err := p.states.SaveBlockState(context.WithoutCancel(ctx), state); err != nil {
		p.logger.Warn("error saving block state", "doc", state.DocID, "block", state.BlockID, "err", err)
	}
	p.statusChanged(state.DocID, state.BlockID)
	return core.ExtractedContent{}, ErrSuperseded
}

// SubmitExternalBlock queues a block for background indexing and returns
// immediately with a task id. The block state is marked Indexing at once.
// Failures are recorded in the block state and delivered on Failures.
// Returns ErrQueueFull when MaxPendingTasks blocks are already waiting, and
// ErrSuperseded when the block or its document is removed concurrently.
func (p *Pipeline) SubmitExternalBlock(ctx context.Context, block core.ExternalBlock) (string, error) {
	if err := core.ValidateExternalBlock(&block); err != nil {
		return "", err
	}
	if _, _, _, err := p.snapshot(); err != nil {
		return "", err
	}

	t := task{
		id:    uuid.NewString(),
		block: block,
		stamp: p.stampFor(block.DocID, block.BlockID),
	}

	state := &core.BlockState{
		DocID:      block.DocID,
		BlockID:    block.BlockID,
		SourceType: block.Type,
		Locator:    block.Locator,
		Title:      block.Title,
		Indexing:   true,
	}
	if err := p.saveStateIfCurrent(ctx, state, t.stamp); err != nil {
		return "", err
	}

	if err := p.enqueue(t); err != nil {
		state.Indexing = false
		state.IndexError = err.Error()
		if saveErr := p.saveStateIfCurrent(ctx, state, t.stamp); saveErr != nil && !errors.Is(saveErr, ErrSuperseded) {
			p.logger.Warn("error saving block state", "doc", block.DocID, "block", block.BlockID, "err", saveErr)
		}
		return "", err
	}
	p.logger.Debug("external block queued", "task", t.id, "doc", block.DocID, "block", block.BlockID)
	p.statusChanged(block.DocID, block.BlockID)
	return t.id, nil
}

func (p *Pipeline) enqueue(t task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}
	p.wg.Add(1)
	select {
	case p.queue <- t:
		return nil
	default:
		p.wg.Done()
		return ErrQueueFull
	}
}

// dispatch hands queued tasks to the worker pool, blocking while every
// worker is busy.
func (p *Pipeline) dispatch() {
	defer close(p.dispatched)
	for t := range p.queue {
		t := t
		if err := p.pool.Submit(func() { p.runTask(t) }); err != nil {
			p.reportFailure(Failure{TaskID: t.id, DocID: t.block.DocID, BlockID: t.block.BlockID, Err: err})
			p.wg.Done()
		}
	}
}

func (p *Pipeline) runTask(t task) {
	defer p.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), p.taskTimeout)
	defer cancel()

	_, err := p.indexBlock(ctx, t.block, t.stamp)
	switch {
	case err == nil, errors.Is(err, ErrSuperseded):
	case errors.Is(err, ErrReleased):
		p.interrupted(t)
	default:
		p.reportFailure(Failure{TaskID: t.id, DocID: t.block.DocID, BlockID: t.block.BlockID, Err: err})
	}
}

// interrupted marks a queued block that never ran because of shutdown, so
// it does not stay in the Indexing state across restarts.
func (p *Pipeline) interrupted(t task) {
	err := p.states.SaveBlockState(context.Background(), &core.BlockState{
		DocID:      t.block.DocID,
		BlockID:    t.block.BlockID,
		SourceType: t.block.Type,
		Locator:    t.block.Locator,
		Title:      t.block.Title,
		IndexError: "indexing interrupted by shutdown",
	})
	if err != nil {
		p.logger.Warn("error saving interrupted block state", "task", t.id, "err", err)
	}
}

// RemoveExternalBlock deletes the chunks and state of one block, leaving the
// rest of the document indexed. A queued or running job for the block is
// discarded.
func (p *Pipeline) RemoveExternalBlock(ctx context.Context, docID, blockID string) error {
	if docID == "" {
		return core.ErrEmptyDocID
	}
	if blockID == "" {
		return core.ErrEmptyBlockID
	}
	p.bumpEpoch(core.SourceKey{DocID: docID, BlockID: blockID})

	unlock := p.locks.lock(docID)
	defer unlock()

	removed, err := p.chunks.DeleteByBlock(ctx, docID, blockID)
	if err != nil {
		return err
	}
	if err := p.states.DeleteBlockState(ctx, docID, blockID); err != nil {
		return err
	}
	p.logger.Info("external block removed from index", "doc", docID, "block", blockID, "chunks", removed)
	p.statusChanged(docID, blockID)
	return nil
}
