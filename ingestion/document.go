package ingestion

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
)

// pendingSave is a debounced document save waiting for its timer.
type pendingSave struct {
	doc   core.Document
	stamp stamp
	timer *time.Timer
	gen   uint64
}

// DocumentSaved schedules a reindex of the document's body after the
// debounce delay. A later save of the same document before the timer fires
// replaces the pending content and restarts the timer.
func (p *Pipeline) DocumentSaved(doc core.Document) error {
	if err := core.ValidateDocument(&doc); err != nil {
		return err
	}
	delay := p.Settings().DebounceDelay

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}

	s := stamp{doc: p.epochs[core.SourceKey{DocID: doc.ID}]}
	save, ok := p.pending[doc.ID]
	if ok {
		save.timer.Stop()
		save.doc = doc
		save.stamp = s
		save.gen++
	} else {
		save = &pendingSave{doc: doc, stamp: s}
		p.pending[doc.ID] = save
	}
	gen := save.gen
	save.timer = time.AfterFunc(delay, func() { p.fire(doc.ID, gen) })
	p.logger.Debug("document save scheduled", "doc", doc.ID, "delay", delay)
	return nil
}

// fire runs a debounced save unless it was superseded, flushed or cancelled.
func (p *Pipeline) fire(docID string, gen uint64) {
	p.mu.Lock()
	save, ok := p.pending[docID]
	if !ok || save.gen != gen || p.released {
		p.mu.Unlock()
		return
	}
	delete(p.pending, docID)
	p.wg.Add(1)
	p.mu.Unlock()
	defer p.wg.Done()

	if _, err := p.indexDocument(context.Background(), save.doc, save.stamp); err != nil && !errors.Is(err, ErrSuperseded) {
		p.reportFailure(Failure{DocID: docID, Err: err})
	}
}

// Flush runs every pending debounced save now and waits for them.
func (p *Pipeline) Flush(ctx context.Context) error {
	p.mu.Lock()
	saves := make([]*pendingSave, 0, len(p.pending))
	for id, save := range p.pending {
		save.timer.Stop()
		delete(p.pending, id)
		saves = append(saves, save)
	}
	p.mu.Unlock()

	var errs []error
	for _, save := range saves {
		if _, err := p.indexDocument(ctx, save.doc, save.stamp); err != nil && !errors.Is(err, ErrSuperseded) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PendingSaves returns the number of debounced saves waiting for their timer.
func (p *Pipeline) PendingSaves() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// IndexDocumentNow reindexes the document's body synchronously, replacing
// every document-internal chunk. External block chunks are untouched.
// A pending debounced save of the same document is superseded.
// Returns the number of chunks written.
func (p *Pipeline) IndexDocumentNow(ctx context.Context, doc core.Document) (int, error) {
	if err := core.ValidateDocument(&doc); err != nil {
		return 0, err
	}
	p.mu.Lock()
	if save, ok := p.pending[doc.ID]; ok {
		save.timer.Stop()
		delete(p.pending, doc.ID)
	}
	p.mu.Unlock()

	return p.indexDocument(ctx, doc, p.stampFor(doc.ID, ""))
}

func (p *Pipeline) indexDocument(ctx context.Context, doc core.Document, s stamp) (int, error) {
	unlock := p.locks.lock(doc.ID)
	defer unlock()

	embedder, settings, gen, err := p.snapshot()
	if err != nil {
		return 0, err
	}
	if p.stale(doc.ID, "", s) {
		return 0, ErrSuperseded
	}
	ctx, done, err := p.beginJob(ctx, doc.ID)
	if err != nil {
		return 0, err
	}
	defer done()

	logger := p.logger.With("doc", doc.ID)
	logger.Debug("indexing document")

	chunks, err := buildChunks(ctx, embedder, settings, source{
		docID: doc.ID,
		kind:  core.SourceDocument,
		title: doc.Title,
	}, doc.Text)
	if err != nil {
		if p.superseded(doc.ID, "", s, gen) {
			return 0, ErrSuperseded
		}
		logger.Error("error indexing document", "err", err)
		return 0, err
	}

	// A delete or model change that raced the embedding wins.
	if p.superseded(doc.ID, "", s, gen) {
		logger.Debug("discarding superseded document index")
		return 0, ErrSuperseded
	}
	if err := p.chunks.ReplaceSource(ctx, doc.ID, "", chunks); err != nil {
		if errors.Is(err, storage.ErrModelMismatch) {
			logger.Debug("discarding document index of previous model")
			return 0, ErrSuperseded
		}
		return 0, err
	}

	logger.Info("document indexed", "chunks", len(chunks))
	p.touchIndexTime(ctx, settings.ModelTag, gen)
	p.statusChanged(doc.ID, "")
	return len(chunks), nil
}

// DocumentDeleted removes every chunk and block state of the document and
// cancels its pending save. A job already running for the document is
// cancelled and its result discarded.
func (p *Pipeline) DocumentDeleted(ctx context.Context, docID string) error {
	if docID == "" {
		return core.ErrEmptyDocID
	}

	p.mu.Lock()
	if save, ok := p.pending[docID]; ok {
		save.timer.Stop()
		delete(p.pending, docID)
	}
	p.epochs[core.SourceKey{DocID: docID}]++
	p.mu.Unlock()
	p.cancelRunning(docID)

	unlock := p.locks.lock(docID)
	defer unlock()

	removed, err := p.chunks.DeleteByDocument(ctx, docID)
	if err != nil {
		return err
	}
	if err := p.states.DeleteDocumentBlockStates(ctx, docID); err != nil {
		return err
	}
	p.logger.Info("document removed from index", "doc", docID, "chunks", removed)
	p.statusChanged(docID, "")
	return nil
}
