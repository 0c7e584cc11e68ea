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


package notevec

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/ingestion"
	"github.com/poiesic/notevec/rebuild"
	"github.com/poiesic/notevec/storage"
)

// DocumentSaved schedules a debounced reindex of the document body.
// Repeated saves within the debounce delay are coalesced into one job that
// indexes the last saved text.
func (e *Engine) DocumentSaved(doc core.Document) error {
	if err := e.enabled(); err != nil {
		return err
	}
	return e.pipeline.DocumentSaved(doc)
}

// IndexDocument reindexes the document body now and returns the number of
// chunks written.
func (e *Engine) IndexDocument(ctx context.Context, doc core.Document) (int, error) {
	if err := e.enabled(); err != nil {
		return 0, err
	}
	return e.pipeline.IndexDocumentNow(ctx, doc)
}

// DocumentDeleted removes every chunk and block state of the document and
// cancels its pending or running jobs. It works while indexing is disabled.
func (e *Engine) DocumentDeleted(ctx context.Context, docID string) error {
	if err := e.open(); err != nil {
		return err
	}
	return e.pipeline.DocumentDeleted(ctx, docID)
}

// IndexBookmarkContent fetches url and indexes it as a bookmark block of docID.
func (e *Engine) IndexBookmarkContent(ctx context.Context, url, docID, blockID string) (core.ExtractedContent, error) {
	return e.indexBlock(ctx, core.ExternalBlock{
		DocID:   docID,
		BlockID: blockID,
		Type:    core.SourceBookmark,
		Locator: url,
	})
}

// IndexFileContent indexes the file at path as a file block of docID.
// fileName is the display name used when the content has no title.
func (e *Engine) IndexFileContent(ctx context.Context, path, docID, blockID, fileName string) (core.ExtractedContent, error) {
	return e.indexBlock(ctx, core.ExternalBlock{
		DocID:   docID,
		BlockID: blockID,
		Type:    core.SourceFile,
		Locator: path,
		Title:   fileName,
	})
}

// IndexFolderContent indexes the supported files under path as a folder
// block of docID. The result lists the outcome for each file.
func (e *Engine) IndexFolderContent(ctx context.Context, path, docID, blockID string) (core.ExtractedContent, error) {
	return e.indexBlock(ctx, core.ExternalBlock{
		DocID:   docID,
		BlockID: blockID,
		Type:    core.SourceFolder,
		Locator: path,
	})
}

func (e *Engine) indexBlock(ctx context.Context, block core.ExternalBlock) (core.ExtractedContent, error) {
	if err := e.enabled(); err != nil {
		return core.ExtractedContent{}, err
	}
	return e.pipeline.IndexExternalBlock(ctx, block)
}

// SubmitExternalBlock queues a block for background indexing and returns its
// task id. The outcome is recorded in the block state and failures are
// delivered on Failures and Events.
func (e *Engine) SubmitExternalBlock(ctx context.Context, block core.ExternalBlock) (string, error) {
	if err := e.enabled(); err != nil {
		return "", err
	}
	return e.pipeline.SubmitExternalBlock(ctx, block)
}

// RemoveExternalBlock removes the chunks, state and stored text of one
// block, leaving the rest of the document indexed.
func (e *Engine) RemoveExternalBlock(ctx context.Context, docID, blockID string) error {
	if err := e.open(); err != nil {
		return err
	}
	return e.pipeline.RemoveExternalBlock(ctx, docID, blockID)
}

// GetExternalBlockContent returns the stored text and indexing state of one
// block. Returns storage.ErrNotFound for a block that was never indexed.
func (e *Engine) GetExternalBlockContent(ctx context.Context, docID, blockID string) (core.ExtractedContent, error) {
	if err := e.open(); err != nil {
		return core.ExtractedContent{}, err
	}
	state, err := e.states.GetBlockState(ctx, docID, blockID)
	if err != nil {
		return core.ExtractedContent{}, err
	}
	content := core.ExtractedContent{
		Title:    state.Title,
		Error:    state.IndexError,
		Indexed:  state.Indexed,
		Indexing: state.Indexing,
	}
	text, err := e.states.GetBlockContent(ctx, docID, blockID)
	switch {
	case err == nil:
		content.Text = text
	case errors.Is(err, storage.ErrNotFound):
	default:
		return core.ExtractedContent{}, err
	}
	return content, nil
}

// ListBlockStates returns the indexing state of every external block.
func (e *Engine) ListBlockStates(ctx context.Context) ([]*core.BlockState, error) {
	if err := e.open(); err != nil {
		return nil, err
	}
	return e.states.ListBlockStates(ctx)
}

// Flush indexes every pending debounced save now.
func (e *Engine) Flush(ctx context.Context) error {
	if err := e.enabled(); err != nil {
		return err
	}
	return e.pipeline.Flush(ctx)
}

// RebuildIndex reindexes every document and external block of the store.
// progress, which may be nil, is called after each item and the same
// progress is published on Events. Item failures are counted in the result
// and do not stop the rebuild.
func (e *Engine) RebuildIndex(ctx context.Context, progress func(rebuild.Progress)) (rebuild.Result, error) {
	if err := e.enabled(); err != nil {
		return rebuild.Result{}, err
	}
	events := e.pipeline.Events()
	result, err := e.rebuilder.Run(ctx, func(p rebuild.Progress) {
		events.Publish(ingestion.Event{
			Type:    ingestion.EventProgress,
			Phase:   string(p.Phase),
			Current: p.Current,
			Total:   p.Total,
		})
		if progress != nil {
			progress(p)
		}
	})
	events.Publish(ingestion.Event{Type: ingestion.EventStatusChanged})
	if err != nil {
		return result, fmt.Errorf("rebuild: %w", err)
	}
	return result, nil
}
