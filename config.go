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
	"fmt"
	"time"

	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/ingestion"
)

// sampleText is embedded by TestRAGConfig.
const sampleText = "notevec embedding check"

// RAGStatus summarizes the state of the index for the host UI.
type RAGStatus struct {
	Enabled          bool
	Provider         string
	Model            string
	Connected        bool   // an embedder is configured
	Breaker          string // circuit breaker state of the embedder
	IndexedDocs      int
	IndexedBookmarks int
	IndexedFiles     int
	IndexedFolders   int
	TotalChunks      int
	TotalDocs        int
	LastIndexTime    time.Time
	Rebuilding       bool
	PendingSaves     int
	FailedBlocks     int
}

// GetRAGConfig returns a copy of the active embedding configuration.
func (e *Engine) GetRAGConfig() *ai.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.config.Clone()
}

// SaveRAGConfig validates, persists and activates config.
//
// Configuration errors are returned before anything changes. When the model
// tag changes, every vector is discarded: the index reports zero indexed
// sources until RebuildIndex runs.
func (e *Engine) SaveRAGConfig(ctx context.Context, config *ai.Config) error {
	if err := e.open(); err != nil {
		return err
	}
	if config == nil {
		return fmt.Errorf("%w: missing configuration", ai.ErrInvalidConfig)
	}
	next := config.Clone()
	if err := next.Validate(); err != nil {
		return err
	}
	settings := ingestion.SettingsFromConfig(next)
	if err := settings.Validate(); err != nil {
		return err
	}

	var (
		p     ai.AIProvider
		guard *ai.Guard
	)
	if next.Enabled {
		var err error
		p, guard, err = e.buildEmbedder(next)
		if err != nil {
			return err
		}
	}
	if err := ai.SaveConfig(e.configPath, next); err != nil {
		if p != nil {
			p.Close()
		}
		return err
	}

	e.mu.Lock()
	previous := e.config
	oldProvider := e.provider
	e.config = next
	e.provider = p
	e.embedder = guard
	embedder := e.embedderOrNil()
	e.mu.Unlock()

	if oldProvider != nil {
		if err := oldProvider.Close(); err != nil {
			e.logger.Error("error closing embedding provider", "err", err)
		}
	}

	tag := next.ModelTag()
	e.chunks.SetModelTag(tag)
	e.graph.SetModelTag(tag)
	var reset func(context.Context) error
	if next.RequiresReindex(previous) {
		e.logger.Info("embedding model changed, index reset", "from", previous.ModelTag(), "to", tag)
		reset = func(ctx context.Context) error {
			return e.resetIndex(ctx, tag)
		}
	}
	if err := e.pipeline.Reconfigure(ctx, embedder, settings, reset); err != nil {
		return err
	}
	if err := e.searcher.SetEmbedder(embedder, tag); err != nil {
		return err
	}

	e.pipeline.Events().Publish(ingestion.Event{Type: ingestion.EventStatusChanged})
	return nil
}

// resetIndex drops every vector and marks every external block as not indexed.
// Extracted block text is kept.
func (e *Engine) resetIndex(ctx context.Context, tag string) error {
	if err := e.chunks.Reset(ctx); err != nil {
		return err
	}
	states, err := e.states.ListBlockStates(ctx)
	if err != nil {
		return err
	}
	for _, state := range states {
		state.Indexed = false
		state.Indexing = false
		state.ChunkCount = 0
		if err := e.states.SaveBlockState(ctx, state); err != nil {
			return err
		}
	}
	return e.states.SaveIndexMeta(ctx, core.IndexMeta{ModelTag: tag})
}

// TestRAGConfig checks that config is valid and that its provider answers.
// It returns the dimension of the sample vector. The active configuration is
// not changed.
func (e *Engine) TestRAGConfig(ctx context.Context, config *ai.Config) (int, error) {
	if config == nil {
		return 0, fmt.Errorf("%w: missing configuration", ai.ErrInvalidConfig)
	}
	candidate := config.Clone()
	candidate.Enabled = true
	p, guard, err := e.buildEmbedder(candidate)
	if err != nil {
		return 0, err
	}
	defer p.Close()

	vector, err := guard.EmbedText(ctx, sampleText)
	if err != nil {
		return 0, err
	}
	return len(vector), nil
}

// GetRAGStatus reports index counts and embedder health.
func (e *Engine) GetRAGStatus(ctx context.Context) (RAGStatus, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return RAGStatus{}, ErrClosed
	}
	status := RAGStatus{
		Enabled:   e.config.Enabled,
		Provider:  e.config.Provider,
		Model:     e.config.Model,
		Connected: e.embedder != nil,
	}
	if e.embedder != nil {
		status.Breaker = e.embedder.State()
	}
	e.mu.RUnlock()

	stats, err := e.chunks.Stats(ctx)
	if err != nil {
		return RAGStatus{}, err
	}
	status.IndexedDocs = stats.Documents
	status.IndexedBookmarks = stats.Bookmarks
	status.IndexedFiles = stats.Files
	status.IndexedFolders = stats.Folders
	status.TotalChunks = stats.Chunks

	meta, err := e.states.LoadIndexMeta(ctx)
	if err != nil {
		return RAGStatus{}, err
	}
	status.LastIndexTime = meta.LastIndexTime

	docs, err := e.store.ListDocuments(ctx)
	if err != nil {
		return RAGStatus{}, err
	}
	status.TotalDocs = len(docs)

	states, err := e.states.ListBlockStates(ctx)
	if err != nil {
		return RAGStatus{}, err
	}
	for _, state := range states {
		if state.IndexError != "" && !state.Indexed {
			status.FailedBlocks++
		}
	}

	status.Rebuilding = e.rebuilder.Running()
	status.PendingSaves = e.pipeline.PendingSaves()
	return status, nil
}
