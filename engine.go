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
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/ai/provider"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/extract"
	"github.com/poiesic/notevec/graph"
	"github.com/poiesic/notevec/ingestion"
	"github.com/poiesic/notevec/rebuild"
	"github.com/poiesic/notevec/search"
	"github.com/poiesic/notevec/storage"
	"github.com/poiesic/notevec/storage/badger"
)

// Layout of the data directory.
const (
	ConfigFile = "config.yaml"
	IndexDir   = "index"
)

const closeFlushTimeout = 30 * time.Second

// ProviderFactory builds the embedding provider for a validated configuration.
type ProviderFactory func(config *ai.Config) (ai.AIProvider, error)

// Engine is the retrieval engine. It is safe for concurrent use.
type Engine struct {
	dir        string
	configPath string
	store      core.DocumentStore

	backend   *badger.Backend
	chunks    storage.ChunkRepository
	states    storage.StateRepository
	pipeline  *ingestion.Pipeline
	searcher  *search.Searcher
	rebuilder *rebuild.Rebuilder
	graph     *graph.Builder

	newProvider ProviderFactory
	guardOpts   []ai.GuardOption

	// mu guards config, provider, embedder and closed.
	mu       sync.RWMutex
	config   *ai.Config
	provider ai.AIProvider
	embedder *ai.Guard
	closed   bool

	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	logger        *slog.Logger
	config        *ai.Config
	inMemory      bool
	newProvider   ProviderFactory
	extractor     ingestion.Extractor
	pipelineOpts  []ingestion.Option
	searchOpts    []search.Option
	guardOpts     []ai.GuardOption
	rebuildConfig *rebuild.Config
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithConfig uses config instead of the configuration file at startup.
// The file is still written by SaveRAGConfig.
func WithConfig(config *ai.Config) Option {
	return func(o *engineOptions) {
		o.config = config
	}
}

// WithInMemoryIndex keeps the index in memory. Nothing survives Close.
func WithInMemoryIndex() Option {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithProviderFactory overrides how embedding providers are built.
// Default is provider.New.
func WithProviderFactory(factory ProviderFactory) Option {
	return func(o *engineOptions) {
		o.newProvider = factory
	}
}

// WithExtractor overrides the content extractor used for external blocks.
func WithExtractor(extractor ingestion.Extractor) Option {
	return func(o *engineOptions) {
		o.extractor = extractor
	}
}

// WithPipelineOptions passes options to the indexing pipeline.
func WithPipelineOptions(opts ...ingestion.Option) Option {
	return func(o *engineOptions) {
		o.pipelineOpts = append(o.pipelineOpts, opts...)
	}
}

// WithSearchOptions passes options to the searcher.
func WithSearchOptions(opts ...search.Option) Option {
	return func(o *engineOptions) {
		o.searchOpts = append(o.searchOpts, opts...)
	}
}

// WithGuardOptions passes options to the guard around every embedder.
func WithGuardOptions(opts ...ai.GuardOption) Option {
	return func(o *engineOptions) {
		o.guardOpts = append(o.guardOpts, opts...)
	}
}

// WithRebuildConfig sets the full rebuild parameters.
func WithRebuildConfig(config *rebuild.Config) Option {
	return func(o *engineOptions) {
		o.rebuildConfig = config
	}
}

// Open opens or creates the engine's data directory.
//
// An index that cannot be opened is moved aside and replaced by an empty one.
// An invalid or unreachable embedding configuration does not fail Open: the
// engine starts without an embedder and reports the problem in its status.
func Open(dir string, store core.DocumentStore, opts ...Option) (*Engine, error) {
	if store == nil {
		return nil, ErrDocumentStoreRequired
	}
	options := &engineOptions{
		logger:      slog.Default(),
		newProvider: provider.New,
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	logger := options.logger.With("component", "engine")

	e := &Engine{
		dir:         dir,
		configPath:  filepath.Join(dir, ConfigFile),
		store:       store,
		newProvider: options.newProvider,
		guardOpts:   append([]ai.GuardOption{ai.WithLogger(options.logger)}, options.guardOpts...),
		logger:      logger,
	}

	config := options.config
	if config == nil {
		var err error
		config, err = ai.LoadConfig(e.configPath)
		if err != nil {
			return nil, err
		}
	}
	e.config = config.Clone()

	// Open backend
	var err error
	if options.inMemory {
		e.backend, err = badger.OpenBackend("", true)
	} else {
		e.backend, err = badger.OpenOrRecover(filepath.Join(dir, IndexDir))
	}
	if err != nil {
		return nil, err
	}
	e.chunks = badger.NewChunkRepository(e.backend)
	e.states = badger.NewStateRepository(e.backend)

	ctx := context.Background()
	if err := e.checkModelTag(ctx); err != nil {
		e.closeStorage()
		return nil, err
	}

	// Build the embedder; failures leave semantic features unavailable
	e.provider, e.embedder = e.connect(e.config)
	modelTag := e.config.ModelTag()
	e.chunks.SetModelTag(modelTag)

	settings := ingestion.SettingsFromConfig(e.config)
	if err := settings.Validate(); err != nil {
		logger.Warn("invalid chunking configuration, using defaults", "err", err)
		settings = ingestion.SettingsFromConfig(ai.DefaultConfig())
		settings.ModelTag = modelTag
	}

	extractor := options.extractor
	if extractor == nil {
		extractor = extract.New(extract.WithLogger(options.logger))
	}
	pipelineOpts := append([]ingestion.Option{ingestion.WithLogger(options.logger)}, options.pipelineOpts...)
	e.pipeline, err = ingestion.NewPipeline(e.chunks, e.states, extractor, e.embedderOrNil(), settings, pipelineOpts...)
	if err != nil {
		e.closeProvider()
		e.closeStorage()
		return nil, err
	}

	searchOpts := append([]search.Option{search.WithLogger(options.logger)}, options.searchOpts...)
	e.searcher, err = search.NewSearcher(e.chunks, store, searchOpts...)
	if err == nil {
		err = e.searcher.SetEmbedder(e.embedderOrNil(), modelTag)
	}
	if err != nil {
		e.Close()
		return nil, err
	}

	e.rebuilder, err = rebuild.NewRebuilder(store, e.pipeline, e.chunks, options.rebuildConfig, options.logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	e.graph, err = graph.NewBuilder(e.chunks, store, graph.WithLogger(options.logger))
	if err != nil {
		e.Close()
		return nil, err
	}
	e.graph.SetModelTag(modelTag)

	logger.Info("engine opened", "dir", dir, "enabled", e.config.Enabled, "model", modelTag)
	return e, nil
}

// checkModelTag discards the index when it was built by another model.
func (e *Engine) checkModelTag(ctx context.Context) error {
	meta, err := e.states.LoadIndexMeta(ctx)
	if err != nil {
		return err
	}
	tag := e.config.ModelTag()
	if meta.ModelTag == "" || meta.ModelTag == tag {
		return nil
	}
	e.logger.Warn("index was built with another model, discarding vectors",
		"indexed_model", meta.ModelTag, "model", tag)
	return e.resetIndex(ctx, tag)
}

// connect builds the guarded embedder for config. It returns nils when
// indexing is disabled or the provider cannot be built.
func (e *Engine) connect(config *ai.Config) (ai.AIProvider, *ai.Guard) {
	if !config.Enabled {
		return nil, nil
	}
	p, guard, err := e.buildEmbedder(config)
	if err != nil {
		e.logger.Warn("embedding provider unavailable", "provider", config.Provider, "err", err)
		return nil, nil
	}
	return p, guard
}

func (e *Engine) buildEmbedder(config *ai.Config) (ai.AIProvider, *ai.Guard, error) {
	if err := config.Validate(); err != nil {
		return nil, nil, err
	}
	p, err := e.newProvider(config)
	if err != nil {
		return nil, nil, err
	}
	opts := append([]ai.GuardOption{
		ai.WithCallTimeout(config.Timeout),
		ai.WithName(config.ModelTag()),
	}, e.guardOpts...)
	return p, ai.NewGuard(p.Embedder(), opts...), nil
}

// embedderOrNil avoids wrapping a nil *ai.Guard in a non-nil interface.
func (e *Engine) embedderOrNil() ai.Embedder {
	if e.embedder == nil {
		return nil
	}
	return e.embedder
}

// enabled returns ErrClosed or ErrDisabled when semantic operations cannot run.
func (e *Engine) enabled() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	if !e.config.Enabled {
		return ErrDisabled
	}
	return nil
}

func (e *Engine) open() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return ErrClosed
	}
	return nil
}

// Events subscribes to status, progress and failure notifications.
// Call the returned function to unsubscribe.
func (e *Engine) Events(buffer int) (<-chan ingestion.Event, func()) {
	return e.pipeline.Events().Subscribe(buffer)
}

// Failures delivers background indexing failures.
func (e *Engine) Failures() <-chan ingestion.Failure {
	return e.pipeline.Failures()
}

// Close indexes pending debounced saves, stops background work and closes
// the index.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	var errs []error
	if e.pipeline != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeFlushTimeout)
		if err := e.pipeline.Flush(ctx); err != nil && !errors.Is(err, ingestion.ErrNoEmbedder) {
			e.logger.Error("error indexing pending saves", "err", err)
		}
		cancel()
		e.pipeline.Release()
	}

	e.closeProvider()
	if err := e.closeStorage(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (e *Engine) closeProvider() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.provider == nil {
		return
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing embedding provider", "err", err)
	}
	e.provider = nil
	e.embedder = nil
}

func (e *Engine) closeStorage() error {
	if err := e.states.Close(); err != nil {
		e.logger.Error("error closing state repository", "err", err)
		return err
	}
	if err := e.chunks.Close(); err != nil {
		e.logger.Error("error closing chunk repository", "err", err)
		return err
	}

	// Close backend
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
