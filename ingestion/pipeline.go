package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
)

// Extractor turns an external block's locator into text.
type Extractor interface {
	Extract(ctx context.Context, kind core.SourceType, locator string) (core.ExtractedContent, error)
}

// Failure reports a background indexing job that failed.
type Failure struct {
	TaskID  string
	DocID   string
	BlockID string
	Err     error
}

// Pipeline orchestrates the indexing of documents and external blocks.
type Pipeline struct {
	chunks    storage.ChunkRepository
	states    storage.StateRepository
	extractor Extractor

	// cfgMu guards embedder, settings and generation. generation changes
	// whenever the model tag does, invalidating jobs started before.
	cfgMu      sync.RWMutex
	embedder   ai.Embedder
	settings   Settings
	generation uint64

	pool        *ants.Pool
	poolSize    int
	maxPending  int
	taskTimeout time.Duration
	queue       chan task
	dispatched  chan struct{}

	locks *keyedMutex

	// mu guards pending, running, epochs and released.
	mu       sync.Mutex
	pending  map[string]*pendingSave
	running  map[string]context.CancelFunc
	epochs   map[core.SourceKey]uint64
	released bool
	wg       sync.WaitGroup

	metaMu   sync.Mutex
	events   *Broadcaster
	failures chan Failure
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the number of workers serving submitted external blocks.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		p.poolSize = size
		return nil
	}
}

// WithMaxPendingTasks bounds the number of submitted blocks waiting for a worker.
// Default is 256.
func WithMaxPendingTasks(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			n = 1
		}
		p.maxPending = n
		return nil
	}
}

// WithTaskTimeout bounds each submitted external block job.
// Default is 5 minutes.
func WithTaskTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		p.taskTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline. The embedder may be nil while indexing is
// disabled; indexing operations then fail with ErrNoEmbedder.
func NewPipeline(
	chunks storage.ChunkRepository,
	states storage.StateRepository,
	extractor Extractor,
	embedder ai.Embedder,
	settings Settings,
	opts ...Option,
) (*Pipeline, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if states == nil {
		return nil, ErrStateRepositoryRequired
	}
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	p := &Pipeline{
		chunks:      chunks,
		states:      states,
		extractor:   extractor,
		embedder:    embedder,
		settings:    settings,
		poolSize:    poolSize,
		maxPending:  256,
		taskTimeout: 5 * time.Minute,
		locks:       newKeyedMutex(),
		pending:     make(map[string]*pendingSave),
		running:     make(map[string]context.CancelFunc),
		epochs:      make(map[core.SourceKey]uint64),
		failures:    make(chan Failure, 64),
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion")
	p.events = NewBroadcaster(p.logger)

	pool, err := ants.NewPool(p.poolSize, ants.WithPanicHandler(func(v any) {
		p.logger.Error("indexing task panicked", "panic", v)
	}))
	if err != nil {
		return nil, err
	}
	p.pool = pool
	p.queue = make(chan task, p.maxPending)
	p.dispatched = make(chan struct{})
	go p.dispatch()

	return p, nil
}

// Configure swaps the embedder and settings used by subsequent jobs.
// Jobs already running finish with the previous embedder, unless the model
// tag changed: their results are then discarded.
func (p *Pipeline) Configure(embedder ai.Embedder, settings Settings) error {
	return p.Reconfigure(context.Background(), embedder, settings, nil)
}

// Reconfigure is Configure with an index reset. When reset is not nil it runs
// after running jobs are invalidated and before any job can start with the
// new embedder, so the index holds no chunks of the previous model once
// Reconfigure returns.
func (p *Pipeline) Reconfigure(ctx context.Context, embedder ai.Embedder, settings Settings, reset func(context.Context) error) error {
	if err := settings.Validate(); err != nil {
		return err
	}
	p.cfgMu.Lock()
	defer p.cfgMu.Unlock()

	if reset != nil || settings.ModelTag != p.settings.ModelTag {
		p.generation++
		p.cancelAll()
	}
	if reset != nil {
		if err := reset(ctx); err != nil {
			return err
		}
	}
	p.embedder = embedder
	p.settings = settings
	return nil
}

// Settings returns the active indexing settings.
func (p *Pipeline) Settings() Settings {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.settings
}

func (p *Pipeline) snapshot() (ai.Embedder, Settings, uint64, error) {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	if p.embedder == nil {
		return nil, p.settings, p.generation, ErrNoEmbedder
	}
	return p.embedder, p.settings, p.generation, nil
}

func (p *Pipeline) currentGeneration() uint64 {
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()
	return p.generation
}

// Events returns the broadcaster for status and progress notifications.
func (p *Pipeline) Events() *Broadcaster {
	return p.events
}

// Failures delivers background job failures. The channel is buffered and a
// failure is dropped, after being logged, when nobody drains it.
func (p *Pipeline) Failures() <-chan Failure {
	return p.failures
}

func (p *Pipeline) reportFailure(f Failure) {
	p.logger.Error("background indexing failed",
		"task", f.TaskID, "doc", f.DocID, "block", f.BlockID, "err", f.Err)
	p.events.Publish(Event{
		Type:    EventIndexFailed,
		DocID:   f.DocID,
		BlockID: f.BlockID,
		Error:   f.Err.Error(),
	})
	select {
	case p.failures <- f:
	default:
		p.logger.Warn("failure channel full, dropping failure", "task", f.TaskID)
	}
}

func (p *Pipeline) statusChanged(docID, blockID string) {
	p.events.Publish(Event{Type: EventStatusChanged, DocID: docID, BlockID: blockID})
}

func (p *Pipeline) bumpEpoch(key core.SourceKey) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.epochs[key]++
}

// stamp captures the epochs a job must still match when it commits.
type stamp struct {
	doc   uint64
	block uint64
}

func (p *Pipeline) stampFor(docID, blockID string) stamp {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := stamp{doc: p.epochs[core.SourceKey{DocID: docID}]}
	if blockID != "" {
		s.block = p.epochs[core.SourceKey{DocID: docID, BlockID: blockID}]
	}
	return s
}

// saveStateIfCurrent saves state unless its block or document was removed
// since s was taken. A removal cannot interleave with the save.
func (p *Pipeline) saveStateIfCurrent(ctx context.Context, state *core.BlockState, s stamp) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	current := stamp{
		doc:   p.epochs[core.SourceKey{DocID: state.DocID}],
		block: p.epochs[core.SourceKey{DocID: state.DocID, BlockID: state.BlockID}],
	}
	if current != s {
		return ErrSuperseded
	}
	return p.states.SaveBlockState(ctx, state)
}

func (p *Pipeline) stale(docID, blockID string, s stamp) bool {
	return p.stampFor(docID, blockID) != s
}

// superseded reports whether a job must discard its result: its source was
// deleted or the model changed since the job took its embedder.
func (p *Pipeline) superseded(docID, blockID string, s stamp, gen uint64) bool {
	return p.stale(docID, blockID, s) || p.currentGeneration() != gen
}

// beginJob registers a cancellable context for the document's running job.
// Callers hold the document lock.
func (p *Pipeline) beginJob(ctx context.Context, docID string) (context.Context, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, nil, ErrReleased
	}
	jobCtx, cancel := context.WithCancel(ctx)
	p.running[docID] = cancel
	return jobCtx, func() {
		cancel()
		p.mu.Lock()
		delete(p.running, docID)
		p.mu.Unlock()
	}, nil
}

func (p *Pipeline) cancelRunning(docID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cancel, ok := p.running[docID]; ok {
		cancel()
	}
}

func (p *Pipeline) cancelAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, cancel := range p.running {
		cancel()
	}
}

// touchIndexTime records the time of the last successful index mutation made
// with the given model. Nothing is recorded once the model changed.
func (p *Pipeline) touchIndexTime(ctx context.Context, tag string, gen uint64) {
	p.metaMu.Lock()
	defer p.metaMu.Unlock()
	p.cfgMu.RLock()
	defer p.cfgMu.RUnlock()

	if p.generation != gen {
		return
	}
	meta, err := p.states.LoadIndexMeta(ctx)
	if err != nil {
		p.logger.Warn("error loading index metadata", "err", err)
		return
	}
	meta.LastIndexTime = time.Now().UTC()
	if tag != "" {
		meta.ModelTag = tag
	}
	if err := p.states.SaveIndexMeta(ctx, meta); err != nil {
		p.logger.Warn("error saving index metadata", "err", err)
	}
}

// Release stops pending timers, waits for running jobs and releases the
// worker pool. Pending debounced saves are dropped; call Flush first to
// index them. The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return
	}
	p.released = true
	for id, save := range p.pending {
		save.timer.Stop()
		delete(p.pending, id)
	}
	p.mu.Unlock()

	close(p.queue)
	<-p.dispatched
	p.wg.Wait()
	if err := p.pool.ReleaseTimeout(10 * time.Second); err != nil && !errors.Is(err, ants.ErrPoolClosed) {
		p.logger.Warn("worker pool did not stop in time", "err", err)
	}
	p.events.Close()
}
