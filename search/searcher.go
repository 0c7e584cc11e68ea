package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
)

// Default ranking parameters.
const (
	DefaultMultiplier        = 5
	DefaultMinCandidates     = 20
	DefaultChunksPerDocument = 3
	DefaultCacheSize         = 256
)

// Searcher provides semantic and lexical search over indexed documents.
type Searcher struct {
	chunks storage.ChunkRepository
	store  core.DocumentStore

	mu    sync.RWMutex
	cache *ai.QueryCache

	multiplier        int
	minCandidates     int
	chunksPerDocument int
	minScore          float32
	cacheSize         int
	logger            *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMultiplier sets how many candidate chunks are fetched per requested document.
func WithMultiplier(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return ErrInvalidLimit
		}
		s.multiplier = n
		return nil
	}
}

// WithMinCandidates sets the lower bound of candidate chunks fetched per query.
func WithMinCandidates(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return ErrInvalidLimit
		}
		s.minCandidates = n
		return nil
	}
}

// WithChunksPerDocument sets how many chunks each document result keeps.
func WithChunksPerDocument(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return ErrInvalidLimit
		}
		s.chunksPerDocument = n
		return nil
	}
}

// WithMinScore drops chunks scoring below min. The default keeps every chunk.
func WithMinScore(min float32) Option {
	return func(s *Searcher) error {
		s.minScore = min
		return nil
	}
}

// WithCacheSize sets the number of query embeddings kept in memory.
func WithCacheSize(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return ErrInvalidLimit
		}
		s.cacheSize = n
		return nil
	}
}

// NewSearcher creates a new searcher. Semantic search is unavailable until
// SetEmbedder is called.
func NewSearcher(chunks storage.ChunkRepository, store core.DocumentStore, opts ...Option) (*Searcher, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if store == nil {
		return nil, ErrDocumentStoreRequired
	}

	s := &Searcher{
		chunks:            chunks,
		store:             store,
		multiplier:        DefaultMultiplier,
		minCandidates:     DefaultMinCandidates,
		chunksPerDocument: DefaultChunksPerDocument,
		minScore:          -1,
		cacheSize:         DefaultCacheSize,
		logger:            slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// SetEmbedder switches the embedder used for queries. Cached query vectors
// of the previous embedder are discarded. A nil embedder disables semantic search.
func (s *Searcher) SetEmbedder(embedder ai.Embedder, modelTag string) error {
	var cache *ai.QueryCache
	if embedder != nil {
		var err error
		cache, err = ai.NewQueryCache(embedder, modelTag, s.cacheSize)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cache != nil {
		s.cache.Purge()
	}
	s.cache = cache
	return nil
}

func (s *Searcher) queryCache() *ai.QueryCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cache
}

// SemanticSearchDocuments returns up to limit documents whose chunks are
// most similar to query. Chunks of excludeDocID are ignored.
func (s *Searcher) SemanticSearchDocuments(ctx context.Context, query string, limit int, excludeDocID string) ([]core.DocumentSearchResult, error) {
	return s.SemanticSearchWithMonitor(ctx, query, limit, excludeDocID, nil)
}

// SemanticSearchWithMonitor is SemanticSearchDocuments with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SemanticSearchWithMonitor(ctx context.Context, query string, limit int, excludeDocID string, monitor SearchMonitor) ([]core.DocumentSearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	cache := s.queryCache()
	if cache == nil {
		return nil, ErrNoEmbedder
	}

	monitor.Start(query)

	// 1. Embed the query
	vector, err := cache.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(vector)

	// 2. Fetch candidates
	k := max(limit*s.multiplier, s.minCandidates)
	hits, err := s.chunks.Query(ctx, vector, k)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterVectorQuery(hits)

	// 3. Group by host document
	groups := make(map[string]*core.DocumentSearchResult)
	var order []string
	for _, hit := range hits {
		if hit.Chunk.DocID == excludeDocID || hit.Score < s.minScore {
			monitor.Excluded(hit.Chunk)
			continue
		}
		group, ok := groups[hit.Chunk.DocID]
		if !ok {
			group = &core.DocumentSearchResult{
				DocID:      hit.Chunk.DocID,
				SourceType: hit.Chunk.SourceType,
				MaxScore:   hit.Score,
			}
			groups[hit.Chunk.DocID] = group
			order = append(order, hit.Chunk.DocID)
		}
		if hit.Score > group.MaxScore {
			group.MaxScore = hit.Score
		}
		if hit.Chunk.SourceType == core.SourceDocument {
			group.SourceType = core.SourceDocument
		}
		group.Chunks = append(group.Chunks, hit)
	}
	monitor.AfterGrouping(len(groups))

	// 4. Rank documents by their best chunk
	results := make([]core.DocumentSearchResult, 0, len(groups))
	for _, id := range order {
		results = append(results, *groups[id])
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].MaxScore > results[j].MaxScore
	})
	if len(results) > limit {
		results = results[:limit]
	}

	for i := range results {
		result := &results[i]
		sort.SliceStable(result.Chunks, func(a, b int) bool {
			return result.Chunks[a].Score > result.Chunks[b].Score
		})
		if len(result.Chunks) > s.chunksPerDocument {
			result.Chunks = result.Chunks[:s.chunksPerDocument]
		}
		result.Title = s.title(ctx, result)
	}
	monitor.Finish(results)

	return results, nil
}

// title resolves a result title from the document store. Hits on documents
// the store no longer knows fall back to the best chunk's source title.
func (s *Searcher) title(ctx context.Context, result *core.DocumentSearchResult) string {
	doc, err := s.store.GetDocument(ctx, result.DocID)
	if err == nil && doc != nil && doc.Title != "" {
		return doc.Title
	}
	if err != nil && !errors.Is(err, core.ErrDocumentNotFound) {
		s.logger.Warn("error looking up document title", "docID", result.DocID, "err", err)
	}
	for _, hit := range result.Chunks {
		if hit.Chunk.SourceTitle != "" {
			return hit.Chunk.SourceTitle
		}
	}
	return result.DocID
}

// SearchDocuments returns documents whose title or body contains every
// query word. Title matches rank first. A limit of zero returns all matches.
func (s *Searcher) SearchDocuments(ctx context.Context, query string, limit int) ([]core.LexicalResult, error) {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}
	if limit < 0 {
		return nil, ErrInvalidLimit
	}

	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		s.logger.Error("error listing documents", "err", err)
		return nil, err
	}

	type match struct {
		doc         core.Document
		titleHits   int
		occurrences int
	}
	var matches []match
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		title := strings.ToLower(doc.Title)
		body := strings.ToLower(doc.Text)

		m := match{doc: doc}
		found := true
		for _, term := range terms {
			inTitle := strings.Contains(title, term)
			count := strings.Count(body, term)
			if !inTitle && count == 0 {
				found = false
				break
			}
			if inTitle {
				m.titleHits++
			}
			m.occurrences += count
		}
		if found {
			matches = append(matches, m)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.titleHits != b.titleHits {
			return a.titleHits > b.titleHits
		}
		if a.occurrences != b.occurrences {
			return a.occurrences > b.occurrences
		}
		return strings.ToLower(a.doc.Title) < strings.ToLower(b.doc.Title)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	results := make([]core.LexicalResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, core.LexicalResult{
			ID:      m.doc.ID,
			Title:   m.doc.Title,
			Snippet: snippet(m.doc.Text, terms),
		})
	}
	return results, nil
}
