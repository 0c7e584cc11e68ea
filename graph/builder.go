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


package graph

import (
	"context"
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/poiesic/notevec/core"
	"github.com/poiesic/notevec/storage"
)

// Builder computes relationship graphs from the vector index.
type Builder struct {
	chunks storage.ChunkRepository
	store  core.DocumentStore
	logger *slog.Logger

	mu       sync.RWMutex
	modelTag string
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder creates a graph builder.
func NewBuilder(chunks storage.ChunkRepository, store core.DocumentStore, opts ...Option) (*Builder, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if store == nil {
		return nil, ErrDocumentStoreRequired
	}
	b := &Builder{
		chunks: chunks,
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "graph")
	return b, nil
}

// SetModelTag restricts the graph to chunks embedded under tag.
// An empty tag accepts every chunk.
func (b *Builder) SetModelTag(tag string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.modelTag = tag
}

type source struct {
	key     core.SourceKey
	kind    core.SourceType
	title   string
	count   int
	vectors [][]float32
	mean    []float32
}

// BuildGraph returns a node per indexed source and an edge per pair whose
// similarity reaches threshold or whose documents share tags.
func (b *Builder) BuildGraph(ctx context.Context, threshold float32) (*core.GraphData, error) {
	if threshold < 0 || threshold > 1 {
		return nil, ErrInvalidThreshold
	}

	b.mu.RLock()
	modelTag := b.modelTag
	b.mu.RUnlock()

	sources := make(map[core.SourceKey]*source)
	err := b.chunks.ForEachChunk(ctx, func(chunk *core.Chunk) error {
		if modelTag != "" && chunk.Model != modelTag {
			return nil
		}
		key := chunk.Key()
		src, ok := sources[key]
		if !ok {
			src = &source{key: key, kind: chunk.SourceType, title: chunk.SourceTitle}
			sources[key] = src
		}
		src.count++
		src.vectors = append(src.vectors, chunk.Vector)
		return nil
	})
	if err != nil {
		b.logger.Error("error reading index", "err", err)
		return nil, err
	}

	docs, err := b.store.ListDocuments(ctx)
	if err != nil {
		b.logger.Error("error listing documents", "err", err)
		return nil, err
	}
	byID := make(map[string]*core.Document, len(docs))
	for i := range docs {
		byID[docs[i].ID] = &docs[i]
	}

	ordered := make([]*source, 0, len(sources))
	for _, src := range sources {
		src.mean = core.MeanVector(src.vectors)
		src.vectors = nil
		ordered = append(ordered, src)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].key.String() < ordered[j].key.String()
	})

	graph := &core.GraphData{
		Nodes: make([]core.GraphNode, 0, len(ordered)),
		Edges: []core.GraphEdge{},
	}
	tags := make([][]string, len(ordered))
	for i, src := range ordered {
		doc := byID[src.key.DocID]
		if doc != nil {
			tags[i] = normalizeTags(doc.Tags)
		}
		graph.Nodes = append(graph.Nodes, core.GraphNode{
			ID:      src.key.String(),
			DocID:   src.key.DocID,
			BlockID: src.key.BlockID,
			Label:   label(src, doc),
			Type:    src.kind,
			Value:   src.count,
			Tags:    tags[i],
		})
	}

	for i := 0; i < len(ordered); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := i + 1; j < len(ordered); j++ {
			a, c := ordered[i], ordered[j]
			similarity := core.DotProduct(a.mean, c.mean)
			if len(a.mean) != len(c.mean) {
				similarity = 0
			}

			var shared []string
			if a.key.DocID != c.key.DocID {
				shared = intersect(tags[i], tags[j])
			}

			semantic := similarity >= threshold && len(a.mean) > 0
			if !semantic && len(shared) == 0 {
				continue
			}
			kind := core.EdgeSemantic
			switch {
			case semantic && len(shared) > 0:
				kind = core.EdgeBoth
			case !semantic:
				kind = core.EdgeTag
			}
			graph.Edges = append(graph.Edges, core.GraphEdge{
				Source:     a.key.String(),
				Target:     c.key.String(),
				Similarity: similarity,
				SharedTags: shared,
				Kind:       kind,
			})
		}
	}

	b.logger.Debug("graph built", "nodes", len(graph.Nodes), "edges", len(graph.Edges), "threshold", threshold)
	return graph, nil
}

func label(src *source, doc *core.Document) string {
	if src.key.BlockID == "" && doc != nil && doc.Title != "" {
		return doc.Title
	}
	if src.title != "" {
		return src.title
	}
	if src.key.BlockID != "" {
		return src.key.BlockID
	}
	return src.key.DocID
}

// normalizeTags returns the sorted distinct tags.
func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := slices.Clone(tags)
	slices.Sort(out)
	return slices.Compact(out)
}

// intersect returns the common elements of two sorted slices.
func intersect(a, b []string) []string {
	var out []string
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			out = append(out, a[i])
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return out
}
