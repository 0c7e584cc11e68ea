package search

import (
	"github.com/poiesic/notevec/core"
)

// SearchMonitor provides hooks to observe the semantic search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterQueryEmbedding(vector []float32)
	AfterVectorQuery(hits []core.ScoredChunk)
	Excluded(chunk *core.Chunk)
	AfterGrouping(documents int)
	Finish(results []core.DocumentSearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                        {}
func (n *noopMonitor) AfterQueryEmbedding(_ []float32)       {}
func (n *noopMonitor) AfterVectorQuery(_ []core.ScoredChunk) {}
func (n *noopMonitor) Excluded(_ *core.Chunk)                {}
func (n *noopMonitor) AfterGrouping(_ int)                   {}
func (n *noopMonitor) Finish(_ []core.DocumentSearchResult)  {}
