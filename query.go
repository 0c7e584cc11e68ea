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

	"github.com/poiesic/notevec/core"
)

// SemanticSearchDocuments returns up to limit documents ranked by the
// similarity of their best chunk to query. Scores are cosine similarities.
// Chunks of excludeDocID never appear in the results.
func (e *Engine) SemanticSearchDocuments(ctx context.Context, query string, limit int, excludeDocID string) ([]core.DocumentSearchResult, error) {
	if err := e.enabled(); err != nil {
		return nil, err
	}
	return e.searcher.SemanticSearchDocuments(ctx, query, limit, excludeDocID)
}

// SearchDocuments is the lexical search over document titles and text. It
// needs no embeddings and works while indexing is disabled. A limit of zero
// returns every match.
func (e *Engine) SearchDocuments(ctx context.Context, query string, limit int) ([]core.LexicalResult, error) {
	if err := e.open(); err != nil {
		return nil, err
	}
	return e.searcher.SearchDocuments(ctx, query, limit)
}

// GetDocumentGraph returns the relationship graph of indexed sources. Pairs
// whose similarity reaches threshold, or whose documents share a tag, are
// connected.
func (e *Engine) GetDocumentGraph(ctx context.Context, threshold float32) (*core.GraphData, error) {
	if err := e.enabled(); err != nil {
		return nil, err
	}
	return e.graph.BuildGraph(ctx, threshold)
}
