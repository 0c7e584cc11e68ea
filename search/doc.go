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


// Package search provides semantic and lexical document search.
//
// Semantic search embeds the query, ranks chunks by cosine similarity and
// aggregates them per document:
//   - the top K chunks are fetched, K = max(limit × Multiplier, MinCandidates)
//   - chunks of an excluded document are dropped
//   - chunks are grouped by their host document, external block chunks included
//   - documents are ranked by their best chunk score and truncated to limit
//   - each document keeps its ChunksPerDocument best chunks, highest first
//
// Scores are raw cosine similarities in [-1, 1].
//
// Lexical search matches query words against document titles and bodies.
// The two result sets are independent and never merged.
package search
