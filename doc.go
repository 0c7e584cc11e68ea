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


// Package notevec is a local semantic retrieval engine for a note-taking
// application.
//
// An Engine indexes note bodies and the external content they reference
// (bookmarked web pages, attached files and linked folders) into a vector
// index stored next to its YAML configuration:
//
//	<dir>/config.yaml   embedding configuration
//	<dir>/index/        badger vector index
//
// The host application supplies its notes through core.DocumentStore and
// reports edits with DocumentSaved, DocumentDeleted and the Index*Content
// methods. Saves are debounced per document. Status changes and rebuild
// progress are delivered on Events.
//
// Example:
//
//	engine, err := notevec.Open(dataDir, store)
//	if err != nil {
//	    return err
//	}
//	defer engine.Close()
//
//	results, err := engine.SemanticSearchDocuments(ctx, "a fast fox", 10, "")
package notevec
