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


// Package storage provides the storage abstraction layer for notevec.
//
// This package defines repository interfaces that decouple the vector index
// from business logic, along with the MUS encodings of the persisted records.
//
// # Architecture
//
//   - ChunkRepository: the vector index. Chunks are keyed by
//     (DocID, BlockID, Index) so that a whole document, a single external
//     block, or only the document body can be deleted independently.
//   - StateRepository: per-block indexing state, extracted block text and
//     index metadata (active model tag, last index time).
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/index", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//	chunks := badger.NewChunkRepository(backend)
//
// Use in tests with in-memory storage:
//
//	chunks, states, backend, err := badger.NewMemoryRepositories()
//
// # Thread Safety
//
// All repository implementations must be thread-safe. Queries may run
// while indexing jobs write.
//
// # Durability
//
// Every mutating call commits before returning. The badger backend syncs
// writes to disk, so a committed call survives a crash.
package storage
