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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidChunk indicates a Chunk failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidBlock indicates an ExternalBlock failed validation.
	ErrInvalidBlock = errors.New("invalid external block")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrEmptyDocID indicates the source document id is empty.
	ErrEmptyDocID = errors.New("document id cannot be empty")

	// ErrEmptyBlockID indicates an external block has no block id.
	ErrEmptyBlockID = errors.New("block id cannot be empty")

	// ErrEmptyLocator indicates an external block has no URL or path.
	ErrEmptyLocator = errors.New("locator cannot be empty")

	// ErrEmptyContent indicates the chunk text is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyVector indicates a chunk has no embedding.
	ErrEmptyVector = errors.New("vector cannot be empty")

	// ErrInvalidSourceType indicates an unknown SourceType value.
	ErrInvalidSourceType = errors.New("invalid source type")

	// ErrDocumentNotFound is returned by DocumentStore implementations for unknown ids.
	ErrDocumentNotFound = errors.New("document not found")
)
