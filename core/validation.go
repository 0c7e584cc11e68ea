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

import (
	"fmt"
)

// ValidateChunk validates a Chunk before it is written to the index.
//
// Validation rules:
//   - DocID must not be empty
//   - SourceType must be valid
//   - external chunks must carry a BlockID, document chunks must not
//   - Text and Vector must not be empty
func ValidateChunk(chunk *Chunk) error {
	if chunk == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if chunk.DocID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyDocID)
	}
	if err := ValidateSourceType(chunk.SourceType); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, err)
	}
	if chunk.SourceType.IsExternal() && chunk.BlockID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyBlockID)
	}
	if !chunk.SourceType.IsExternal() && chunk.BlockID != "" {
		return fmt.Errorf("%w: document chunk has block id %q", ErrInvalidChunk, chunk.BlockID)
	}
	if chunk.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, chunk.Index)
	}
	if chunk.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyContent)
	}
	if len(chunk.Vector) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidChunk, ErrEmptyVector)
	}
	return nil
}

// ValidateExternalBlock validates a block descriptor received from the editor.
func ValidateExternalBlock(block *ExternalBlock) error {
	if block == nil {
		return fmt.Errorf("%w: block is nil", ErrInvalidBlock)
	}
	if block.DocID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, ErrEmptyDocID)
	}
	if block.BlockID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, ErrEmptyBlockID)
	}
	if !block.Type.IsExternal() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidBlock, ErrInvalidSourceType, block.Type)
	}
	if block.Locator == "" {
		return fmt.Errorf("%w: %w", ErrInvalidBlock, ErrEmptyLocator)
	}
	return nil
}

// ValidateDocument validates a document handed to the indexer.
// Empty text is valid: it clears the document's chunks.
func ValidateDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}
	if doc.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyDocID)
	}
	return nil
}

// ValidateSourceType validates that a SourceType has a known value.
func ValidateSourceType(t SourceType) error {
	for _, known := range SourceTypes {
		if t == known {
			return nil
		}
	}
	return fmt.Errorf("%w: value %q", ErrInvalidSourceType, t)
}
