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
	"context"
	"time"
)

// Document is a note as seen by the retrieval engine.
type Document struct {
	ID        string
	Title     string
	Text      string
	Tags      []string
	UpdatedAt time.Time
}

// ExternalBlock describes an editor block that references content outside
// the document body. Locator is a URL for bookmarks, a file path for files
// and a directory path for folders.
type ExternalBlock struct {
	DocID   string
	BlockID string
	Type    SourceType
	Locator string
	Title   string // display name, e.g. the attached file name
}

// Key returns the source key of the block.
func (b ExternalBlock) Key() SourceKey {
	return SourceKey{DocID: b.DocID, BlockID: b.BlockID}
}

// DocumentStore is the engine's view of the host application's document store.
// Implementations must be safe for concurrent use.
type DocumentStore interface {
	// ListDocuments returns every document, including its text and tags.
	ListDocuments(ctx context.Context) ([]Document, error)

	// GetDocument returns a single document.
	// Returns ErrDocumentNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*Document, error)

	// ListExternalBlocks returns every bookmark, file and folder block of every document.
	ListExternalBlocks(ctx context.Context) ([]ExternalBlock, error)
}
