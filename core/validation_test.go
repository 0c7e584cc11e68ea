package core

import (
	"errors"
	"testing"
)

func TestValidateChunk(t *testing.T) {
	valid := func() *Chunk {
		return &Chunk{
			DocID:      "doc-1",
			SourceType: SourceDocument,
			Text:       "hello",
			Vector:     []float32{1, 0},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Chunk) *Chunk
		wantErr error
	}{
		{
			name:    "valid document chunk",
			mutate:  func(c *Chunk) *Chunk { return c },
			wantErr: nil,
		},
		{
			name: "valid file chunk",
			mutate: func(c *Chunk) *Chunk {
				c.SourceType = SourceFile
				c.BlockID = "blk"
				return c
			},
			wantErr: nil,
		},
		{
			name:    "nil chunk",
			mutate:  func(c *Chunk) *Chunk { return nil },
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "empty doc id",
			mutate:  func(c *Chunk) *Chunk { c.DocID = ""; return c },
			wantErr: ErrEmptyDocID,
		},
		{
			name:    "unknown source type",
			mutate:  func(c *Chunk) *Chunk { c.SourceType = "video"; return c },
			wantErr: ErrInvalidSourceType,
		},
		{
			name:    "external chunk without block id",
			mutate:  func(c *Chunk) *Chunk { c.SourceType = SourceBookmark; return c },
			wantErr: ErrEmptyBlockID,
		},
		{
			name:    "document chunk with block id",
			mutate:  func(c *Chunk) *Chunk { c.BlockID = "blk"; return c },
			wantErr: ErrInvalidChunk,
		},
		{
			name:    "empty text",
			mutate:  func(c *Chunk) *Chunk { c.Text = ""; return c },
			wantErr: ErrEmptyContent,
		},
		{
			name:    "empty vector",
			mutate:  func(c *Chunk) *Chunk { c.Vector = nil; return c },
			wantErr: ErrEmptyVector,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateChunk(tt.mutate(valid()))
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateChunk() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateChunk() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateExternalBlock(t *testing.T) {
	tests := []struct {
		name    string
		block   *ExternalBlock
		wantErr error
	}{
		{
			name:  "valid bookmark",
			block: &ExternalBlock{DocID: "d", BlockID: "b", Type: SourceBookmark, Locator: "https://example.com"},
		},
		{
			name:    "nil block",
			block:   nil,
			wantErr: ErrInvalidBlock,
		},
		{
			name:    "missing doc id",
			block:   &ExternalBlock{BlockID: "b", Type: SourceFile, Locator: "/tmp/x"},
			wantErr: ErrEmptyDocID,
		},
		{
			name:    "missing block id",
			block:   &ExternalBlock{DocID: "d", Type: SourceFile, Locator: "/tmp/x"},
			wantErr: ErrEmptyBlockID,
		},
		{
			name:    "document type is not external",
			block:   &ExternalBlock{DocID: "d", BlockID: "b", Type: SourceDocument, Locator: "/tmp/x"},
			wantErr: ErrInvalidSourceType,
		},
		{
			name:    "missing locator",
			block:   &ExternalBlock{DocID: "d", BlockID: "b", Type: SourceFolder},
			wantErr: ErrEmptyLocator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExternalBlock(tt.block)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("ValidateExternalBlock() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateExternalBlock() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDocument(t *testing.T) {
	if err := ValidateDocument(&Document{ID: "d"}); err != nil {
		t.Errorf("ValidateDocument() unexpected error = %v", err)
	}
	if err := ValidateDocument(&Document{}); !errors.Is(err, ErrEmptyDocID) {
		t.Errorf("ValidateDocument() error = %v, want %v", err, ErrEmptyDocID)
	}
	if err := ValidateDocument(nil); !errors.Is(err, ErrInvalidDocument) {
		t.Errorf("ValidateDocument() error = %v, want %v", err, ErrInvalidDocument)
	}
}
