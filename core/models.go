package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for indexed entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// SourceType identifies where indexed content came from.
type SourceType string

const (
	// SourceDocument is the body of a note.
	SourceDocument SourceType = "document"
	// SourceBookmark is a web page referenced by a bookmark block.
	SourceBookmark SourceType = "bookmark"
	// SourceFile is an attached file.
	SourceFile SourceType = "file"
	// SourceFolder is a linked folder of files.
	SourceFolder SourceType = "folder"
)

// SourceTypes lists every valid source type in reporting order.
var SourceTypes = []SourceType{SourceDocument, SourceBookmark, SourceFile, SourceFolder}

// IsExternal reports whether the source is an external block rather than a document body.
func (s SourceType) IsExternal() bool {
	return s == SourceBookmark || s == SourceFile || s == SourceFolder
}

// Chunk is a bounded window of source text together with its embedding.
//
// Identity is (DocID, BlockID, Index). Document-internal chunks have an
// empty BlockID; chunks of an external block carry the block id of the
// bookmark, file or folder inside the host document.
type Chunk struct {
	Id          ID
	DocID       string
	BlockID     string
	Index       int
	SourceType  SourceType
	SourceTitle string // page title or file name for external content
	BlockType   string // heading, paragraph, list, code... for document chunks
	Heading     string // nearest ancestor heading for document chunks
	Text        string
	Vector      []float32
	Model       string // model tag active when the vector was produced
	UpdatedAt   time.Time
}

// ChunkID returns the deterministic identifier for a chunk position.
func ChunkID(docID, blockID string, index int) ID {
	buf := make([]byte, 0, len(docID)+len(blockID)+10)
	buf = append(buf, docID...)
	buf = append(buf, 0)
	buf = append(buf, blockID...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint64(buf, uint64(index))
	return IDFromContent(string(buf))
}

// SourceKey identifies one indexed source: a document body or an external block.
type SourceKey struct {
	DocID   string
	BlockID string
}

// Key returns the source the chunk belongs to.
func (c *Chunk) Key() SourceKey {
	return SourceKey{DocID: c.DocID, BlockID: c.BlockID}
}

// String renders the key as "doc" or "doc#block".
func (k SourceKey) String() string {
	if k.BlockID == "" {
		return k.DocID
	}
	return k.DocID + "#" + k.BlockID
}

// ScoredChunk is a chunk returned from a similarity query.
type ScoredChunk struct {
	Chunk *Chunk
	Score float32
}

// DocumentSearchResult groups the chunk hits of one document.
// Chunks are ordered by descending score and MaxScore equals the first chunk's score.
type DocumentSearchResult struct {
	DocID      string
	Title      string
	SourceType SourceType
	MaxScore   float32
	Chunks     []ScoredChunk
}

// LexicalResult is a keyword search hit over document titles and bodies.
type LexicalResult struct {
	ID      string
	Title   string
	Snippet string
}

// ItemResult reports the outcome for one file inside a folder extraction.
type ItemResult struct {
	Path  string
	Title string
	Chars int
	Error string
}

// ExtractedContent is the plain text recovered from an external source.
// Error is set when extraction failed for this block; it never aborts a batch.
type ExtractedContent struct {
	Text     string
	Title    string
	Error    string
	Items    []ItemResult
	Indexed  bool
	Indexing bool
}

// BlockState tracks the indexing status of one external block.
type BlockState struct {
	DocID      string
	BlockID    string
	SourceType SourceType
	Locator    string
	Title      string
	Indexed    bool
	Indexing   bool
	IndexError string
	ChunkCount int
	UpdatedAt  time.Time
}

// IndexMeta is persisted index-wide bookkeeping.
type IndexMeta struct {
	ModelTag      string
	LastIndexTime time.Time
}

// IndexStats counts distinct indexed sources per type.
type IndexStats struct {
	Documents int
	Bookmarks int
	Files     int
	Folders   int
	Chunks    int
}

// Add counts one source of the given type.
func (s *IndexStats) Add(t SourceType) {
	switch t {
	case SourceDocument:
		s.Documents++
	case SourceBookmark:
		s.Bookmarks++
	case SourceFile:
		s.Files++
	case SourceFolder:
		s.Folders++
	}
}

// GraphEdgeKind says why two sources are connected.
type GraphEdgeKind string

const (
	EdgeSemantic GraphEdgeKind = "semantic"
	EdgeTag      GraphEdgeKind = "tag"
	EdgeBoth     GraphEdgeKind = "both"
)

// GraphNode is one indexed source in the relationship graph.
type GraphNode struct {
	ID      string
	DocID   string
	BlockID string
	Label   string
	Type    SourceType
	Value   int // chunk count
	Tags    []string
}

// GraphEdge connects two sources.
type GraphEdge struct {
	Source     string
	Target     string
	Similarity float32
	SharedTags []string
	Kind       GraphEdgeKind
}

// GraphData is the full relationship graph.
type GraphData struct {
	Nodes []GraphNode
	Edges []GraphEdge
}
