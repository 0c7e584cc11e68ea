package badger

import (
	"encoding/binary"

	"github.com/poiesic/notevec/core"
)

// Key prefixes for different data types
const (
	chunkPrefix        = "chunk:"
	blockStatePrefix   = "bstate:"
	blockContentPrefix = "bcontent:"
	indexMetaKey       = "meta:index"
)

// Source components are hashed so that arbitrary ids have a fixed width and
// a document prefix never matches another document's keys.
func appendSourceHash(buf []byte, value string) []byte {
	return binary.BigEndian.AppendUint64(buf, uint64(core.IDFromContent(value)))
}

// makeDocumentPrefix covers every chunk of a document, body and blocks.
// Format: prefix:hash(docID)
func makeDocumentPrefix(prefix, docID string) []byte {
	buf := make([]byte, 0, len(prefix)+8)
	buf = append(buf, prefix...)
	return appendSourceHash(buf, docID)
}

// makeSourcePrefix covers the chunks of one source.
// Format: prefix:hash(docID):hash(blockID)
func makeSourcePrefix(prefix, docID, blockID string) []byte {
	buf := make([]byte, 0, len(prefix)+16)
	buf = append(buf, prefix...)
	buf = appendSourceHash(buf, docID)
	return appendSourceHash(buf, blockID)
}

// makeChunkKey generates the key of one chunk.
// Format: chunk:hash(docID):hash(blockID):index
// The index is big-endian so chunks of a source iterate in order.
func makeChunkKey(docID, blockID string, index int) []byte {
	buf := makeSourcePrefix(chunkPrefix, docID, blockID)
	return binary.BigEndian.AppendUint64(buf, uint64(index))
}

func makeBlockStateKey(docID, blockID string) []byte {
	return makeSourcePrefix(blockStatePrefix, docID, blockID)
}

func makeBlockContentKey(docID, blockID string) []byte {
	return makeSourcePrefix(blockContentPrefix, docID, blockID)
}
