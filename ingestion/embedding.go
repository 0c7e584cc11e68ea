package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/chunker"
	"github.com/poiesic/notevec/core"
)

// source describes what a set of chunks belongs to.
type source struct {
	docID   string
	blockID string
	kind    core.SourceType
	title   string
}

// buildChunks splits text and embeds every section in batches of
// settings.BatchSize. An empty text yields no chunks.
func buildChunks(ctx context.Context, embedder ai.Embedder, settings Settings, src source, text string) ([]*core.Chunk, error) {
	sections, err := chunker.SplitSections(text, settings.MaxChunkSize, settings.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	if len(sections) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(sections))
	kept := sections[:0]
	for _, section := range sections {
		// Windows that are all whitespace carry nothing worth embedding.
		if strings.TrimSpace(section.Text) == "" {
			continue
		}
		texts = append(texts, section.Text)
		kept = append(kept, section)
	}

	vectors, err := embedBatches(ctx, embedder, texts, settings.BatchSize)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	chunks := make([]*core.Chunk, len(kept))
	for i, section := range kept {
		chunk := &core.Chunk{
			DocID:       src.docID,
			BlockID:     src.blockID,
			Index:       i,
			SourceType:  src.kind,
			SourceTitle: src.title,
			Text:        section.Text,
			Vector:      vectors[i],
			Model:       settings.ModelTag,
			UpdatedAt:   now,
		}
		if src.kind == core.SourceDocument {
			chunk.Heading = section.Heading
			chunk.BlockType = section.BlockType
		}
		chunks[i] = chunk
	}
	return chunks, nil
}

// embedBatches embeds texts batchSize at a time, preserving order.
func embedBatches(ctx context.Context, embedder ai.Embedder, texts []string, batchSize int) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+batchSize, len(texts))
		batch, err := embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("%w: embedding result mismatch. expected %d, received %d",
				ErrEmbeddingFailed, end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
