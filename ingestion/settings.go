package ingestion

import (
	"time"

	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/chunker"
)

// Settings are the indexing parameters derived from the embedding configuration.
type Settings struct {
	ModelTag      string
	MaxChunkSize  int
	ChunkOverlap  int
	BatchSize     int
	DebounceDelay time.Duration
}

// SettingsFromConfig derives Settings from an embedding configuration.
func SettingsFromConfig(cfg *ai.Config) Settings {
	return Settings{
		ModelTag:      cfg.ModelTag(),
		MaxChunkSize:  cfg.MaxChunkSize,
		ChunkOverlap:  cfg.ChunkOverlap,
		BatchSize:     cfg.BatchSize,
		DebounceDelay: cfg.DebounceDelay,
	}
}

// Validate checks the chunking parameters and fills defaults for the rest.
func (s *Settings) Validate() error {
	if err := chunker.Validate(s.MaxChunkSize, s.ChunkOverlap); err != nil {
		return err
	}
	if s.BatchSize <= 0 {
		s.BatchSize = ai.DefaultConfig().BatchSize
	}
	if s.DebounceDelay < 0 {
		s.DebounceDelay = 0
	}
	return nil
}
