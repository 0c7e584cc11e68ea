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


package ai

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider identifiers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// Environment variables that override the configuration file.
const (
	EnvEmbeddingURL = "NOTEVEC_EMBEDDING_URL"
	EnvAPIKey       = "NOTEVEC_API_KEY"
)

const openAIHost = "api.openai.com"

// Config holds the embedding configuration of the retrieval engine.
type Config struct {
	// Enabled turns semantic indexing and search on.
	Enabled bool `yaml:"enabled"`

	// Provider selects the embedding backend: "ollama" or "openai".
	Provider string `yaml:"provider"`

	// BaseURL is the root of the embedding service.
	// Example: "http://localhost:11434" for a local Ollama server,
	// "https://api.openai.com/v1" for the hosted OpenAI API.
	BaseURL string `yaml:"base_url"`

	// Model is the embedding model identifier.
	// Example: "nomic-embed-text", "text-embedding-3-small"
	Model string `yaml:"model"`

	// APIKey authenticates against hosted APIs. Optional for local servers.
	APIKey string `yaml:"api_key,omitempty"`

	// MaxChunkSize is the chunk window size in characters.
	// Default: 1000
	MaxChunkSize int `yaml:"max_chunk_size"`

	// ChunkOverlap is the number of characters shared by consecutive chunks.
	// Must be smaller than MaxChunkSize. Default: 200
	ChunkOverlap int `yaml:"chunk_overlap"`

	// BatchSize is the number of chunks sent per embedding request.
	// Default: 16
	BatchSize int `yaml:"batch_size"`

	// Timeout bounds every embedding request.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// DebounceDelay is the quiet period after a document save before it is reindexed.
	// Default: 3s
	DebounceDelay time.Duration `yaml:"debounce_delay"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEnabled turns indexing on or off.
func WithEnabled(enabled bool) ConfigOption {
	return func(c *Config) {
		c.Enabled = enabled
	}
}

// WithProvider sets the embedding provider.
func WithProvider(provider string) ConfigOption {
	return func(c *Config) {
		c.Provider = provider
	}
}

// WithBaseURL sets the embedding service URL.
func WithBaseURL(baseURL string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithModel sets the embedding model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithAPIKey sets the API key for hosted providers.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithChunking sets the chunk size and overlap.
func WithChunking(maxSize, overlap int) ConfigOption {
	return func(c *Config) {
		c.MaxChunkSize = maxSize
		c.ChunkOverlap = overlap
	}
}

// WithBatchSize sets the number of chunks per embedding request.
func WithBatchSize(n int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = n
	}
}

// WithTimeout sets the per-request embedding timeout.
func WithTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithDebounceDelay sets the reindex delay after a document save.
func WithDebounceDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.DebounceDelay = d
	}
}

// DefaultConfig returns a Config with sensible defaults for a local Ollama server.
func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		Provider:      ProviderOllama,
		BaseURL:       "http://localhost:11434",
		Model:         "nomic-embed-text",
		MaxChunkSize:  1000,
		ChunkOverlap:  200,
		BatchSize:     16,
		Timeout:       30 * time.Second,
		DebounceDelay: 3 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithProvider(ProviderOpenAI),
//	    WithBaseURL("https://api.openai.com"),
//	    WithModel("text-embedding-3-small"),
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// ModelTag identifies the vector space of the configuration.
// Vectors produced under different tags are not comparable.
func (c *Config) ModelTag() string {
	return strings.ToLower(c.Provider) + "/" + c.Model
}

// RequiresReindex reports whether switching from old to c invalidates existing vectors.
func (c *Config) RequiresReindex(old *Config) bool {
	return old == nil || old.ModelTag() != c.ModelTag()
}

// Normalize ensures the configuration is in a canonical form.
//
// The provider name is lowercased, an empty provider becomes "ollama",
// and unset sizes and durations take their defaults. OpenAI-compatible URLs
// gain the /v1 suffix required by the API. Ollama URLs lose it, because the
// native Ollama API is served from the root.
func (c *Config) Normalize() {
	defaults := DefaultConfig()

	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	if c.Provider == "" {
		c.Provider = defaults.Provider
	}
	c.Model = strings.TrimSpace(c.Model)
	c.BaseURL = strings.TrimSuffix(strings.TrimSpace(c.BaseURL), "/")

	switch c.Provider {
	case ProviderOpenAI:
		if c.BaseURL != "" && !strings.HasSuffix(c.BaseURL, "/v1") {
			c.BaseURL += "/v1"
		}
	case ProviderOllama:
		c.BaseURL = strings.TrimSuffix(c.BaseURL, "/v1")
	}

	if c.MaxChunkSize == 0 {
		c.MaxChunkSize = defaults.MaxChunkSize
	}
	if c.BatchSize == 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	if c.DebounceDelay == 0 {
		c.DebounceDelay = defaults.DebounceDelay
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration first. All invalid fields are reported,
// each as a *ValidationError wrapping ErrInvalidConfig.
func (c *Config) Validate() error {
	c.Normalize()

	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	switch c.Provider {
	case ProviderOllama, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("%w: %w: %q", ErrInvalidConfig, ErrUnknownProvider, c.Provider))
	}

	if c.BaseURL == "" {
		invalid("BaseURL", "is required")
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		invalid("BaseURL", "must be an absolute http(s) URL, got %q", c.BaseURL)
	} else if c.Provider == ProviderOpenAI && u.Hostname() == openAIHost && c.APIKey == "" {
		invalid("APIKey", "is required for %s", openAIHost)
	}

	if c.Model == "" {
		invalid("Model", "is required")
	}
	if c.MaxChunkSize < 0 {
		invalid("MaxChunkSize", "must be positive")
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.MaxChunkSize {
		invalid("ChunkOverlap", "must be between 0 and MaxChunkSize-1 (%d)", c.MaxChunkSize-1)
	}
	if c.BatchSize < 0 {
		invalid("BatchSize", "must be positive")
	}
	if c.Timeout < 0 {
		invalid("Timeout", "must be positive")
	}
	if c.DebounceDelay < 0 {
		invalid("DebounceDelay", "must not be negative")
	}
	return errors.Join(errs...)
}

// ApplyEnv overrides the base URL and API key from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvEmbeddingURL); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
}

// LoadConfig reads a YAML configuration file.
// A missing file yields DefaultConfig. Environment overrides are applied
// and the result is normalized but not validated.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	cfg.ApplyEnv()
	cfg.Normalize()
	return cfg, nil
}

// SaveConfig validates cfg and writes it as YAML. The file is replaced
// atomically and is readable only by the owner since it may hold an API key.
func SaveConfig(path string, cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
