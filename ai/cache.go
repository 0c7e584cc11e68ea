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
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultQueryCacheSize = 256

// QueryCache memoizes query embeddings. Entries are keyed by model tag
// and text so that a configuration change never serves a stale vector.
type QueryCache struct {
	embedder Embedder
	modelTag string
	cache    *lru.Cache[string, []float32]
}

// NewQueryCache creates a cache of up to size entries in front of embedder.
// A non-positive size uses the default of 256.
func NewQueryCache(embedder Embedder, modelTag string, size int) (*QueryCache, error) {
	if size <= 0 {
		size = defaultQueryCacheSize
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &QueryCache{
		embedder: embedder,
		modelTag: modelTag,
		cache:    cache,
	}, nil
}

// EmbedQuery returns the embedding of text, calling the embedder on a miss.
// Callers must not modify the returned vector.
func (c *QueryCache) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := c.modelTag + "\x00" + text
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, v)
	return v, nil
}

// Len returns the number of cached queries.
func (c *QueryCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached embedding.
func (c *QueryCache) Purge() {
	c.cache.Purge()
}
