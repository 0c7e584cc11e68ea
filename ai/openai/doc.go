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


// Package openai provides an embedding provider for the hosted OpenAI API
// and OpenAI-compatible servers (LocalAI, vLLM, Ollama's /v1 endpoint).
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderOpenAI),
//	    ai.WithBaseURL("https://api.openai.com"), // /v1 added automatically
//	    ai.WithModel("text-embedding-3-small"),
//	    ai.WithAPIKey(key),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vector, err := provider.Embedder().EmbedText(ctx, "sample text")
//
// The API key is required for api.openai.com. Other servers receive a
// placeholder token.
//
// # Thread Safety
//
// The provider and its embedder are safe for concurrent use.
package openai
