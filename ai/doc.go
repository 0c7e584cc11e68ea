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


// Package ai defines the embedding abstractions of notevec.
//
// An AIProvider is selected once from Config.Provider by the ai/provider
// package; ai/ollama talks to a local Ollama server and ai/openai to the
// hosted OpenAI API or any compatible server. Callers wrap the provider's
// Embedder in a Guard, which rejects empty input before any network call,
// bounds each call with a timeout, retries transient failures with
// exponential backoff and opens a circuit breaker when the provider keeps
// failing. QueryCache memoizes query embeddings for search.
//
// Config is persisted as YAML with LoadConfig and SaveConfig.
// NOTEVEC_EMBEDDING_URL and NOTEVEC_API_KEY override the file.
package ai
