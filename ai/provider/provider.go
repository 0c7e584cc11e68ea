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


// Package provider selects the embedding provider named by ai.Config.
package provider

import (
	"fmt"

	"github.com/poiesic/notevec/ai"
	"github.com/poiesic/notevec/ai/ollama"
	"github.com/poiesic/notevec/ai/openai"
)

// Constructor builds a provider from a validated configuration.
type Constructor func(config *ai.Config) (ai.AIProvider, error)

var constructors = map[string]Constructor{
	ai.ProviderOllama: ollama.NewProvider,
	ai.ProviderOpenAI: openai.NewProvider,
}

// New validates config and returns the provider it names.
func New(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	construct, ok := constructors[config.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ai.ErrUnknownProvider, config.Provider)
	}
	return construct(config)
}

// Names lists the supported provider identifiers.
func Names() []string {
	return []string{ai.ProviderOllama, ai.ProviderOpenAI}
}
