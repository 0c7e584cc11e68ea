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
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/poiesic/notevec/core"
	"github.com/sony/gobreaker"
)

const (
	defaultGuardTimeout    = 30 * time.Second
	defaultMaxRetries      = 2
	defaultRetryInterval   = 500 * time.Millisecond
	defaultBreakerFailures = 5
	defaultBreakerCooldown = 30 * time.Second
)

// Guard wraps an Embedder with input validation, a per-call timeout,
// retries of transient failures, a circuit breaker and output checks.
// Returned vectors are normalized to unit length.
type Guard struct {
	inner         Embedder
	timeout       time.Duration
	maxRetries    uint64
	retryInterval time.Duration
	breaker       *gobreaker.CircuitBreaker
	logger        *slog.Logger
}

var _ Embedder = (*Guard)(nil)

// GuardOption configures a Guard.
type GuardOption func(*guardSettings)

type guardSettings struct {
	name            string
	timeout         time.Duration
	maxRetries      uint64
	retryInterval   time.Duration
	breakerFailures uint32
	breakerCooldown time.Duration
	logger          *slog.Logger
}

// WithCallTimeout bounds each provider call.
func WithCallTimeout(d time.Duration) GuardOption {
	return func(s *guardSettings) {
		s.timeout = d
	}
}

// WithRetries sets how many times a transient failure is retried and the initial backoff.
func WithRetries(maxRetries uint64, initial time.Duration) GuardOption {
	return func(s *guardSettings) {
		s.maxRetries = maxRetries
		s.retryInterval = initial
	}
}

// WithBreaker sets the consecutive failures that open the breaker and how long it stays open.
func WithBreaker(failures uint32, cooldown time.Duration) GuardOption {
	return func(s *guardSettings) {
		s.breakerFailures = failures
		s.breakerCooldown = cooldown
	}
}

// WithName names the breaker in logs.
func WithName(name string) GuardOption {
	return func(s *guardSettings) {
		s.name = name
	}
}

// WithLogger sets the logger for retries and breaker state changes.
func WithLogger(logger *slog.Logger) GuardOption {
	return func(s *guardSettings) {
		s.logger = logger
	}
}

// NewGuard wraps inner.
func NewGuard(inner Embedder, opts ...GuardOption) *Guard {
	s := guardSettings{
		name:            "embedder",
		timeout:         defaultGuardTimeout,
		maxRetries:      defaultMaxRetries,
		retryInterval:   defaultRetryInterval,
		breakerFailures: defaultBreakerFailures,
		breakerCooldown: defaultBreakerCooldown,
	}
	for _, opt := range opts {
		opt(&s)
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	logger := s.logger.With("component", "embed-guard", "name", s.name)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    s.name,
		Timeout: s.breakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= s.breakerFailures
		},
		// Rejected input and cancelled callers say nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || IsPermanent(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("embedding circuit breaker state changed", "from", from.String(), "to", to.String())
		},
	})

	return &Guard{
		inner:         inner,
		timeout:       s.timeout,
		maxRetries:    s.maxRetries,
		retryInterval: s.retryInterval,
		breaker:       breaker,
		logger:        logger,
	}
}

// EmbedText embeds a single text.
func (g *Guard) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := g.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedTexts embeds texts, one unit vector per text in input order.
func (g *Guard) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ValidateInput(texts); err != nil {
		return nil, err
	}

	var vectors [][]float32
	attempt := 0
	operation := func() error {
		attempt++
		result, err := g.breaker.Execute(func() (any, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.timeout)
			defer cancel()
			out, err := g.inner.EmbedTexts(callCtx, texts)
			if err != nil {
				return nil, ClassifyProviderError(err)
			}
			if err := checkVectors(out, len(texts)); err != nil {
				return nil, err
			}
			return out, nil
		})
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(fmt.Errorf("%w: %w", ErrProviderUnavailable, err))
			}
			if IsPermanent(err) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			g.logger.Debug("embedding attempt failed", "attempt", attempt, "err", err)
			return err
		}
		vectors = result.([][]float32)
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = g.retryInterval
	retrying := backoff.WithContext(backoff.WithMaxRetries(policy, g.maxRetries), ctx)
	if err := backoff.Retry(operation, retrying); err != nil {
		g.logger.Error("embedding failed", "texts", len(texts), "attempts", attempt, "err", err)
		return nil, err
	}

	for i, v := range vectors {
		vectors[i] = core.NormalizeVector(v)
	}
	return vectors, nil
}

// State reports the breaker state: "closed", "half-open" or "open".
func (g *Guard) State() string {
	return g.breaker.State().String()
}

// ValidateInput rejects an empty batch or a blank entry with ErrEmptyInput.
func ValidateInput(texts []string) error {
	if len(texts) == 0 {
		return fmt.Errorf("%w: no texts", ErrEmptyInput)
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return fmt.Errorf("%w: text %d is blank", ErrEmptyInput, i)
		}
	}
	return nil
}

func checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d texts", ErrResultCount, len(vectors), want)
	}
	dim := len(vectors[0])
	if dim == 0 {
		return fmt.Errorf("%w: empty vector", ErrDimensionMismatch)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}
