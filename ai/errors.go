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
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrEmptyInput indicates an empty batch or a blank text. No provider call is made.
	ErrEmptyInput = errors.New("empty embedding input")

	// ErrInvalidConfig indicates the embedding configuration failed validation.
	ErrInvalidConfig = errors.New("invalid embedding config")

	// ErrUnknownProvider indicates Config.Provider names no known provider.
	ErrUnknownProvider = errors.New("unknown embedding provider")

	// ErrProviderUnavailable indicates the circuit breaker is refusing calls.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrResultCount indicates the provider returned a different number of vectors than inputs.
	ErrResultCount = errors.New("embedding result count mismatch")

	// ErrDimensionMismatch indicates vectors of one batch differ in length, or are empty.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ValidationError describes one invalid Config field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ai config: %s %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidConfig
}

// PermanentError marks a provider error that retrying cannot fix,
// such as a rejected API key or an unknown model.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as a PermanentError. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm) ||
		errors.Is(err, ErrEmptyInput) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrResultCount) ||
		errors.Is(err, ErrDimensionMismatch)
}

var statusCodePattern = regexp.MustCompile(`status code:? (\d{3})`)

// ClassifyProviderError marks client errors (HTTP 4xx other than 408 and 429)
// reported by a provider as permanent.
func ClassifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	m := statusCodePattern.FindStringSubmatch(strings.ToLower(err.Error()))
	if m == nil {
		return err
	}
	code, _ := strconv.Atoi(m[1])
	if code >= 400 && code < 500 && code != 408 && code != 429 {
		return Permanent(err)
	}
	return err
}
