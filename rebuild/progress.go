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


package rebuild

import (
	"log/slog"
	"sync"
	"time"
)

// Phase names the part of a rebuild in progress.
type Phase string

const (
	PhaseDocuments Phase = "documents"
	PhaseExternal  Phase = "external"
)

// Progress is reported after each rebuilt item.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
}

// ProgressTracker tracks the progress of one rebuild phase and logs it
// every reportInterval items.
type ProgressTracker struct {
	logger         *slog.Logger
	phase          Phase
	total          int
	current        int
	reportInterval int
	lastReported   int
	startTime      time.Time
	started        bool
	mu             sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// total: total number of items in the phase
// reportInterval: log progress every N items
func NewProgressTracker(logger *slog.Logger, phase Phase, total, reportInterval int) *ProgressTracker {
	if logger == nil {
		logger = slog.Default()
	}
	if reportInterval < 1 {
		reportInterval = 1
	}
	return &ProgressTracker{
		logger:         logger,
		phase:          phase,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.started = true
	p.current = 0
	p.lastReported = 0
}

// Increment advances the progress by delta and returns the current snapshot.
func (p *ProgressTracker) Increment(delta int) Progress {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return p.progress()
	}

	p.current += delta
	if p.current > p.total {
		p.current = p.total
	}

	// Report if we've crossed a report interval
	if p.current-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.current
	}
	return p.progress()
}

// Finish marks the phase as complete and logs final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	p.current = p.total
	p.report()
}

// Current returns the current snapshot.
func (p *ProgressTracker) Current() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress()
}

// Elapsed returns the time elapsed since Start was called.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return 0
	}
	return time.Since(p.startTime)
}

// Rate returns the items processed per second so far.
func (p *ProgressTracker) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate()
}

func (p *ProgressTracker) progress() Progress {
	return Progress{Phase: p.phase, Current: p.current, Total: p.total}
}

func (p *ProgressTracker) rate() float64 {
	if !p.started {
		return 0
	}
	elapsed := time.Since(p.startTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(p.current) / elapsed
}

// report logs the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	percentage := 0.0
	if p.total > 0 {
		percentage = float64(p.current) / float64(p.total) * 100.0
	}
	p.logger.Info("rebuild progress",
		"phase", p.phase,
		"current", p.current,
		"total", p.total,
		"percent", percentage,
		"rate", p.rate())
}
