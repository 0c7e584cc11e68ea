package rebuild

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newBufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestProgressTracker_Basic(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(newBufferLogger(&buf), PhaseDocuments, 100, 10)

	tracker.Start()
	assert.True(t, tracker.started, "should be started")

	tracker.Increment(25)
	tracker.Increment(25)
	p := tracker.Increment(50)

	assert.Equal(t, Progress{Phase: PhaseDocuments, Current: 100, Total: 100}, p)
	assert.Greater(t, tracker.Elapsed(), time.Duration(0))

	output := buf.String()
	assert.Contains(t, output, "current=100")
	assert.Contains(t, output, "percent=100")
	assert.Contains(t, output, "phase=documents")
}

func TestProgressTracker_ReportInterval(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(newBufferLogger(&buf), PhaseExternal, 100, 10)
	tracker.Start()

	for i := 0; i < 9; i++ {
		tracker.Increment(1)
	}
	assert.Empty(t, buf.String(), "no report before the interval")

	tracker.Increment(1)
	assert.Equal(t, 1, strings.Count(buf.String(), "rebuild progress"))
}

func TestProgressTracker_Finish(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(newBufferLogger(&buf), PhaseDocuments, 100, 1000)

	tracker.Start()
	tracker.Increment(75)
	tracker.Finish()

	assert.Equal(t, 100, tracker.Current().Current, "finish should set to total")
	assert.Contains(t, buf.String(), "current=100")
}

func TestProgressTracker_ZeroTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(newBufferLogger(&buf), PhaseDocuments, 0, 10)

	tracker.Start()
	tracker.Finish()

	assert.Contains(t, buf.String(), "total=0")
	assert.Contains(t, buf.String(), "percent=0")
}

func TestProgressTracker_IncrementBeyondTotal(t *testing.T) {
	tracker := NewProgressTracker(nil, PhaseDocuments, 10, 5)
	tracker.Start()
	p := tracker.Increment(150)
	assert.Equal(t, 10, p.Current, "capped at total")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(newBufferLogger(&buf), PhaseDocuments, 10, 1)

	p := tracker.Increment(5)
	tracker.Finish()

	assert.Zero(t, p.Current)
	assert.Zero(t, tracker.Elapsed())
	assert.Zero(t, tracker.Rate())
	assert.Empty(t, buf.String())
}
