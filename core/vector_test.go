package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeVector(t *testing.T) {
	tests := []struct {
		name     string
		input    []float32
		expected []float32
	}{
		{
			name:     "unit vector remains unchanged",
			input:    []float32{1.0, 0.0, 0.0},
			expected: []float32{1.0, 0.0, 0.0},
		},
		{
			name:     "scale non-unit vector",
			input:    []float32{3.0, 4.0},
			expected: []float32{0.6, 0.8},
		},
		{
			name:     "negative values",
			input:    []float32{-1.0, 1.0},
			expected: []float32{-1.0 / float32(math.Sqrt(2)), 1.0 / float32(math.Sqrt(2))},
		},
		{
			name:     "zero vector stays zero",
			input:    []float32{0, 0},
			expected: []float32{0, 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizeVector(tt.input)
			require.Equal(t, len(tt.expected), len(result), "vector length mismatch")
			for i := range result {
				assert.InDelta(t, tt.expected[i], result[i], 1e-6, "element %d", i)
			}
		})
	}

	t.Run("empty input", func(t *testing.T) {
		assert.Empty(t, NormalizeVector(nil))
	})

	t.Run("does not modify input", func(t *testing.T) {
		in := []float32{3, 4}
		NormalizeVector(in)
		assert.Equal(t, []float32{3, 4}, in)
	})
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 1.0, DotProduct([]float32{1, 0}, []float32{1, 0}), 1e-6)
	assert.InDelta(t, 0.0, DotProduct([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.InDelta(t, -1.0, DotProduct([]float32{1, 0}, []float32{-1, 0}), 1e-6)
	// Mismatched lengths compare the shared prefix.
	assert.InDelta(t, 1.0, DotProduct([]float32{1, 0, 5}, []float32{1, 0}), 1e-6)
}

func TestMeanVector(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, MeanVector(nil))
	})

	t.Run("mean is normalized", func(t *testing.T) {
		mean := MeanVector([][]float32{{1, 0}, {0, 1}})
		require.Len(t, mean, 2)
		assert.InDelta(t, 1/math.Sqrt(2), mean[0], 1e-6)
		assert.InDelta(t, 1/math.Sqrt(2), mean[1], 1e-6)
	})

	t.Run("mismatched dimensions are skipped", func(t *testing.T) {
		mean := MeanVector([][]float32{{1, 0}, {0, 1, 0}})
		assert.InDelta(t, 1.0, mean[0], 1e-6)
		assert.InDelta(t, 0.0, mean[1], 1e-6)
	})
}
