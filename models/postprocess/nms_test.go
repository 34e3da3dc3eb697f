package postprocess

import (
	"testing"

	"github.com/nvr-ai/mri-detect/images"
	"github.com/stretchr/testify/assert"
)

func TestApplyGreedyNMS(t *testing.T) {
	detections := []Result{
		{Box: images.Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}, Score: 0.9, Class: 1},
		{Box: images.Rect{X1: 5, Y1: 5, X2: 105, Y2: 105}, Score: 0.8, Class: 1},
		{Box: images.Rect{X1: 5, Y1: 5, X2: 105, Y2: 105}, Score: 0.7, Class: 0},
		{Box: images.Rect{X1: 300, Y1: 300, X2: 350, Y2: 350}, Score: 0.6, Class: 1},
	}

	tests := []struct {
		name     string
		config   NMSConfig
		expected []float32
	}{
		{
			name:     "class aware keeps overlapping boxes of other classes",
			config:   NMSConfig{IoUThreshold: 0.5, ClassAware: true},
			expected: []float32{0.9, 0.7, 0.6},
		},
		{
			name:     "class agnostic suppresses every overlap",
			config:   NMSConfig{IoUThreshold: 0.5},
			expected: []float32{0.9, 0.6},
		},
		{
			name:     "threshold above overlap keeps everything",
			config:   NMSConfig{IoUThreshold: 0.95, ClassAware: true},
			expected: []float32{0.9, 0.8, 0.7, 0.6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ApplyGreedyNMS(detections, &tt.config)
			scores := make([]float32, 0, len(got))
			for _, r := range got {
				scores = append(scores, r.Score)
			}
			assert.Equal(t, tt.expected, scores)
		})
	}
}

func TestApplyGreedyNMS_Empty(t *testing.T) {
	assert.Nil(t, ApplyGreedyNMS(nil, &NMSConfig{IoUThreshold: 0.5}))
}

func TestSortByScore_Stable(t *testing.T) {
	results := []Result{
		{Score: 0.5, Class: 0},
		{Score: 0.9, Class: 1},
		{Score: 0.5, Class: 2},
		{Score: 0.7, Class: 3},
	}
	SortByScore(results)

	classes := []int{}
	for _, r := range results {
		classes = append(classes, r.Class)
	}
	assert.Equal(t, []int{1, 3, 0, 2}, classes)
}
