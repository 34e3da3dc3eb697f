package yolov8

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/mri-detect/images"
	"github.com/nvr-ai/mri-detect/models/postprocess"
)

// anchor is one column of the head output before flattening.
type anchor struct {
	cx, cy, w, h float32
	scores       []float32
}

// buildOutput lays anchors out the way the exported model does: row-major
// (4+classes, anchors).
func buildOutput(numClasses int, anchors []anchor) []float32 {
	rows := 4 + numClasses
	out := make([]float32, rows*len(anchors))
	for a, an := range anchors {
		col := append([]float32{an.cx, an.cy, an.w, an.h}, an.scores...)
		for r := 0; r < rows; r++ {
			out[r*len(anchors)+a] = col[r]
		}
	}
	return out
}

func defaultOptions() Options {
	return Options{
		InputSize:           640,
		NumClasses:          2,
		ConfidenceThreshold: 0.25,
		NMS:                 postprocess.NMSConfig{IoUThreshold: 0.7, ClassAware: true},
	}
}

func TestPostProcess(t *testing.T) {
	output := buildOutput(2, []anchor{
		{cx: 100, cy: 100, w: 40, h: 20, scores: []float32{0.1, 0.9}},
		{cx: 102, cy: 101, w: 40, h: 20, scores: []float32{0.05, 0.6}}, // duplicate of the first
		{cx: 300, cy: 200, w: 10, h: 10, scores: []float32{0.5, 0.2}},
		{cx: 500, cy: 500, w: 30, h: 30, scores: []float32{0.1, 0.2}}, // below threshold
	})
	before := append([]float32(nil), output...)

	results, err := PostProcess(output, defaultOptions())
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].Class)
	assert.InDelta(t, 0.9, results[0].Score, 1e-6)
	assert.Equal(t, images.Rect{X1: 80, Y1: 90, X2: 120, Y2: 110}, results[0].Box)

	assert.Equal(t, 0, results[1].Class)
	assert.Equal(t, images.Rect{X1: 295, Y1: 195, X2: 305, Y2: 205}, results[1].Box)

	assert.Equal(t, before, output, "output buffer must not be modified")
}

func TestPostProcess_Deterministic(t *testing.T) {
	output := buildOutput(2, []anchor{
		{cx: 10, cy: 10, w: 4, h: 4, scores: []float32{0.3, 0.3}},
		{cx: 50, cy: 50, w: 4, h: 4, scores: []float32{0.3, 0.3}},
		{cx: 90, cy: 90, w: 4, h: 4, scores: []float32{0.8, 0.1}},
	})

	a, err := PostProcess(output, defaultOptions())
	require.NoError(t, err)
	b, err := PostProcess(output, defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPostProcess_MaxDetections(t *testing.T) {
	anchors := make([]anchor, 0, 10)
	for i := 0; i < 10; i++ {
		anchors = append(anchors, anchor{cx: float32(i * 50), cy: 10, w: 10, h: 10, scores: []float32{0.5, 0}})
	}
	opts := defaultOptions()
	opts.MaxDetections = 3

	results, err := PostProcess(buildOutput(2, anchors), opts)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestPostProcess_Errors(t *testing.T) {
	_, err := PostProcess(make([]float32, 7), defaultOptions())
	assert.Error(t, err, "length not a multiple of rows")

	opts := defaultOptions()
	opts.NumClasses = 0
	_, err = PostProcess(make([]float32, 12), opts)
	assert.Error(t, err)

	results, err := PostProcess(nil, defaultOptions())
	assert.NoError(t, err)
	assert.Empty(t, results)
}

func TestAnchorCount(t *testing.T) {
	assert.Equal(t, 8400, AnchorCount(640))
	assert.Equal(t, 2100, AnchorCount(320))

	opts := defaultOptions()
	assert.Equal(t, []int64{1, 6, 8400}, opts.OutputShape())
	assert.Equal(t, []int64{1, 3, 640, 640}, opts.InputShape())
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, defaultOptions().Validate())

	opts := defaultOptions()
	opts.InputSize = 100
	assert.Error(t, opts.Validate())

	opts = defaultOptions()
	opts.ConfidenceThreshold = 1.5
	assert.Error(t, opts.Validate())
}
