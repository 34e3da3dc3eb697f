// Package yolov8 - postprocess YOLOv8 model outputs.
package yolov8

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/mri-detect/images"
	"github.com/nvr-ai/mri-detect/models/postprocess"
)

// PostProcess decodes the raw output of a YOLOv8 head.
//
// The head emits a (4+classes, anchors) matrix: rows 0-3 are the box centre
// and size in input pixels, the remaining rows are per-class scores. The
// matrix is transposed so each anchor becomes one contiguous row, candidates
// under the confidence threshold are dropped, and the rest go through greedy
// NMS.
//
// Arguments:
//   - output: The flattened output tensor. It is not modified.
//   - opts: The decoding options.
//
// Returns:
//   - []postprocess.Result: Detections in input pixel space, highest score first.
//   - error: An error if the output does not match the expected layout.
func PostProcess(output []float32, opts Options) ([]postprocess.Result, error) {
	rows := 4 + opts.NumClasses
	if opts.NumClasses <= 0 {
		return nil, errors.Errorf("invalid class count: %d", opts.NumClasses)
	}
	if len(output) == 0 {
		return nil, nil
	}
	if len(output)%rows != 0 {
		return nil, errors.Errorf("output length %d is not a multiple of %d rows", len(output), rows)
	}
	anchors := len(output) / rows

	candidates, err := transpose(output, rows, anchors)
	if err != nil {
		return nil, err
	}

	results := make([]postprocess.Result, 0, 16)
	for a := 0; a < anchors; a++ {
		row := candidates[a*rows : (a+1)*rows]

		classID := 0
		score := float32(-1)
		for c, s := range row[4:] {
			if s > score {
				score = s
				classID = c
			}
		}
		if math32.IsNaN(score) || score < opts.ConfidenceThreshold {
			continue
		}

		cx, cy, w, h := row[0], row[1], row[2], row[3]
		results = append(results, postprocess.Result{
			Box: images.Rect{
				X1: cx - w/2,
				Y1: cy - h/2,
				X2: cx + w/2,
				Y2: cy + h/2,
			},
			Score: score,
			Class: classID,
		})
	}

	postprocess.SortByScore(results)
	results = postprocess.ApplyGreedyNMS(results, &opts.NMS)

	limit := opts.MaxDetections
	if limit <= 0 {
		limit = DefaultMaxDetections
	}
	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// transpose turns the (rows, anchors) head output into (anchors, rows).
func transpose(output []float32, rows, anchors int) ([]float32, error) {
	if anchors == 1 {
		return output, nil
	}

	backing := make([]float32, len(output))
	copy(backing, output)

	t := tensor.New(tensor.WithShape(rows, anchors), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "failed to transpose output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "failed to materialize transposed output")
	}

	data, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected tensor backing %T", t.Data())
	}
	return data, nil
}
