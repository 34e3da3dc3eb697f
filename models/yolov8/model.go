// Package yolov8 - YOLOv8 detection head (ultralytics export).
package yolov8

import (
	"fmt"

	"github.com/nvr-ai/mri-detect/models/postprocess"
)

const (
	// InputName is the input node name of an ultralytics ONNX export.
	InputName = "images"
	// OutputName is the output node name of an ultralytics ONNX export.
	OutputName = "output0"
	// DefaultMaxDetections matches ultralytics' max_det.
	DefaultMaxDetections = 300
)

// Strides are the feature map strides of the three detection heads.
var Strides = []int{8, 16, 32}

// Options is the options for decoding YOLOv8 outputs.
type Options struct {
	// InputSize is the square model input resolution.
	InputSize int `json:"input_size" yaml:"input_size"`
	// NumClasses is the number of classes the head predicts.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// ConfidenceThreshold drops candidates whose best class score is below it.
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// MaxDetections caps the number of results after NMS (0 = DefaultMaxDetections).
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
	// NMS configures suppression of overlapping candidates.
	NMS postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.InputSize <= 0 || o.InputSize%Strides[len(Strides)-1] != 0 {
		return fmt.Errorf("input size must be a positive multiple of %d, got %d", Strides[len(Strides)-1], o.InputSize)
	}
	if o.NumClasses <= 0 {
		return fmt.Errorf("num classes must be positive, got %d", o.NumClasses)
	}
	if o.ConfidenceThreshold < 0 || o.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be in [0,1], got %v", o.ConfidenceThreshold)
	}
	return nil
}

// InputShape returns the NCHW input tensor shape.
func (o Options) InputShape() []int64 {
	return []int64{1, 3, int64(o.InputSize), int64(o.InputSize)}
}

// OutputShape returns the (batch, 4+classes, anchors) output tensor shape.
func (o Options) OutputShape() []int64 {
	return []int64{1, int64(4 + o.NumClasses), int64(AnchorCount(o.InputSize))}
}

// AnchorCount returns the number of anchor points the head emits for a square
// input of the given size, e.g. 8400 for 640.
//
// Arguments:
//   - inputSize: The model input resolution.
//
// Returns:
//   - int: The number of anchors.
func AnchorCount(inputSize int) int {
	n := 0
	for _, s := range Strides {
		side := inputSize / s
		n += side * side
	}
	return n
}
