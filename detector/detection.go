// Package detector - single-image object detection over an ONNX model.
package detector

import (
	"fmt"

	"github.com/nvr-ai/mri-detect/images"
)

// Detection is one located object instance.
type Detection struct {
	// Box is in source image pixels, relative to the image's top-left corner.
	Box images.Rect `json:"box"`
	// Class is the model class index.
	Class int `json:"class"`
	// Label is the human-readable class name.
	Label string `json:"label"`
	// Score is the confidence in [0, 1].
	Score float32 `json:"score"`
}

// Caption returns the text drawn next to the box, e.g. "positive 0.87".
func (d Detection) Caption() string {
	return fmt.Sprintf("%s %.2f", d.Label, d.Score)
}

func (d Detection) String() string {
	return fmt.Sprintf("%s %s", d.Caption(), d.Box)
}
