package detector

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/mri-detect/inference"
	"github.com/nvr-ai/mri-detect/models"
	"github.com/nvr-ai/mri-detect/models/postprocess"
	"github.com/nvr-ai/mri-detect/models/yolov8"
)

// Runner executes the model on one flattened input tensor.
type Runner interface {
	// Run returns the flattened output tensor. The input is not retained.
	Run(input []float32) ([]float32, error)
	// Close releases the runner's resources.
	Close() error
}

// Opener creates a Runner for a model file.
type Opener func(path string, opts Options) (Runner, error)

// Options configures Load.
type Options struct {
	// InputSize is the square model input resolution.
	InputSize int
	// ConfidenceThreshold drops detections scoring below it.
	ConfidenceThreshold float32
	// IoUThreshold is the overlap above which NMS suppresses the weaker box.
	IoUThreshold float32
	// Classes are the label names in model output order.
	Classes []string
	// Provider is the ONNX Runtime execution provider.
	Provider inference.Provider
	// LibraryPath is the onnxruntime shared library (empty = platform default).
	LibraryPath string
	// IntraOpThreads is passed to the runtime (0 = runtime default).
	IntraOpThreads int
	// Opener creates the runner; OpenSession when nil.
	Opener Opener
	// Logger receives debug output; a no-op logger when nil.
	Logger *zap.Logger
}

// DefaultOptions returns the options the brain tumor model was exported with.
func DefaultOptions() Options {
	return Options{
		InputSize:           640,
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.7,
		Classes:             models.BrainTumorClasses,
		Provider:            inference.ProviderCPU,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InputSize == 0 {
		o.InputSize = d.InputSize
	}
	if o.ConfidenceThreshold == 0 {
		o.ConfidenceThreshold = d.ConfidenceThreshold
	}
	if o.IoUThreshold == 0 {
		o.IoUThreshold = d.IoUThreshold
	}
	if len(o.Classes) == 0 {
		o.Classes = d.Classes
	}
	if o.Provider == "" {
		o.Provider = d.Provider
	}
	if o.Opener == nil {
		o.Opener = OpenSession
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// decodeOptions maps the detector options onto the YOLOv8 head decoder.
func (o Options) decodeOptions() yolov8.Options {
	return yolov8.Options{
		InputSize:           o.InputSize,
		NumClasses:          len(o.Classes),
		ConfidenceThreshold: o.ConfidenceThreshold,
		MaxDetections:       yolov8.DefaultMaxDetections,
		NMS: postprocess.NMSConfig{
			IoUThreshold: o.IoUThreshold,
			ClassAware:   true,
		},
	}
}

func (o Options) validate() error {
	if err := o.decodeOptions().Validate(); err != nil {
		return err
	}
	if o.IoUThreshold <= 0 || o.IoUThreshold > 1 {
		return errors.Errorf("iou threshold must be in (0,1], got %v", o.IoUThreshold)
	}
	return nil
}

// OpenSession opens an ONNX Runtime session for a YOLOv8 export.
//
// Arguments:
//   - path: The .onnx file.
//   - opts: The detector options.
//
// Returns:
//   - Runner: The session.
//   - error: An error if the runtime cannot load the model.
func OpenSession(path string, opts Options) (Runner, error) {
	decode := opts.decodeOptions()
	return inference.NewSession(inference.SessionArgs{
		ModelPath:      path,
		LibraryPath:    opts.LibraryPath,
		Provider:       opts.Provider,
		IntraOpThreads: opts.IntraOpThreads,
		InputName:      yolov8.InputName,
		OutputName:     yolov8.OutputName,
		InputShape:     decode.InputShape(),
		OutputShape:    decode.OutputShape(),
	})
}
