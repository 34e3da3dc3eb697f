package detector

import (
	"context"
	"image"
	"io"
	"os"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/mri-detect/images"
	"github.com/nvr-ai/mri-detect/inference"
	"github.com/nvr-ai/mri-detect/models"
	"github.com/nvr-ai/mri-detect/models/yolov8"
)

// onnxTag is the protobuf tag of ModelProto.ir_version (field 1, varint),
// the first field every ONNX exporter writes.
const onnxTag = 0x08

// sniffLen is how much of the artifact is read to identify its format.
const sniffLen = 3072

// minBoxSize is the smallest width and height, in source pixels, of a
// reported detection.
const minBoxSize = 1

// Handle is a loaded model ready to run. It is created once by Load and
// shared by all requests; Predict does not modify it.
type Handle struct {
	path    string
	opts    Options
	decode  yolov8.Options
	classes *models.OutputClassSet
	runner  Runner
	logger  *zap.Logger
}

// Load opens the model at path.
//
// Loading is expensive: the runtime parses and optimizes the whole graph.
// Create one Handle at startup and pass it to every request.
//
// Arguments:
//   - path: The model artifact on local disk.
//   - opts: The detector options; zero fields take DefaultOptions values.
//
// Returns:
//   - *Handle: The loaded model; the caller must Close it.
//   - error: A *ModelLoadError if the file is missing, truncated or not an ONNX model.
//
// Example:
//
//	```go
//	h, err := detector.Load("best.onnx", detector.DefaultOptions())
//	if err != nil {
//		return err
//	}
//	defer h.Close()
//	dets, err := h.Predict(ctx, img)
//	```
func Load(path string, opts Options) (*Handle, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, &ModelLoadError{Path: path, Err: errors.Wrap(err, "invalid options")}
	}

	if err := checkArtifact(path); err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	runner, err := opts.Opener(path, opts)
	if err != nil {
		return nil, &ModelLoadError{Path: path, Err: err}
	}

	opts.Logger.Debug("model loaded",
		zap.String("path", path),
		zap.String("provider", string(opts.Provider)),
		zap.Int("input_size", opts.InputSize),
		zap.Strings("classes", opts.Classes))

	return &Handle{
		path:    path,
		opts:    opts,
		decode:  opts.decodeOptions(),
		classes: models.NewClassSet(opts.Classes),
		runner:  runner,
		logger:  opts.Logger,
	}, nil
}

// checkArtifact rejects files the runtime would fail on in less obvious ways.
func checkArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("%s is not a regular file", path)
	}
	if info.Size() == 0 {
		return errors.New("model file is empty")
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, sniffLen)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.Wrap(err, "failed to read model header")
	}
	header = header[:n]

	mtype := mimetype.Detect(header)
	switch {
	case mtype.Is("application/zip"):
		return errors.New("unrecognized format: zip archive (PyTorch checkpoint?), export the model to ONNX")
	case mtype.Is("text/html"), mtype.Is("text/plain"):
		return errors.Errorf("unrecognized format: %s", mtype.String())
	case header[0] != onnxTag:
		return errors.Errorf("unrecognized format: %s is not an ONNX model", mtype.String())
	}
	return nil
}

// Path returns the model file the handle was loaded from.
func (h *Handle) Path() string {
	return h.path
}

// Classes returns the label set of the model.
func (h *Handle) Classes() *models.OutputClassSet {
	return h.classes
}

// Predict runs the model on img.
//
// img is letterboxed into the square model input, keeping its aspect ratio.
// It is only read. Boxes are returned in img's pixel space, relative to its
// top-left corner and clipped to its bounds, highest score first. Boxes less
// than a pixel wide or tall after clipping are dropped.
//
// Arguments:
//   - ctx: Checked before the model runs; inference itself is not interruptible.
//   - img: The source image.
//
// Returns:
//   - []Detection: Zero or more detections.
//   - error: An *InferenceError for nil or zero-sized images, a done ctx, or a failed run.
func (h *Handle) Predict(ctx context.Context, img image.Image) ([]Detection, error) {
	if images.IsNil(img) {
		return nil, &InferenceError{Err: errors.New("image is nil")}
	}
	bounds := img.Bounds()
	if bounds.Empty() {
		return nil, &InferenceError{Err: errors.Errorf("image has no pixels: %dx%d", bounds.Dx(), bounds.Dy())}
	}
	if err := ctx.Err(); err != nil {
		return nil, &InferenceError{Err: err}
	}

	size := h.decode.InputSize
	input := make([]float32, 3*size*size)
	lb, err := inference.PrepareInput(img, size, input)
	if err != nil {
		return nil, &InferenceError{Err: errors.Wrap(err, "failed to prepare input")}
	}

	output, err := h.runner.Run(input)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	results, err := yolov8.PostProcess(output, h.decode)
	if err != nil {
		return nil, &InferenceError{Err: err}
	}

	w, ht := bounds.Dx(), bounds.Dy()
	detections := make([]Detection, 0, len(results))
	for _, r := range results {
		box := lb.Unmap(r.Box).Clip(w, ht)
		if box.Width() < minBoxSize || box.Height() < minBoxSize {
			continue
		}
		detections = append(detections, Detection{
			Box:   box,
			Class: r.Class,
			Label: h.classes.Name(r.Class),
			Score: r.Score,
		})
	}

	h.logger.Debug("prediction",
		zap.Int("width", w),
		zap.Int("height", ht),
		zap.Int("candidates", len(results)),
		zap.Int("detections", len(detections)))

	return detections, nil
}

// Close releases the runtime resources held by the handle.
func (h *Handle) Close() error {
	return h.runner.Close()
}
