package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nvr-ai/mri-detect/artifact"
	"github.com/nvr-ai/mri-detect/config"
	"github.com/nvr-ai/mri-detect/detector"
	"github.com/nvr-ai/mri-detect/images"
	"github.com/nvr-ai/mri-detect/inference"
	"github.com/nvr-ai/mri-detect/logger"
	"github.com/nvr-ai/mri-detect/overlay"
	"github.com/nvr-ai/mri-detect/preview"
)

const (
	// DefaultOutputDir is where the display images are written.
	DefaultOutputDir = "results"
	// windowTitle is the preview window title.
	windowTitle = "Brain Tumor Detection"
)

// report is what -json prints.
type report struct {
	RequestID  string               `json:"request_id"`
	Image      string               `json:"image"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Model      artifact.Artifact    `json:"model"`
	Detections []detector.Detection `json:"detections"`
	Outputs    []string             `json:"outputs"`
	Elapsed    string               `json:"elapsed"`
}

func main() {
	var (
		configPath string
		imagePath  string
		outputDir  string
		show       bool
		asJSON     bool
	)
	flag.StringVar(&configPath, "file", "", "configuration file (YAML)")
	flag.StringVar(&imagePath, "image", "", "Path to the MRI image (.jpg, .jpeg, .png, .webp, .bmp, .tiff)")
	flag.StringVar(&outputDir, "out", DefaultOutputDir, "Output directory for the display images")
	flag.BoolVar(&show, "show", false, "Show the result in a window")
	flag.BoolVar(&asJSON, "json", false, "Print the detections as JSON")

	// Overrides for the most common config keys.
	flag.String("model.path", "", "local model file")
	flag.String("model.locator", "", "remote model locator (Drive file ID or URL)")
	flag.String("detector.confidence", "", "confidence threshold")
	flag.String("detector.provider", "", "execution provider: cpu, coreml, cuda, openvino")
	flag.String("render.scale", "", "display scale factor")
	flag.Parse()

	if imagePath == "" {
		fmt.Fprintln(os.Stderr, "usage: detect -image <path> [-file config.yaml] [-out dir] [-show] [-json]")
		flag.PrintDefaults()
		os.Exit(2)
	}

	if err := config.Init(configPath, flag.CommandLine); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log, _ := logger.GetZapLogger(ctx)
	defer func() { _ = log.Sync() }()

	if err := run(ctx, log, imagePath, outputDir, show, asJSON); err != nil {
		log.Error("detection failed", zap.String("kind", errorKind(err)), zap.Error(err))
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, log *zap.Logger, imagePath, outputDir string, show, asJSON bool) error {
	start := time.Now()
	cfg := config.Config

	requestID, err := uuid.NewV4()
	if err != nil {
		return err
	}
	log = log.With(zap.String("request_id", requestID.String()))

	// Ensure the model artifact is on disk.
	cache := artifact.New(
		artifact.NewDriveFetcher(artifact.FetcherConfig{
			URLTemplate: cfg.Model.URLTemplate,
			Timeout:     cfg.Download.Timeout,
		}, log),
		artifact.Options{
			SHA256:   cfg.Model.SHA256,
			LockWait: cfg.Download.LockWait,
			Logger:   log,
		},
	)
	model, err := cache.Ensure(ctx, cfg.Model.Path, cfg.Model.Locator)
	if err != nil {
		return err
	}
	if model.Downloaded {
		log.Info("model downloaded", zap.String("path", model.Path), zap.Int64("bytes", model.Size))
	}

	handle, err := detector.Load(model.Path, detector.Options{
		InputSize:           cfg.Detector.InputSize,
		ConfidenceThreshold: cfg.Detector.Confidence,
		IoUThreshold:        cfg.Detector.IoU,
		Classes:             cfg.Detector.Classes,
		Provider:            inference.Provider(cfg.Detector.Provider),
		LibraryPath:         cfg.Detector.LibraryPath,
		IntraOpThreads:      cfg.Detector.Threads,
		Logger:              log,
	})
	if err != nil {
		return err
	}
	defer handle.Close()

	img, format, err := images.DecodeFile(imagePath)
	if err != nil {
		return &detector.InferenceError{Err: err}
	}
	log.Info("image decoded",
		zap.String("path", imagePath),
		zap.String("format", string(format)),
		zap.Int("width", img.Bounds().Dx()),
		zap.Int("height", img.Bounds().Dy()))

	dets, err := handle.Predict(ctx, img)
	if err != nil {
		return err
	}

	result, err := overlay.Render(img, dets, cfg.Render.Scale)
	if err != nil {
		return err
	}

	outputs, err := writeOutputs(outputDir, result)
	if err != nil {
		return err
	}

	r := report{
		RequestID:  requestID.String(),
		Image:      imagePath,
		Width:      img.Bounds().Dx(),
		Height:     img.Bounds().Dy(),
		Model:      model,
		Detections: dets,
		Outputs:    outputs,
		Elapsed:    time.Since(start).String(),
	}
	if err := printReport(os.Stdout, r, asJSON); err != nil {
		return err
	}

	if show {
		return preview.Show(ctx, windowTitle, result)
	}
	return nil
}

// writeOutputs saves the display images and their side-by-side comparison.
func writeOutputs(dir string, result *overlay.Result) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create %s", dir)
	}

	files := []struct {
		name string
		img  image.Image
	}{
		{"original.png", result.Original},
		{"annotated.png", result.Annotated},
		{"comparison.png", overlay.SideBySide(result)},
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if err := writePNG(path, f.img); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return f.Close()
}

func printReport(w io.Writer, r report, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	if len(r.Detections) == 0 {
		fmt.Fprintf(w, "%s (%dx%d): no tumor detected\n", r.Image, r.Width, r.Height)
	} else {
		fmt.Fprintf(w, "%s (%dx%d): %d detection(s)\n", r.Image, r.Width, r.Height, len(r.Detections))
		for i, d := range r.Detections {
			fmt.Fprintf(w, "  %d. %s\n", i+1, d)
		}
	}
	for _, p := range r.Outputs {
		fmt.Fprintf(w, "wrote %s\n", p)
	}
	return nil
}

// errorKind names the pipeline stage an error came from.
func errorKind(err error) string {
	var (
		dl  *artifact.DownloadError
		ml  *detector.ModelLoadError
		inf *detector.InferenceError
	)
	switch {
	case errors.As(err, &dl):
		return "download"
	case errors.As(err, &ml):
		return "model_load"
	case errors.As(err, &inf):
		return "inference"
	default:
		return "internal"
	}
}
