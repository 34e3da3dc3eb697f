package inference

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"github.com/nvr-ai/mri-detect/images"
)

// LetterboxColor is the padding gray YOLOv8 models are trained with.
var LetterboxColor = color.RGBA{R: 114, G: 114, B: 114, A: 255}

// Letterbox describes how a source image was fit into the square model input:
// scaled by a single factor that keeps its aspect ratio, then centred on a
// LetterboxColor canvas.
type Letterbox struct {
	// Scale is the factor applied to both axes.
	Scale float64
	// PadLeft is the horizontal padding before the image, in input pixels.
	PadLeft int
	// PadTop is the vertical padding above the image, in input pixels.
	PadTop int
	// Width is the width of the scaled image inside the input.
	Width int
	// Height is the height of the scaled image inside the input.
	Height int
}

// NewLetterbox computes the letterbox geometry of a width x height image in a
// size x size input.
//
// Arguments:
//   - width: The source width.
//   - height: The source height.
//   - size: The square model input resolution.
//
// Returns:
//   - Letterbox: The geometry.
//   - error: An error if any dimension is not positive.
func NewLetterbox(width, height, size int) (Letterbox, error) {
	if width <= 0 || height <= 0 || size <= 0 {
		return Letterbox{}, fmt.Errorf("invalid letterbox: %dx%d into %d", width, height, size)
	}

	scale := math.Min(float64(size)/float64(width), float64(size)/float64(height))
	w := min(max(int(math.Round(float64(width)*scale)), 1), size)
	h := min(max(int(math.Round(float64(height)*scale)), 1), size)

	// The odd pixel of padding goes after the image.
	return Letterbox{
		Scale:   scale,
		PadLeft: int(math.Round(float64(size-w)/2 - 0.1)),
		PadTop:  int(math.Round(float64(size-h)/2 - 0.1)),
		Width:   w,
		Height:  h,
	}, nil
}

// Apply draws img into a new size x size LetterboxColor canvas.
func (l Letterbox) Apply(img image.Image, size int) (*image.RGBA, error) {
	resized, err := images.ResizeTo(img, l.Width, l.Height)
	if err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: LetterboxColor}, image.Point{}, draw.Src)
	draw.Draw(canvas, image.Rect(l.PadLeft, l.PadTop, l.PadLeft+l.Width, l.PadTop+l.Height),
		resized, resized.Bounds().Min, draw.Src)
	return canvas, nil
}

// Unmap maps a box from model-input space back to the source image: the
// padding is removed and the single scale undone.
func (l Letterbox) Unmap(r images.Rect) images.Rect {
	px, py, s := float32(l.PadLeft), float32(l.PadTop), float32(l.Scale)
	return images.Rect{
		X1: (r.X1 - px) / s,
		Y1: (r.Y1 - py) / s,
		X2: (r.X2 - px) / s,
		Y2: (r.Y2 - py) / s,
	}
}
