package images

import (
	"fmt"
	"image"
	"math"

	"github.com/nfnt/resize"
	"golang.org/x/image/draw"
)

// DisplayFilter is the resampling filter used when scaling images for display.
var DisplayFilter = resize.Bicubic

// InputFilter is the resampling filter used when scaling images to the model
// input resolution.
var InputFilter = resize.Bilinear

// Clone copies img into a new RGBA buffer whose bounds start at the origin.
//
// The returned image never shares pixel memory with img.
//
// Arguments:
//   - img: The image to copy.
//
// Returns:
//   - *image.RGBA: A fresh copy of img.
func Clone(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// ScaledSize returns the dimensions of a (width, height) image scaled by the
// given factor, rounding both axes the same way.
//
// Arguments:
//   - width: The source width.
//   - height: The source height.
//   - scale: The scale factor, must be positive.
//
// Returns:
//   - int: round(width * scale).
//   - int: round(height * scale).
//   - error: An error if the factor is invalid or collapses an axis to zero.
func ScaledSize(width, height int, scale float64) (int, int, error) {
	if math.IsNaN(scale) || math.IsInf(scale, 0) || scale <= 0 {
		return 0, 0, fmt.Errorf("invalid scale factor: %v", scale)
	}
	w := int(math.Round(float64(width) * scale))
	h := int(math.Round(float64(height) * scale))
	if w <= 0 || h <= 0 {
		return 0, 0, fmt.Errorf("scale factor %v collapses %dx%d to %dx%d", scale, width, height, w, h)
	}
	return w, h, nil
}

// Scale resizes img by the given factor using DisplayFilter.
//
// The result is always a new buffer, including when the factor is 1 or the
// rounded size equals the source size.
//
// Arguments:
//   - img: The image to scale.
//   - scale: The scale factor.
//
// Returns:
//   - *image.RGBA: The scaled image.
//   - error: An error if the scale factor is invalid.
//
// Example:
//
// ```go
//
//	big, err := Scale(img, 2) // 100x100 -> 200x200
//
// ```
func Scale(img image.Image, scale float64) (*image.RGBA, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("cannot scale an empty image")
	}
	w, h, err := ScaledSize(b.Dx(), b.Dy(), scale)
	if err != nil {
		return nil, err
	}
	if w == b.Dx() && h == b.Dy() {
		return Clone(img), nil
	}
	return toRGBA(resize.Resize(uint(w), uint(h), img, DisplayFilter)), nil
}

// ResizeTo resizes img to exactly width x height using InputFilter, ignoring
// the aspect ratio.
//
// The result may be img itself when the size already matches; callers must
// treat it as read-only.
//
// Arguments:
//   - img: The image to resize.
//   - width: The target width.
//   - height: The target height.
//
// Returns:
//   - image.Image: The resized image.
//   - error: An error if the dimensions are invalid.
func ResizeTo(img image.Image, width, height int) (image.Image, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid dimensions: width=%d, height=%d", width, height)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("cannot resize an empty image")
	}
	return resize.Resize(uint(width), uint(height), img, InputFilter), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	return Clone(img)
}
