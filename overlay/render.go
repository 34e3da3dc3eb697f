// Package overlay - draws detections onto images for display.
package overlay

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"

	"github.com/nvr-ai/mri-detect/detector"
	"github.com/nvr-ai/mri-detect/images"
)

// Result holds the two images shown to the user. Both have the same size and
// neither shares pixels with the source image or with the other.
type Result struct {
	// Original is the source image at display size.
	Original *image.RGBA
	// Annotated is the source image with detections drawn, at display size.
	Annotated *image.RGBA
}

// Style controls how detections are drawn.
type Style struct {
	// LineWidth is the box outline width (0 = LineWidth of the image).
	LineWidth int
	// Palette colours boxes by class (DefaultPalette when empty).
	Palette Palette
	// HideLabels draws boxes without captions.
	HideLabels bool
}

// Render draws dets onto a copy of original with the default style and
// scales both images by scale for display.
//
// Arguments:
//   - original: The source image. It is only read.
//   - dets: Detections in original's pixel space. Boxes are clipped to the image.
//   - scale: The display factor applied to both images (1 keeps the native size).
//
// Returns:
//   - *Result: The display images, both round(W*scale) x round(H*scale).
//   - error: An error if original is nil or empty, or scale is not positive.
func Render(original image.Image, dets []detector.Detection, scale float64) (*Result, error) {
	return Style{}.Render(original, dets, scale)
}

// Render is Render with this style.
func (s Style) Render(original image.Image, dets []detector.Detection, scale float64) (*Result, error) {
	if images.IsNil(original) {
		return nil, errors.New("image is nil")
	}
	bounds := original.Bounds()
	if _, _, err := images.ScaledSize(bounds.Dx(), bounds.Dy(), scale); err != nil {
		return nil, err
	}

	// Both display images are scaled from the same RGBA pixels so an
	// unannotated region matches exactly whatever the source colour model.
	base := images.Clone(original)
	annotated := images.Clone(base)
	s.annotate(annotated, dets)

	display, err := images.Scale(base, scale)
	if err != nil {
		return nil, errors.Wrap(err, "failed to scale original")
	}
	if scale != 1 {
		if annotated, err = images.Scale(annotated, scale); err != nil {
			return nil, errors.Wrap(err, "failed to scale annotated image")
		}
	}

	return &Result{Original: display, Annotated: annotated}, nil
}

// annotate draws dets onto img in place. img's bounds start at the origin.
func (s Style) annotate(img *image.RGBA, dets []detector.Detection) {
	palette := s.Palette
	if len(palette) == 0 {
		palette = DefaultPalette
	}
	thickness := s.LineWidth
	if thickness <= 0 {
		thickness = LineWidth(img.Bounds())
	}

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	for _, det := range dets {
		box := det.Box.Clip(w, h).Rectangle()
		if box.Empty() {
			continue
		}

		c := palette.Color(det.Class)
		drawBox(img, box, c, thickness)
		if !s.HideLabels {
			drawLabel(img, box, det.Caption(), c)
		}
	}
}

// SideBySide places the two display images next to each other, original on
// the left.
func SideBySide(r *Result) *image.RGBA {
	ob, ab := r.Original.Bounds(), r.Annotated.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, ob.Dx()+ab.Dx(), max(ob.Dy(), ab.Dy())))

	draw.Draw(out, image.Rect(0, 0, ob.Dx(), ob.Dy()), r.Original, ob.Min, draw.Src)
	draw.Draw(out, image.Rect(ob.Dx(), 0, ob.Dx()+ab.Dx(), ab.Dy()), r.Annotated, ab.Min, draw.Src)
	return out
}
