// Package images - Image processing utilities
package images

import (
	"fmt"
	"image"

	"github.com/chewxy/math32"
)

// Rect is a lightweight bounding box in pixel space.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the box, or 0 for an inverted box.
func (r Rect) Width() float32 {
	return math32.Max(0, r.X2-r.X1)
}

// Height returns the vertical extent of the box, or 0 for an inverted box.
func (r Rect) Height() float32 {
	return math32.Max(0, r.Y2-r.Y1)
}

// Area returns the box area in square pixels.
func (r Rect) Area() float32 {
	return r.Width() * r.Height()
}

// Empty reports whether the box covers no pixels.
func (r Rect) Empty() bool {
	return r.Width() <= 0 || r.Height() <= 0
}

// Clip canonicalizes the box and clamps it to [0,width) x [0,height).
//
// Malformed coordinates (swapped corners, NaN, boxes fully outside the frame)
// never panic; the result is simply empty.
//
// Arguments:
//   - width: The image width in pixels.
//   - height: The image height in pixels.
//
// Returns:
//   - Rect: The clipped box.
func (r Rect) Clip(width, height int) Rect {
	x1, x2 := ordered(r.X1, r.X2)
	y1, y2 := ordered(r.Y1, r.Y2)
	w, h := float32(width), float32(height)
	return Rect{
		X1: clamp(x1, 0, w),
		Y1: clamp(y1, 0, h),
		X2: clamp(x2, 0, w),
		Y2: clamp(y2, 0, h),
	}
}

// Rectangle converts the box to an integral image.Rectangle, rounding each edge
// to the nearest pixel.
func (r Rect) Rectangle() image.Rectangle {
	return image.Rect(
		int(math32.Round(r.X1)),
		int(math32.Round(r.Y1)),
		int(math32.Round(r.X2)),
		int(math32.Round(r.Y2)),
	).Canon()
}

func (r Rect) String() string {
	return fmt.Sprintf("(%.1f, %.1f)-(%.1f, %.1f)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU computes Intersection over Union between two boxes.
//
// IoU = Area of Intersection / Area of Union, a value between 0.0 (disjoint)
// and 1.0 (identical). The intersection corners are the maximum of the two
// top-left corners and the minimum of the two bottom-right corners; when the
// resulting width or height is not positive the boxes do not overlap and 0 is
// returned. The union follows inclusion-exclusion:
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float32: A value between 0.0 and 1.0 representing the IoU score.
//
// Example Usage:
// ```go
//
//	rect1 := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	rect2 := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//
//	iouScore := CalculateIoU(rect1, rect2) // 25 / 175 = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float32 {
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}

func ordered(a, b float32) (float32, float32) {
	if b < a {
		return b, a
	}
	return a, b
}

// clamp bounds v to [lo, hi]; NaN collapses to lo.
func clamp(v, lo, hi float32) float32 {
	if math32.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
