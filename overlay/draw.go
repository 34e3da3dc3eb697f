package overlay

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// labelFace is the font used for captions.
var labelFace font.Face = basicfont.Face7x13

// labelPadding is the space between caption text and the tab edge.
const labelPadding = 2

// LineWidth returns the box outline width for an image, growing with the
// image size and never thinner than 2 pixels.
func LineWidth(bounds image.Rectangle) int {
	lw := int(float64(bounds.Dx()+bounds.Dy())/2*0.003 + 0.5)
	if lw < 2 {
		return 2
	}
	return lw
}

// drawBox outlines r with lines of the given thickness drawn inwards, so the
// outline never leaves the box.
func drawBox(dst *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	src := image.NewUniform(c)
	t := min(thickness, (r.Dx()+1)/2, (r.Dy()+1)/2)
	if t < 1 {
		t = 1
	}

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t), // top
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y), // bottom
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y), // left
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y), // right
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Src)
	}
}

// drawLabel draws caption on a filled tab at the box's top-left corner:
// above the box when there is room, inside it otherwise.
func drawLabel(dst *image.RGBA, box image.Rectangle, caption string, bg color.RGBA) {
	metrics := labelFace.Metrics()
	ascent := metrics.Ascent.Ceil()
	height := ascent + metrics.Descent.Ceil() + 2*labelPadding
	width := font.MeasureString(labelFace, caption).Ceil() + 2*labelPadding

	top := box.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = box.Min.Y
	}
	left := box.Min.X
	if right := dst.Bounds().Max.X; left+width > right {
		left = max(dst.Bounds().Min.X, right-width)
	}
	tab := image.Rect(left, top, left+width, top+height)

	draw.Draw(dst, tab.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(textColor(bg)),
		Face: labelFace,
		Dot:  fixed.P(tab.Min.X+labelPadding, tab.Min.Y+labelPadding+ascent),
	}
	d.DrawString(caption)
}
