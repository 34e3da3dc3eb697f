package overlay

import (
	"image/color"
	"strconv"
)

// Palette maps class indices to box colours.
type Palette []color.RGBA

// DefaultPalette is the ultralytics plotting palette, so annotations look the
// same as the ones the model was validated with.
var DefaultPalette = mustPalette(
	"FF3838", "FF9D97", "FF701F", "FFB21D", "CFD231",
	"48F90A", "92CC17", "3DDB86", "1A9334", "00D4BB",
	"2C99A8", "00C2FF", "344593", "6473FF", "0018EC",
	"8438FF", "520085", "CB38FF", "FF95C8", "FF37C7",
)

// Color returns the colour for class, cycling through the palette.
func (p Palette) Color(class int) color.RGBA {
	if len(p) == 0 {
		return color.RGBA{R: 0xff, A: 0xff}
	}
	if class < 0 {
		class = -class
	}
	return p[class%len(p)]
}

// textColor picks black or white, whichever reads better on bg.
func textColor(bg color.RGBA) color.RGBA {
	luma := 0.299*float64(bg.R) + 0.587*float64(bg.G) + 0.114*float64(bg.B)
	if luma > 150 {
		return color.RGBA{A: 0xff}
	}
	return color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
}

func mustPalette(hexes ...string) Palette {
	p := make(Palette, len(hexes))
	for i, h := range hexes {
		v, err := strconv.ParseUint(h, 16, 32)
		if err != nil {
			panic(err)
		}
		p[i] = color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
	}
	return p
}
