package overlay

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/mri-detect/detector"
	"github.com/nvr-ai/mri-detect/images"
)

// gradient returns an image whose every pixel differs from its neighbours.
func gradient(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y * 2), B: uint8(x + y), A: 255})
		}
	}
	return img
}

func positive(x1, y1, x2, y2 float32) detector.Detection {
	return detector.Detection{
		Box:   images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2},
		Class: 1,
		Label: "positive",
		Score: 0.87,
	}
}

func TestRender_EmptyDetections(t *testing.T) {
	src := gradient(100, 100)

	res, err := Render(src, nil, 2)
	require.NoError(t, err)

	assert.Equal(t, image.Rect(0, 0, 200, 200), res.Original.Bounds())
	assert.Equal(t, image.Rect(0, 0, 200, 200), res.Annotated.Bounds())
	assert.Equal(t, res.Original.Pix, res.Annotated.Pix, "no detections means the resized original")

	want, err := images.Scale(src, 2)
	require.NoError(t, err)
	assert.Equal(t, want.Pix, res.Original.Pix)
}

func TestRender_NativeScale(t *testing.T) {
	src := gradient(40, 30)

	res, err := Render(src, []detector.Detection{}, 1)
	require.NoError(t, err)
	assert.Equal(t, src.Pix, res.Original.Pix)
	assert.Equal(t, src.Pix, res.Annotated.Pix)
}

func TestRender_Dimensions(t *testing.T) {
	tests := []struct {
		w, h  int
		scale float64
	}{
		{100, 100, 2},
		{640, 480, 0.5},
		{33, 17, 1.5},
		{7, 3, 3},
		{101, 99, 0.25},
	}

	for _, tt := range tests {
		src := gradient(tt.w, tt.h)
		dets := []detector.Detection{positive(1, 1, float32(tt.w)/2, float32(tt.h)/2)}

		res, err := Render(src, dets, tt.scale)
		require.NoError(t, err)

		want := image.Rect(0, 0,
			int(math.Round(float64(tt.w)*tt.scale)),
			int(math.Round(float64(tt.h)*tt.scale)))
		assert.Equal(t, want, res.Original.Bounds(), "%dx%d x%v", tt.w, tt.h, tt.scale)
		assert.Equal(t, want, res.Annotated.Bounds(), "%dx%d x%v", tt.w, tt.h, tt.scale)
	}
}

func TestRender_DrawsBoxes(t *testing.T) {
	src := gradient(100, 100)
	det := positive(20, 30, 60, 80)

	res, err := Style{LineWidth: 2, HideLabels: true}.Render(src, []detector.Detection{det}, 1)
	require.NoError(t, err)

	c := DefaultPalette.Color(1)
	assert.Equal(t, c, res.Annotated.RGBAAt(20, 30), "top-left corner")
	assert.Equal(t, c, res.Annotated.RGBAAt(40, 31), "top edge")
	assert.Equal(t, c, res.Annotated.RGBAAt(59, 50), "right edge")
	assert.Equal(t, c, res.Annotated.RGBAAt(40, 79), "bottom edge")
	assert.Equal(t, src.RGBAAt(40, 50), res.Annotated.RGBAAt(40, 50), "interior untouched")
	assert.Equal(t, src.RGBAAt(10, 10), res.Annotated.RGBAAt(10, 10), "outside untouched")
}

func TestRender_Label(t *testing.T) {
	src := gradient(200, 200)
	det := positive(50, 60, 150, 160)

	withLabel, err := Render(src, []detector.Detection{det}, 1)
	require.NoError(t, err)
	boxOnly, err := Style{HideLabels: true}.Render(src, []detector.Detection{det}, 1)
	require.NoError(t, err)

	// The tab sits right above the box.
	c := DefaultPalette.Color(1)
	assert.Equal(t, c, withLabel.Annotated.RGBAAt(50, 58))
	assert.NotEqual(t, withLabel.Annotated.Pix, boxOnly.Annotated.Pix)
}

func TestRender_ClipsBoxes(t *testing.T) {
	src := gradient(50, 50)
	dets := []detector.Detection{
		positive(-20, -20, 500, 500),
		positive(60, 60, 90, 90),   // fully outside
		positive(40, 10, 10, 40),   // swapped corners
		positive(float32(math.NaN()), 0, 10, 10),
		{Box: images.Rect{X1: 5, Y1: 5, X2: 5, Y2: 30}, Class: 0, Label: "negative", Score: 0.3},
	}

	assert.NotPanics(t, func() {
		res, err := Render(src, dets, 2)
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 100, 100), res.Annotated.Bounds())
	})
}

func TestRender_NoMutationNoAliasing(t *testing.T) {
	src := gradient(64, 48)
	before := images.ComputeChecksum(src)
	dets := []detector.Detection{positive(5, 5, 40, 40)}

	for _, scale := range []float64{1, 2} {
		res, err := Render(src, dets, scale)
		require.NoError(t, err)
		assert.Equal(t, before, images.ComputeChecksum(src))

		res.Original.Pix[0] ^= 0xff
		res.Annotated.Pix[0] ^= 0xff
		assert.Equal(t, before, images.ComputeChecksum(src), "results must not share pixels with the source")
		assert.NotSame(t, &res.Original.Pix[0], &res.Annotated.Pix[0])
	}
}

func TestRender_OffsetBounds(t *testing.T) {
	base := gradient(100, 100)
	sub := base.SubImage(image.Rect(20, 20, 70, 60))

	res, err := Render(sub, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 100, 80), res.Annotated.Bounds())
	assert.Equal(t, res.Original.Pix, res.Annotated.Pix)
}

func TestRender_Errors(t *testing.T) {
	src := gradient(10, 10)

	for _, scale := range []float64{0, -1, math.NaN(), math.Inf(1), 0.01} {
		_, err := Render(src, nil, scale)
		assert.Error(t, err, "scale %v", scale)
	}

	_, err := Render(nil, nil, 1)
	assert.Error(t, err)

	assert.NotPanics(t, func() {
		_, err = Render((*image.RGBA)(nil), nil, 2)
	})
	assert.Error(t, err)

	_, err = Render(image.NewRGBA(image.Rectangle{}), nil, 1)
	assert.Error(t, err)
}

func TestSideBySide(t *testing.T) {
	src := gradient(30, 20)
	res, err := Render(src, []detector.Detection{positive(2, 2, 20, 15)}, 1)
	require.NoError(t, err)

	out := SideBySide(res)
	assert.Equal(t, image.Rect(0, 0, 60, 20), out.Bounds())
	assert.Equal(t, res.Original.RGBAAt(3, 4), out.RGBAAt(3, 4))
	assert.Equal(t, res.Annotated.RGBAAt(2, 2), out.RGBAAt(32, 2))
}

func TestLineWidth(t *testing.T) {
	assert.Equal(t, 2, LineWidth(image.Rect(0, 0, 100, 100)))
	assert.Equal(t, 3, LineWidth(image.Rect(0, 0, 1000, 1000)))
	assert.Equal(t, 6, LineWidth(image.Rect(0, 0, 1920, 1920)))
}

func TestPalette(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x38, B: 0x38, A: 0xff}, DefaultPalette.Color(0))
	assert.Equal(t, DefaultPalette.Color(0), DefaultPalette.Color(len(DefaultPalette)))
	assert.Equal(t, color.RGBA{R: 0xff, A: 0xff}, Palette(nil).Color(3))
}

func TestRender_NonRGBASource(t *testing.T) {
	src := image.NewYCbCr(image.Rect(0, 0, 40, 30), image.YCbCrSubsampleRatio420)
	for i := range src.Y {
		src.Y[i] = uint8(i)
	}
	for i := range src.Cb {
		src.Cb[i], src.Cr[i] = uint8(3*i), uint8(255-i)
	}

	res, err := Render(src, nil, 1.5)
	require.NoError(t, err)
	assert.Equal(t, res.Original.Pix, res.Annotated.Pix)
}
