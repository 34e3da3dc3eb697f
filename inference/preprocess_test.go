package inference

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/mri-detect/images"
)

func TestPrepareInput(t *testing.T) {
	tests := []struct {
		name string
		img  image.Image
	}{
		{name: "rgba", img: fill(image.NewRGBA(image.Rect(0, 0, 50, 30)))},
		{name: "rgba sub image", img: fill(image.NewRGBA(image.Rect(0, 0, 80, 80))).SubImage(image.Rect(10, 10, 40, 60))},
		{name: "nrgba", img: fill(image.NewNRGBA(image.Rect(0, 0, 32, 32)))},
		{name: "already input size", img: fill(image.NewRGBA(image.Rect(0, 0, 64, 64)))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size := 64
			plane := size * size
			dst := make([]float32, 3*plane)

			lb, err := PrepareInput(tt.img, size, dst)
			require.NoError(t, err)

			// First, centre and last pixel of the scaled image.
			for _, p := range []image.Point{
				{lb.PadLeft, lb.PadTop},
				{lb.PadLeft + lb.Width/2, lb.PadTop + lb.Height/2},
				{lb.PadLeft + lb.Width - 1, lb.PadTop + lb.Height - 1},
			} {
				i := p.Y*size + p.X
				assert.InDelta(t, 51.0/255, dst[i], 1e-6, "red at %v", p)
				assert.InDelta(t, 102.0/255, dst[plane+i], 1e-6, "green at %v", p)
				assert.InDelta(t, 204.0/255, dst[2*plane+i], 1e-6, "blue at %v", p)
			}
		})
	}
}

func TestPrepareInput_Letterbox(t *testing.T) {
	size := 64
	plane := size * size
	dst := make([]float32, 3*plane)

	img := fill(image.NewRGBA(image.Rect(0, 0, 100, 50)))
	lb, err := PrepareInput(img, size, dst)
	require.NoError(t, err)
	assert.Equal(t, Letterbox{Scale: 0.64, PadLeft: 0, PadTop: 16, Width: 64, Height: 32}, lb)

	gray := 114.0 / 255
	tests := []struct {
		row  int
		want [3]float64
	}{
		{row: 0, want: [3]float64{gray, gray, gray}},
		{row: 15, want: [3]float64{gray, gray, gray}},
		{row: 16, want: [3]float64{51.0 / 255, 102.0 / 255, 204.0 / 255}},
		{row: 47, want: [3]float64{51.0 / 255, 102.0 / 255, 204.0 / 255}},
		{row: 48, want: [3]float64{gray, gray, gray}},
		{row: 63, want: [3]float64{gray, gray, gray}},
	}
	for _, tt := range tests {
		for _, x := range []int{0, size / 2, size - 1} {
			i := tt.row*size + x
			assert.InDelta(t, tt.want[0], dst[i], 1e-6, "red row %d col %d", tt.row, x)
			assert.InDelta(t, tt.want[1], dst[plane+i], 1e-6, "green row %d col %d", tt.row, x)
			assert.InDelta(t, tt.want[2], dst[2*plane+i], 1e-6, "blue row %d col %d", tt.row, x)
		}
	}
}

func TestNewLetterbox(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		size          int
		want          Letterbox
	}{
		{name: "square", width: 256, height: 256, size: 640, want: Letterbox{Scale: 2.5, Width: 640, Height: 640}},
		{name: "landscape", width: 320, height: 160, size: 640, want: Letterbox{Scale: 2, PadTop: 160, Width: 640, Height: 320}},
		{name: "portrait", width: 50, height: 70, size: 640, want: Letterbox{Scale: 640.0 / 70, PadLeft: 91, Width: 457, Height: 640}},
		{name: "odd padding", width: 3, height: 1, size: 64, want: Letterbox{Scale: 64.0 / 3, PadTop: 21, Width: 64, Height: 21}},
		{name: "single pixel", width: 1, height: 1, size: 640, want: Letterbox{Scale: 640, Width: 640, Height: 640}},
		{name: "thin strip", width: 1000, height: 1, size: 64, want: Letterbox{Scale: 0.064, PadTop: 31, Width: 64, Height: 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb, err := NewLetterbox(tt.width, tt.height, tt.size)
			require.NoError(t, err)
			assert.InDelta(t, tt.want.Scale, lb.Scale, 1e-9)
			lb.Scale = tt.want.Scale
			assert.Equal(t, tt.want, lb)
		})
	}

	_, err := NewLetterbox(0, 10, 640)
	assert.Error(t, err)
}

func TestLetterbox_Unmap(t *testing.T) {
	lb, err := NewLetterbox(320, 160, 640)
	require.NoError(t, err)

	got := lb.Unmap(images.Rect{X1: 288, Y1: 288, X2: 352, Y2: 352})
	assert.Equal(t, images.Rect{X1: 144, Y1: 64, X2: 176, Y2: 96}, got)

	// The padding maps outside the source image.
	top := lb.Unmap(images.Rect{X1: 0, Y1: 0, X2: 640, Y2: 160})
	assert.Equal(t, images.Rect{X1: 0, Y1: -80, X2: 320, Y2: 0}, top)
}

func TestPrepareInput_DoesNotMutate(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for i := range img.Pix {
		img.Pix[i] = uint8(i)
	}
	before := images.ComputeChecksum(img)

	dst := make([]float32, 3*64*64)
	_, err := PrepareInput(img, 64, dst)
	require.NoError(t, err)
	assert.Equal(t, before, images.ComputeChecksum(img))
}

func TestPrepareInput_ShortBuffer(t *testing.T) {
	_, err := PrepareInput(image.NewRGBA(image.Rect(0, 0, 4, 4)), 64, make([]float32, 10))
	assert.Error(t, err)
}

type settable interface {
	image.Image
	Set(x, y int, c color.Color)
}

func fill[T settable](img T) T {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, color.RGBA{R: 51, G: 102, B: 204, A: 255})
		}
	}
	return img
}
