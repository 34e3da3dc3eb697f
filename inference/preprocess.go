package inference

import (
	"fmt"
	"image"
)

// PrepareInput fills dst with img letterboxed into size x size, laid out as
// planar NCHW RGB scaled to [0, 1].
//
// img is only read; the letterbox is drawn into its own buffer.
//
// Arguments:
//   - img: The image to prepare.
//   - size: The square model input resolution.
//   - dst: The destination tensor data to populate (at least 3*size*size floats).
//
// Returns:
//   - Letterbox: The geometry needed to map output boxes back onto img.
//   - error: An error if the input preparation fails.
func PrepareInput(img image.Image, size int, dst []float32) (Letterbox, error) {
	channelSize := size * size
	if len(dst) < (channelSize * 3) {
		return Letterbox{}, fmt.Errorf("Destination tensor only holds %d floats, needs "+
			"%d (make sure it's the right shape!)", len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	b := img.Bounds()
	lb, err := NewLetterbox(b.Dx(), b.Dy(), size)
	if err != nil {
		return Letterbox{}, err
	}
	canvas, err := lb.Apply(img, size)
	if err != nil {
		return Letterbox{}, err
	}

	i := 0
	for y := 0; y < size; y++ {
		row := canvas.Pix[y*canvas.Stride : y*canvas.Stride+size*4]
		for x := 0; x < size; x++ {
			red[i] = float32(row[x*4+0]) / 255.0
			green[i] = float32(row[x*4+1]) / 255.0
			blue[i] = float32(row[x*4+2]) / 255.0
			i++
		}
	}
	return lb, nil
}
