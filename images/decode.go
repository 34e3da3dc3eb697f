package images

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"

	"github.com/chai2010/webp"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ImageFormat represents supported image formats
type ImageFormat string

// ImageFormat constants
const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is the TIFF image format.
	FormatTIFF ImageFormat = "tiff"
)

var formatsByMIME = map[string]ImageFormat{
	"image/jpeg": FormatJPEG,
	"image/png":  FormatPNG,
	"image/webp": FormatWebP,
	"image/bmp":  FormatBMP,
	"image/tiff": FormatTIFF,
}

// DetectFormat sniffs the image format from its leading bytes.
//
// Arguments:
//   - data: The encoded image.
//
// Returns:
//   - ImageFormat: The detected format.
//   - error: An error if the payload is not a supported image.
func DetectFormat(data []byte) (ImageFormat, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty image data")
	}
	mime := mimetype.Detect(data)
	for m, f := range formatsByMIME {
		if mime.Is(m) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unsupported image type: %s", mime.String())
}

// Decode decodes an encoded image into an opaque RGB raster.
//
// Alpha is flattened onto black so that every decoded image carries the same
// three colour channels regardless of the source format.
//
// Arguments:
//   - data: The encoded image bytes (JPEG, PNG, WebP, BMP or TIFF).
//
// Returns:
//   - *image.RGBA: The decoded image with bounds starting at the origin.
//   - ImageFormat: The detected source format.
//   - error: An error if the format is unsupported or decoding fails.
func Decode(data []byte) (*image.RGBA, ImageFormat, error) {
	format, err := DetectFormat(data)
	if err != nil {
		return nil, "", err
	}

	var src image.Image
	r := bytes.NewReader(data)
	switch format {
	case FormatJPEG:
		src, err = jpeg.Decode(r)
	case FormatPNG:
		src, err = png.Decode(r)
	case FormatWebP:
		src, err = webp.Decode(r)
	case FormatBMP:
		src, err = bmp.Decode(r)
	case FormatTIFF:
		src, err = tiff.Decode(r)
	}
	if err != nil {
		return nil, "", errors.Wrapf(err, "failed to decode %s image", format)
	}

	return ToRGB(src), format, nil
}

// DecodeFile reads and decodes the image at path.
//
// Arguments:
//   - path: The image file path.
//
// Returns:
//   - *image.RGBA: The decoded image.
//   - ImageFormat: The detected format.
//   - error: An error if reading or decoding fails.
func DecodeFile(path string) (*image.RGBA, ImageFormat, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "failed to read image")
	}
	return Decode(data)
}

// ToRGB copies img into a new RGBA buffer with every pixel fully opaque.
func ToRGB(img image.Image) *image.RGBA {
	dst := Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		if dst.Pix[i] == 0xff {
			continue
		}
		// Premultiplied RGBA: compositing over black keeps the colour channels.
		dst.Pix[i] = 0xff
	}
	return dst
}
