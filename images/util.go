package images

import (
	"crypto/md5"
	"fmt"
	"image"
	"reflect"
)

// IsNil reports whether img is nil, including typed nil pointers such as
// (*image.RGBA)(nil) whose Bounds method would panic.
func IsNil(img image.Image) bool {
	if img == nil {
		return true
	}
	v := reflect.ValueOf(img)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// ComputeChecksum generates a deterministic checksum of an image's pixels.
//
// Used to verify that an operation left its input byte-identical.
//
// Arguments:
//   - img: The image to compute checksum for.
//
// Returns:
//   - A hex-encoded MD5 checksum string.
//
// Example:
//
// ```go
//
//	before := ComputeChecksum(img)
//	_, _ = handle.Predict(ctx, img)
//	fmt.Println(before == ComputeChecksum(img)) // true
//
// ```
func ComputeChecksum(img image.Image) string {
	if IsNil(img) || img.Bounds().Empty() {
		return "empty"
	}

	hash := md5.New()
	fmt.Fprintf(hash, "%v|", img.Bounds())
	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == 4*rgba.Rect.Dx() && len(rgba.Pix) == rgba.Stride*rgba.Rect.Dy() {
		hash.Write(rgba.Pix)
		return fmt.Sprintf("%x", hash.Sum(nil))
	}

	b := img.Bounds()
	px := make([]byte, 8)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			px[0], px[1] = byte(r>>8), byte(r)
			px[2], px[3] = byte(g>>8), byte(g)
			px[4], px[5] = byte(bl>>8), byte(bl)
			px[6], px[7] = byte(a>>8), byte(a)
			hash.Write(px)
		}
	}
	return fmt.Sprintf("%x", hash.Sum(nil))
}
