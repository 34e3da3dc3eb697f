// Package preview - shows detection results in an OpenCV window.
package preview

import (
	"context"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/mri-detect/overlay"
)

// ToMat converts the side-by-side comparison of r into a BGR Mat.
// The caller must Close the Mat.
func ToMat(r *overlay.Result) (gocv.Mat, error) {
	mat, err := gocv.ImageToMatRGB(overlay.SideBySide(r))
	if err != nil {
		return gocv.NewMat(), errors.Wrap(err, "failed to convert result to Mat")
	}
	return mat, nil
}

// Show displays the original and annotated images side by side and blocks
// until a key is pressed, the window is closed or ctx is done.
//
// Arguments:
//   - ctx: Cancels the preview.
//   - title: The window title.
//   - r: The rendered result.
//
// Returns:
//   - error: An error if the images cannot be converted.
func Show(ctx context.Context, title string, r *overlay.Result) error {
	mat, err := ToMat(r)
	if err != nil {
		return err
	}
	defer mat.Close()

	// open display window
	window := gocv.NewWindow(title)
	defer window.Close()

	window.IMShow(mat)
	for ctx.Err() == nil && window.IsOpen() {
		if window.WaitKey(100) >= 0 {
			break
		}
	}
	return nil
}
