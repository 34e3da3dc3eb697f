package artifact

import "fmt"

// DownloadError is returned by Ensure when the artifact could not be made
// available locally. The local path is left untouched.
type DownloadError struct {
	Locator string
	Err     error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.Locator, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
