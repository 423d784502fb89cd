//go:build windows

package filesystem

import (
	"errors"

	"golang.org/x/sys/windows"
)

// isTransientError reports sharing and lock violations, typically raised while
// an antivirus scanner or indexer has the file open.
func isTransientError(err error) bool {
	return errors.Is(err, windows.ERROR_SHARING_VIOLATION) ||
		errors.Is(err, windows.ERROR_LOCK_VIOLATION)
}
