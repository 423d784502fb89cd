//go:build linux || darwin || freebsd

package filesystem

import (
	"errors"

	"golang.org/x/sys/unix"
)

// isTransientError reports errors caused by another process briefly holding the
// file, which clear up on their own.
func isTransientError(err error) bool {
	return errors.Is(err, unix.EBUSY) ||
		errors.Is(err, unix.ETXTBSY) ||
		errors.Is(err, unix.EAGAIN)
}
