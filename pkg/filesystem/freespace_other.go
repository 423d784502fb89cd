//go:build !linux && !darwin && !freebsd && !windows

package filesystem

import (
	"fmt"
	"runtime"
)

func freeBytes(string) (uint64, error) {
	return 0, fmt.Errorf("free space probing is not supported on %s", runtime.GOOS)
}
