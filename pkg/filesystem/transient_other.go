//go:build !linux && !darwin && !freebsd && !windows

package filesystem

func isTransientError(error) bool { return false }
