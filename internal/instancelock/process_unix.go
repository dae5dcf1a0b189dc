//go:build unix

package instancelock

import (
	"errors"

	"golang.org/x/sys/unix"
)

// processAlive reports whether pid names a running process. Signal 0 only
// checks for existence; EPERM means it exists under another user.
func processAlive(pid int) bool {
	if pid <= 0 {
		return true
	}
	err := unix.Kill(pid, 0)
	return !errors.Is(err, unix.ESRCH)
}
