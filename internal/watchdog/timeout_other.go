//go:build !linux

package watchdog

import "errors"

func ioctlSetTimeout(fd uintptr, secs int) (int, error) {
	return 0, errors.ErrUnsupported
}
