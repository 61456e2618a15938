package watchdog

import "golang.org/x/sys/unix"

func ioctlSetTimeout(fd uintptr, secs int) (int, error) {
	if err := unix.IoctlSetPointerInt(int(fd), unix.WDIOC_SETTIMEOUT, secs); err != nil {
		return 0, err
	}
	// Drivers may round to what the hardware supports.
	return unix.IoctlGetInt(int(fd), unix.WDIOC_GETTIMEOUT)
}
