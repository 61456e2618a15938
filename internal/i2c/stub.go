//go:build !linux

package i2c

import "errors"

var errUnsupported = errors.New("i2c: not supported on this platform (requires Linux)")

// LinuxBus is not available on non-Linux platforms.
type LinuxBus struct{}

// Open returns an error on non-Linux platforms.
func Open(n int) (*LinuxBus, error) {
	return nil, errUnsupported
}

func (b *LinuxBus) Tx(addr uint16, w, r []byte) error { return errUnsupported }

func (b *LinuxBus) Close() error { return nil }
