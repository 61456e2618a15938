//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/field-logger/internal/indicator"
)

var errUnsupported = errors.New("gpio: not supported on this platform (requires Linux)")

// RealReader is not available on non-Linux platforms.
type RealReader struct{}

// NewRealReader returns an error on non-Linux platforms.
func NewRealReader(chipName string, pinCD, pinAlert int) (*RealReader, error) {
	return nil, errUnsupported
}

// Read is not implemented on non-Linux platforms.
func (r *RealReader) Read() (Inputs, error) {
	return Inputs{}, errUnsupported
}

// Close is not implemented on non-Linux platforms.
func (r *RealReader) Close() error {
	return nil
}

// RealLED is not available on non-Linux platforms.
type RealLED struct{}

// NewRealLED returns an error on non-Linux platforms.
func NewRealLED(chipName string, pinR, pinG, pinB int) (*RealLED, error) {
	return nil, errUnsupported
}

func (l *RealLED) Show(indicator.Color) error { return errUnsupported }

func (l *RealLED) Close() error { return nil }
