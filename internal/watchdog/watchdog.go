// Package watchdog keeps a Linux hardware watchdog (/dev/watchdog) fed.
// Once opened the device must be written to before its timeout or the
// board resets. Close disarms it with the magic character.
package watchdog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

const (
	keepalive  = "k"
	magicClose = "V"
)

// setTimeout programs the device timeout in whole seconds and returns
// the value the driver accepted. Replaced in tests.
var setTimeout = ioctlSetTimeout

// Watchdog feeds a watchdog device. A nil *Watchdog is a no-op.
type Watchdog struct {
	mu      sync.Mutex
	dev     io.WriteCloser
	kicks   int64
	closed  bool
	timeout time.Duration
}

// Open arms the watchdog at path and sets its timeout. A timeout of zero
// keeps the driver default; others round up to whole seconds.
// If the driver rejects the timeout the device is disarmed and closed.
func Open(path string, timeout time.Duration) (*Watchdog, error) {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("open watchdog: %w", err)
	}
	w := New(f)
	if timeout <= 0 {
		return w, nil
	}
	secs := int((timeout + time.Second - 1) / time.Second)
	got, err := setTimeout(f.Fd(), secs)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("set watchdog timeout %ds: %w", secs, err)
	}
	w.timeout = time.Duration(got) * time.Second
	return w, nil
}

// New wraps an already-open device.
func New(dev io.WriteCloser) *Watchdog {
	return &Watchdog{dev: dev}
}

// Kick resets the watchdog timer.
func (w *Watchdog) Kick() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return os.ErrClosed
	}
	if _, err := io.WriteString(w.dev, keepalive); err != nil {
		return fmt.Errorf("kick watchdog: %w", err)
	}
	w.kicks++
	return nil
}

// Timeout returns the timeout the driver accepted, or zero when Open
// left the driver default in place.
func (w *Watchdog) Timeout() time.Duration {
	if w == nil {
		return 0
	}
	return w.timeout
}

// Kicks returns the number of successful kicks.
func (w *Watchdog) Kicks() int64 {
	if w == nil {
		return 0
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.kicks
}

// Close disarms the watchdog and closes the device. Drivers built with
// nowayout ignore the magic character and will still reset the board.
func (w *Watchdog) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	_, werr := io.WriteString(w.dev, magicClose)
	if err := w.dev.Close(); err != nil {
		return fmt.Errorf("close watchdog: %w", err)
	}
	if werr != nil {
		return fmt.Errorf("disarm watchdog: %w", werr)
	}
	return nil
}
