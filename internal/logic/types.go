// Package logic contains the pure arithmetic behind the logger's loop:
// drift-compensated schedule phase, flush bookkeeping and heartbeat timing.
// This package has NO external dependencies (no GPIO, I2C, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"errors"
	"time"
)

// ErrBadPeriod is returned when a schedule period is not positive.
var ErrBadPeriod = errors.New("logic: period must be positive")

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
}
