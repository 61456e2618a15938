package clock

import (
	"log/slog"
	"time"
)

// TimeReader reads wall time from a hardware real-time clock.
type TimeReader interface {
	ReadTime() (time.Time, error)
}

// RTC takes calendar readings from a hardware RTC and falls back to the
// system clock when a read fails. Scheduling always uses the monotonic
// system clock.
type RTC struct {
	dev      TimeReader
	log      *slog.Logger
	fallback Clock
	failing  bool
}

// NewRTC wraps dev. A nil logger uses slog.Default.
func NewRTC(dev TimeReader, log *slog.Logger) *RTC {
	if log == nil {
		log = slog.Default()
	}
	return &RTC{dev: dev, log: log, fallback: System{}}
}

func (r *RTC) Now() time.Time { return r.fallback.Now() }

// Calendar returns the RTC's time. A failed read is logged once per outage
// and the system clock is used instead.
func (r *RTC) Calendar() (Calendar, error) {
	t, err := r.dev.ReadTime()
	if err != nil {
		if !r.failing {
			r.log.Warn("rtc read failed, using system clock", "err", err)
			r.failing = true
		}
		return r.fallback.Calendar()
	}
	if r.failing {
		r.log.Info("rtc readable again")
		r.failing = false
	}
	return FromTime(t), nil
}
