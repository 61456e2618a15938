// Package clock provides the time sources used by the logger: a monotonic
// reading for scheduling and a calendar reading for record timestamps and
// file naming.
package clock

import (
	"fmt"
	"time"
)

// Clock is the time collaborator consumed by the acquisition loop.
type Clock interface {
	// Now returns a reading carrying the monotonic clock, used only for
	// scheduling arithmetic.
	Now() time.Time

	// Calendar returns the current calendar date and time.
	Calendar() (Calendar, error)
}

// Calendar holds broken-down calendar fields as reported by an RTC.
// Subsecond is in microseconds.
type Calendar struct {
	Year      int
	Month     int
	Day       int
	Hour      int
	Minute    int
	Second    int
	Subsecond int
}

// FromTime converts t to calendar fields in t's location.
func FromTime(t time.Time) Calendar {
	return Calendar{
		Year:      t.Year(),
		Month:     int(t.Month()),
		Day:       t.Day(),
		Hour:      t.Hour(),
		Minute:    t.Minute(),
		Second:    t.Second(),
		Subsecond: t.Nanosecond() / 1000,
	}
}

// Time converts the calendar back to a UTC time.Time.
func (c Calendar) Time() time.Time {
	return time.Date(c.Year, time.Month(c.Month), c.Day, c.Hour, c.Minute, c.Second, c.Subsecond*1000, time.UTC)
}

// Timestamp renders YYYY-MM-DDTHH:MM:SS.
func (c Calendar) Timestamp() string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second)
}

// Date renders YYYY-MM-DD.
func (c Calendar) Date() string {
	return fmt.Sprintf("%04d-%02d-%02d", c.Year, c.Month, c.Day)
}

// Compare orders two calendars at one-second resolution, returning -1, 0
// or +1. Subsecond is ignored because records carry whole seconds.
func (c Calendar) Compare(o Calendar) int {
	a := [...]int{c.Year, c.Month, c.Day, c.Hour, c.Minute, c.Second}
	b := [...]int{o.Year, o.Month, o.Day, o.Hour, o.Minute, o.Second}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// IsZero reports whether no fields are set.
func (c Calendar) IsZero() bool {
	return c == Calendar{}
}

// System reads the operating system clock in UTC.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Calendar() (Calendar, error) {
	return FromTime(time.Now().UTC()), nil
}
