package clock

import (
	"errors"
	"time"
)

// Fake is a manually advanced clock for tests. Calendar follows the same
// timeline as Now, starting from Start in UTC.
type Fake struct {
	Start   time.Time
	elapsed time.Duration

	// CalendarError, if set, is returned by Calendar.
	CalendarError error

	// OnNow, if set, is called before every Now reading. Tests use it to
	// model work taking time inside an iteration.
	OnNow func(f *Fake)
}

// NewFake creates a Fake starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{Start: start}
}

func (f *Fake) Now() time.Time {
	if f.OnNow != nil {
		f.OnNow(f)
	}
	return f.Start.Add(f.elapsed)
}

func (f *Fake) Calendar() (Calendar, error) {
	if f.CalendarError != nil {
		return Calendar{}, f.CalendarError
	}
	return FromTime(f.Start.Add(f.elapsed).UTC()), nil
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	if d < 0 {
		panic(errors.New("clock: negative advance"))
	}
	f.elapsed += d
}

// Elapsed returns the total time advanced since Start.
func (f *Fake) Elapsed() time.Duration {
	return f.elapsed
}
