package logic

import "time"

// Schedule tracks the phase of a fixed-period loop. The target wake time for
// tick k is Start + k*Period; delays are derived from elapsed time since
// Start rather than from the previous delay, so iteration cost never
// accumulates as drift.
type Schedule struct {
	Period time.Duration
	Start  time.Time

	// LastDelay is the most recent delay returned by Next.
	LastDelay time.Duration
	// Tick is the grid index of the most recently scheduled wake.
	Tick int64
	// Overruns counts iterations that ran past one or more grid points.
	Overruns int64
	// Missed counts grid points skipped because of overruns.
	Missed int64
}

// NewSchedule creates a Schedule anchored at start. Tick 0 is start itself.
func NewSchedule(period time.Duration, start time.Time) (*Schedule, error) {
	if period <= 0 {
		return nil, ErrBadPeriod
	}
	return &Schedule{Period: period, Start: start}, nil
}

// Next returns how long to wait from now until the next grid point and
// advances Tick to it. The result is never negative: when now sits exactly
// on an unexecuted grid point the delay is zero. After an overrun the
// skipped grid points are dropped, not replayed, and the following wake is
// at the first grid point after now, i.e. Period - (elapsed mod Period).
func (s *Schedule) Next(now time.Time) time.Duration {
	elapsed := now.Sub(s.Start)
	if elapsed < 0 {
		elapsed = 0
	}

	target := int64((elapsed + s.Period - 1) / s.Period)
	if target <= s.Tick {
		target = s.Tick + 1
	}
	if missed := target - s.Tick - 1; missed > 0 {
		s.Overruns++
		s.Missed += missed
	}
	s.Tick = target

	delay := s.Start.Add(time.Duration(target) * s.Period).Sub(now)
	if delay < 0 {
		delay = 0
	}
	s.LastDelay = delay
	return delay
}

// WakeTime returns the absolute target time of grid point k.
func (s *Schedule) WakeTime(k int64) time.Time {
	return s.Start.Add(time.Duration(k) * s.Period)
}
