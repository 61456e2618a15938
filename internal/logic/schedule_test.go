package logic

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewScheduleRejectsBadPeriod(t *testing.T) {
	_, err := NewSchedule(0, t0)
	assert.ErrorIs(t, err, ErrBadPeriod)
	_, err = NewSchedule(-time.Second, t0)
	assert.ErrorIs(t, err, ErrBadPeriod)
}

// TestScheduleNoCumulativeDrift runs many iterations with random work
// durations shorter than the period and checks every wake lands on the grid.
func TestScheduleNoCumulativeDrift(t *testing.T) {
	periods := []time.Duration{10 * time.Millisecond, time.Second, 5 * time.Second, 7919 * time.Microsecond}
	rng := rand.New(rand.NewSource(42))

	for _, period := range periods {
		s, err := NewSchedule(period, t0)
		require.NoError(t, err)
		now := t0
		for n := int64(1); n <= 1000; n++ {
			work := time.Duration(rng.Int63n(int64(period)))
			now = now.Add(work)
			now = now.Add(s.Next(now))

			want := t0.Add(time.Duration(n) * period)
			require.True(t, now.Equal(want), "period %v: wake %d at %v, want %v", period, n, now.Sub(t0), want.Sub(t0))
		}
		assert.Zero(t, s.Overruns, "period %v", period)
	}
}

func TestScheduleZeroWorkWaitsFullPeriod(t *testing.T) {
	s, _ := NewSchedule(time.Second, t0)

	assert.Equal(t, time.Second, s.Next(t0))
	assert.Equal(t, int64(1), s.Tick)
}

func TestScheduleOverrun(t *testing.T) {
	period := 5 * time.Second
	s, _ := NewSchedule(period, t0)

	// First iteration takes 7.5s: one grid point (5s) is missed.
	now := t0.Add(7500 * time.Millisecond)
	d := s.Next(now)

	overrun := 7500*time.Millisecond - period
	assert.Equal(t, period-overrun%period, d)
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, int64(1), s.Overruns)
	assert.Equal(t, int64(1), s.Missed)

	// The next iteration is short again and phase is restored to the grid.
	now = now.Add(d)
	assert.Equal(t, 10*time.Second, now.Sub(t0))
	now = now.Add(300 * time.Millisecond)
	now = now.Add(s.Next(now))
	assert.Equal(t, 15*time.Second, now.Sub(t0), "phase restored")
	assert.Equal(t, int64(1), s.Overruns)
}

func TestScheduleOverrunMultiplePeriods(t *testing.T) {
	s, _ := NewSchedule(time.Second, t0)

	assert.Equal(t, 750*time.Millisecond, s.Next(t0.Add(3250*time.Millisecond)))
	assert.Equal(t, int64(3), s.Missed)
	assert.Equal(t, int64(4), s.Tick)
}

func TestScheduleExactlyOnePeriodRunsImmediately(t *testing.T) {
	s, _ := NewSchedule(time.Second, t0)

	assert.Zero(t, s.Next(t0.Add(time.Second)))
	assert.Zero(t, s.Overruns)
	// Running the deferred tick immediately and finishing quickly must
	// not schedule another zero delay for the same grid point.
	assert.Equal(t, time.Second, s.Next(t0.Add(time.Second)))
}

func TestScheduleClockBeforeStart(t *testing.T) {
	s, _ := NewSchedule(time.Second, t0)

	assert.GreaterOrEqual(t, s.Next(t0.Add(-time.Hour)), time.Duration(0))
}

func TestScheduleWakeTime(t *testing.T) {
	s, _ := NewSchedule(250*time.Millisecond, t0)
	assert.Equal(t, 2*time.Second, s.WakeTime(8).Sub(t0))
}
