package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/fault"
)

var t0 = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// fakeSleeper advances the fake clock instead of blocking.
type fakeSleeper struct {
	clk   *clock.Fake
	slept []time.Duration
}

func (f *fakeSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.slept = append(f.slept, d)
	f.clk.Advance(d)
	return nil
}

func newTest(period time.Duration) (*Scheduler, *clock.Fake, *fakeSleeper) {
	clk := clock.NewFake(t0)
	sl := &fakeSleeper{clk: clk}
	s := &Scheduler{Period: period, Clock: clk, Sleeper: sl}
	return s, clk, sl
}

func TestRunNoDriftUnderJitter(t *testing.T) {
	s, clk, _ := newTest(5 * time.Second)
	rng := rand.New(rand.NewSource(42))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wakes []time.Time
	err := s.Run(ctx, func(ctx context.Context) error {
		wakes = append(wakes, clk.Now())
		clk.Advance(time.Duration(rng.Int63n(int64(2 * time.Second))))
		if len(wakes) == 1000 {
			cancel()
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, fault.Interrupt, fault.Classify(err))
	require.Len(t, wakes, 1000)
	for k, w := range wakes {
		if want := t0.Add(time.Duration(k) * 5 * time.Second); !w.Equal(want) {
			t.Fatalf("wake %d: got %v, want %v", k, w, want)
		}
	}
	assert.Zero(t, s.Stats().Overruns)
}

func TestRunHookTimeDoesNotDelayWake(t *testing.T) {
	s, clk, sl := newTest(5 * time.Second)
	s.OnIteration = func(Stats) { clk.Advance(700 * time.Millisecond) }
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wakes []time.Duration
	err := s.Run(ctx, func(ctx context.Context) error {
		wakes = append(wakes, clk.Elapsed())
		clk.Advance(time.Second)
		if len(wakes) == 4 {
			cancel()
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []time.Duration{0, 5 * time.Second, 10 * time.Second, 15 * time.Second}, wakes)
	assert.Equal(t, 3300*time.Millisecond, sl.slept[0])
	assert.Zero(t, s.Stats().Overruns)
}

func TestRunSlowHookRunsImmediately(t *testing.T) {
	s, clk, sl := newTest(5 * time.Second)
	hooks := 0
	s.OnIteration = func(Stats) {
		hooks++
		if hooks == 1 {
			clk.Advance(6 * time.Second) // publish stalled past the grid point
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wakes []time.Duration
	s.Run(ctx, func(ctx context.Context) error {
		wakes = append(wakes, clk.Elapsed())
		if len(wakes) == 3 {
			cancel()
		}
		return nil
	})

	assert.Zero(t, sl.slept[0])
	// The late second iteration is realigned: the third wake is on the grid.
	assert.Equal(t, []time.Duration{0, 6 * time.Second, 10 * time.Second}, wakes)
}

func TestRunOverrunSkipsMissedTicks(t *testing.T) {
	s, clk, sl := newTest(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wakes []time.Duration
	err := s.Run(ctx, func(ctx context.Context) error {
		wakes = append(wakes, clk.Elapsed())
		if len(wakes) == 1 {
			clk.Advance(12 * time.Second)
		}
		if len(wakes) == 3 {
			cancel()
		}
		return nil
	})

	require.ErrorIs(t, err, context.Canceled)
	// 12 s iteration: grid points 5 s and 10 s are skipped, next wake at 15 s.
	assert.Equal(t, []time.Duration{0, 15 * time.Second, 20 * time.Second}, wakes)
	assert.Equal(t, 3*time.Second, sl.slept[0])
	assert.Equal(t, int64(1), s.Stats().Overruns)
	assert.Equal(t, int64(2), s.Stats().Missed)
}

func TestRunExactOverrunRunsImmediately(t *testing.T) {
	s, clk, sl := newTest(5 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	s.Run(ctx, func(ctx context.Context) error {
		n++
		if n == 1 {
			clk.Advance(5 * time.Second)
		}
		if n == 2 {
			cancel()
		}
		return nil
	})

	assert.Equal(t, time.Duration(0), sl.slept[0])
	assert.Equal(t, 2, n)
}

func TestRunFatalStopsLoop(t *testing.T) {
	s, _, _ := newTest(time.Second)
	boom := fault.Wrap(fault.WriteFailure, "append", errors.New("read-only file system"))

	n := 0
	err := s.Run(context.Background(), func(ctx context.Context) error {
		n++
		if n == 3 {
			return boom
		}
		return nil
	})

	assert.ErrorIs(t, err, fault.WriteFailure)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(2), s.Stats().Iterations)
}

func TestRunRecoverableContinues(t *testing.T) {
	s, _, _ := newTest(time.Second)
	var seen []Stats
	s.OnIteration = func(st Stats) { seen = append(seen, st) }

	n := 0
	err := s.Run(context.Background(), func(ctx context.Context) error {
		n++
		switch n {
		case 1:
			return fault.Wrap(fault.SampleUnavailable, "read", errors.New("nack"))
		case 2:
			return fault.Wrap(fault.OutOfOrder, "append", errors.New("older"))
		case 4:
			return fault.FlushFailure
		}
		return nil
	})

	assert.ErrorIs(t, err, fault.FlushFailure)
	require.Len(t, seen, 3)
	assert.Equal(t, int64(2), seen[2].Recoverable)
	assert.Equal(t, int64(3), seen[2].Iterations)
}

func TestRunCancelledDuringSleep(t *testing.T) {
	s, _, _ := newTest(time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	s.Sleeper = sleeperFunc(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	})

	n := 0
	err := s.Run(ctx, func(ctx context.Context) error {
		n++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
}

func TestRunStartDelay(t *testing.T) {
	s, clk, sl := newTest(5 * time.Second)
	s.StartDelay = 5 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var first time.Duration
	s.Run(ctx, func(ctx context.Context) error {
		first = clk.Elapsed()
		cancel()
		return nil
	})

	assert.Equal(t, 5*time.Second, first)
	assert.Equal(t, 5*time.Second, sl.slept[0])
}

func TestRunStartDelayInterrupted(t *testing.T) {
	s, _, _ := newTest(5 * time.Second)
	s.StartDelay = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.Run(ctx, func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}

func TestRunBadPeriod(t *testing.T) {
	s, _, _ := newTest(0)
	err := s.Run(context.Background(), func(ctx context.Context) error { return nil })
	assert.Error(t, err)
}

func TestTimerSleeper(t *testing.T) {
	var s TimerSleeper
	assert.NoError(t, s.Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, s.Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	assert.ErrorIs(t, s.Sleep(ctx, time.Hour), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

type sleeperFunc func(ctx context.Context, d time.Duration) error

func (f sleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }
