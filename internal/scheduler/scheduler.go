// Package scheduler runs one job at a fixed period, compensating for the
// job's own run time so the cadence does not drift.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/fault"
	"github.com/sweeney/field-logger/internal/logic"
)

// Sleeper waits for d or until ctx is done, returning ctx.Err() in the
// latter case.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// TimerSleeper sleeps on a time.Timer.
type TimerSleeper struct{}

func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Iteration is one unit of periodic work. Errors are classified with
// fault.Classify: recoverable errors are logged and the loop continues.
type Iteration func(ctx context.Context) error

// Stats describes the loop's progress.
type Stats struct {
	Iterations  int64
	Recoverable int64
	Overruns    int64
	Missed      int64
	LastDelay   time.Duration
	LastRun     time.Duration
}

// Scheduler owns the schedule phase. It is not safe for concurrent Run calls.
type Scheduler struct {
	Period     time.Duration
	StartDelay time.Duration
	Clock      clock.Clock
	Sleeper    Sleeper
	Log        *slog.Logger

	// OnIteration, if set, is called after every iteration with the
	// updated stats.
	OnIteration func(Stats)

	stats Stats
}

// New returns a scheduler using the system clock and a timer sleeper.
func New(period time.Duration, log *slog.Logger) *Scheduler {
	return &Scheduler{
		Period:  period,
		Clock:   clock.System{},
		Sleeper: TimerSleeper{},
		Log:     log,
	}
}

// Run calls it once per period until ctx is cancelled or it returns a fatal
// error. The wake time of iteration k is Start + k*Period, where Start is
// read once after the optional start delay. An iteration that overruns one
// or more periods is followed immediately by the next grid point after it
// finished; missed grid points are not replayed.
//
// Run returns ctx.Err() on cancellation and the iteration's error when it
// is fatal.
func (s *Scheduler) Run(ctx context.Context, it Iteration) error {
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	if s.Clock == nil {
		s.Clock = clock.System{}
	}
	if s.Sleeper == nil {
		s.Sleeper = TimerSleeper{}
	}

	if s.StartDelay > 0 {
		log.Info("waiting before first sample", "delay", s.StartDelay)
		if err := s.Sleeper.Sleep(ctx, s.StartDelay); err != nil {
			return err
		}
	}

	sched, err := logic.NewSchedule(s.Period, s.Clock.Now())
	if err != nil {
		return err
	}
	log.Info("scheduler started", "period", s.Period)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		began := s.Clock.Now()
		err := it(ctx)
		switch fault.Classify(err) {
		case fault.Interrupt, fault.Fatal:
			return err
		}
		if err != nil {
			s.stats.Recoverable++
			log.Warn("iteration degraded", "err", err, "code", string(fault.Of(err)))
		}

		now := s.Clock.Now()
		overruns := sched.Overruns
		delay := sched.Next(now)
		if sched.Overruns > overruns {
			log.Warn("iteration overran period",
				"took", now.Sub(began), "period", s.Period, "skipped", sched.Missed-s.stats.Missed)
		}

		s.stats.Iterations++
		s.stats.Overruns = sched.Overruns
		s.stats.Missed = sched.Missed
		s.stats.LastDelay = delay
		s.stats.LastRun = now.Sub(began)
		if s.OnIteration != nil {
			s.OnIteration(s.stats)
			// The hook may block (MQTT publish); sleep only what is left
			// until the grid point.
			delay = sched.WakeTime(sched.Tick).Sub(s.Clock.Now())
			if delay < 0 {
				delay = 0
			}
		}

		if err := s.Sleeper.Sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// Stats returns the counters from the current or last Run.
func (s *Scheduler) Stats() Stats { return s.stats }
