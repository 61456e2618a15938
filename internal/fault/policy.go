package fault

import (
	"context"
	"log/slog"
	"time"
)

// Verdict is the outcome of classifying a failure.
type Verdict int

const (
	// Recoverable failures are logged and the loop continues.
	Recoverable Verdict = iota
	// Fatal failures end the process after the fault indication.
	Fatal
	// Interrupt is an operator-requested stop: clean exit, no fault indication.
	Interrupt
)

func (v Verdict) String() string {
	switch v {
	case Recoverable:
		return "recoverable"
	case Fatal:
		return "fatal"
	case Interrupt:
		return "interrupt"
	}
	return "unknown"
}

// Classify maps an error to a Verdict. A nil error is Recoverable.
// Storage and formatter failures are fatal, as is anything unrecognised.
func Classify(err error) Verdict {
	if err == nil {
		return Recoverable
	}
	switch Of(err) {
	case SampleUnavailable, OutOfOrder, ClockUnavailable, IndicatorFailure:
		return Recoverable
	case Interrupted:
		return Interrupt
	default:
		return Fatal
	}
}

// Exit codes returned by Policy.Terminate.
const (
	ExitClean = 0
	ExitFault = 1
)

// Indicator is the subset of the status indicator the policy drives.
type Indicator interface {
	Fault() error
}

// Policy runs the termination sequence.
type Policy struct {
	Indicator Indicator
	Grace     time.Duration
	Log       *slog.Logger

	// Sleep holds the fault color for Grace. Defaults to time.Sleep.
	Sleep func(time.Duration)
}

// Terminate logs err and returns the process exit code. Fatal errors show the
// fault color and hold it for the grace interval first; an interrupt returns
// immediately without touching the indicator.
func (p *Policy) Terminate(err error) int {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	if err == nil {
		return ExitClean
	}
	if Classify(err) == Interrupt {
		log.Info("stopped by operator")
		return ExitClean
	}

	log.Error("fatal fault, terminating", "code", string(Of(err)), "err", err, "grace", p.Grace)
	if p.Indicator != nil {
		if ierr := p.Indicator.Fault(); ierr != nil {
			log.Warn("fault indication failed", "err", ierr)
		}
	}
	if p.Grace > 0 {
		sleep := p.Sleep
		if sleep == nil {
			sleep = time.Sleep
		}
		sleep(p.Grace)
	}
	return ExitFault
}

// IsInterrupt reports whether err means the operator asked to stop.
func IsInterrupt(err error) bool {
	return err != nil && Classify(err) == Interrupt
}

// FromContext converts a cancelled context into an Interrupted error.
func FromContext(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return Wrap(Interrupted, "", ctx.Err())
}
