// Package acquire implements one pass of the logging loop: timestamp,
// sample, format, append, indicate.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/fault"
	"github.com/sweeney/field-logger/internal/gpio"
	"github.com/sweeney/field-logger/internal/indicator"
	"github.com/sweeney/field-logger/internal/metrics"
	"github.com/sweeney/field-logger/internal/record"
	"github.com/sweeney/field-logger/internal/sample"
	"github.com/sweeney/field-logger/internal/scheduler"
	"github.com/sweeney/field-logger/internal/status"
	"github.com/sweeney/field-logger/internal/storage"
)

// ErrCardRemoved is reported when the card-detect input shows no card.
var ErrCardRemoved = errors.New("sd card removed")

// Writer appends records to the durable log.
type Writer interface {
	Append(path string, ts clock.Calendar, line record.Line) (bool, error)
	Stats() storage.Stats
}

// Indicator shows logger states on the status pixel.
type Indicator interface {
	Set(indicator.State) error
	Voltage(v float64) error
	Current() (indicator.State, indicator.Color, string)
}

// Kicker feeds a watchdog.
type Kicker interface {
	Kick() error
}

// Loop holds the collaborators of one acquisition pass. Inputs, Watchdog,
// Tracker and Metrics are optional.
type Loop struct {
	Clock          clock.Clock
	Source         sample.Source
	Formatter      *record.Formatter
	Writer         Writer
	Indicator      Indicator
	IndicatorField string
	Mount          string

	Inputs   gpio.Reader
	Watchdog Kicker
	Tracker  *status.Tracker
	Metrics  *metrics.Metrics
	Log      *slog.Logger

	alert bool
}

// Iterate runs one pass. The returned error is nil, recoverable (the
// record may be missing but the loop continues) or fatal, as classified
// by fault.Classify.
func (l *Loop) Iterate(ctx context.Context) error {
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	began := l.Clock.Now()
	var soft []error

	if err := ctx.Err(); err != nil {
		return fault.FromContext(ctx)
	}

	cal, err := l.Clock.Calendar()
	if err != nil {
		return l.recoverable(fault.Wrap(fault.ClockUnavailable, "read calendar", err))
	}

	if err := l.checkInputs(log); err != nil {
		return err
	}

	readings := l.Source.ReadAll()
	set := sample.Set{Timestamp: cal, Readings: readings}
	for _, r := range set.Unavailable() {
		log.Debug("reading unavailable", "channel", r.Name, "err", r.Err)
	}

	line := l.Formatter.Set(set)
	if err := line.Validate(); err != nil {
		return fault.Wrap(fault.FormatError, "format record", err)
	}

	if err := l.Indicator.Set(indicator.Sampling); err != nil {
		soft = append(soft, err)
	}

	path := record.FileName(l.Mount, cal)
	flushed, err := l.Writer.Append(path, cal, line)
	if err != nil {
		if fault.Classify(err) != fault.Recoverable {
			l.setError(err)
			return err
		}
		log.Warn("record dropped", "path", path, "timestamp", cal.Timestamp(), "err", err)
		soft = append(soft, err)
	} else {
		log.Debug("record written", "path", path, "line", string(line[:len(line)-1]), "flushed", flushed)
		l.Metrics.RecordWritten(cal.Time())
	}

	if err := l.Indicator.Voltage(l.indicatorValue(set)); err != nil {
		soft = append(soft, err)
	}

	if l.Watchdog != nil {
		if err := l.Watchdog.Kick(); err != nil {
			log.Warn("watchdog kick failed", "err", err)
		}
	}

	l.publish(cal, line, set, l.Clock.Now().Sub(began))

	for _, e := range soft {
		l.Metrics.Recoverable(string(fault.Of(e)))
	}
	return errors.Join(soft...)
}

// checkInputs reads the card-detect and battery-alert lines. A missing
// card is fatal: the medium is gone.
func (l *Loop) checkInputs(log *slog.Logger) error {
	if l.Inputs == nil {
		return nil
	}
	in, err := l.Inputs.Read()
	if err != nil {
		log.Warn("gpio read error", "err", err)
		return nil
	}
	present, alert := in.CardPresent, in.BatteryAlert
	if l.Tracker != nil {
		l.Tracker.SetInputs(present, alert)
	}
	l.Metrics.Inputs(present, alert)
	if alert != l.alert {
		if alert {
			log.Warn("battery alert asserted")
		} else {
			log.Info("battery alert cleared")
		}
		l.alert = alert
	}
	if !present {
		err := fault.Wrap(fault.WriteFailure, "card detect", ErrCardRemoved)
		l.setError(err)
		return err
	}
	return nil
}

func (l *Loop) indicatorValue(set sample.Set) float64 {
	if l.IndicatorField == "" {
		return math.NaN()
	}
	r, ok := set.Get(l.IndicatorField)
	if !ok || !r.Available() {
		return math.NaN()
	}
	return r.Value
}

func (l *Loop) setError(err error) {
	if l.Tracker != nil {
		l.Tracker.SetError(err)
	}
}

func (l *Loop) recoverable(err error) error {
	l.Metrics.Recoverable(string(fault.Of(err)))
	return err
}

func (l *Loop) publish(cal clock.Calendar, line record.Line, set sample.Set, took time.Duration) {
	l.Metrics.Iteration(took)
	st := l.Writer.Stats()
	l.Metrics.UpdateStorage(st.Appends, st.Flushes, st.Rejected, st.CyclesSinceSync)

	readings := make([]status.Reading, len(set.Readings))
	for i, r := range set.Readings {
		readings[i] = status.Reading{Name: r.Name, Value: r.Value, Available: r.Available()}
		if r.Err != nil {
			readings[i].Error = r.Err.Error()
		}
		l.Metrics.Reading(r.Name, r.Value, r.Available())
	}

	if l.Tracker == nil {
		return
	}
	l.Tracker.Record(cal.Timestamp(), string(line[:len(line)-1]), readings, status.Storage{
		Path:            st.Path,
		Appends:         st.Appends,
		Flushes:         st.Flushes,
		Rejected:        st.Rejected,
		CyclesSinceSync: st.CyclesSinceSync,
		MaxCycles:       st.MaxCycles,
	})
	state, color, bucket := l.Indicator.Current()
	l.Tracker.SetIndicator(status.Indicator{State: string(state), Color: color.String(), Bucket: bucket})
}

// ObserveLoop forwards scheduler counters to the tracker and metrics. It
// is meant for scheduler.Scheduler.OnIteration.
func (l *Loop) ObserveLoop(s scheduler.Stats) {
	l.Metrics.UpdateLoop(s.Overruns, s.Missed)
	if l.Tracker != nil {
		l.Tracker.SetLoop(status.Loop{
			Iterations:  s.Iterations,
			Recoverable: s.Recoverable,
			Overruns:    s.Overruns,
			Missed:      s.Missed,
			LastDelay:   s.LastDelay,
			LastRun:     s.LastRun,
		})
	}
}

// PrintOnce reads every channel once and returns the formatted record
// followed by a per-channel listing.
func PrintOnce(c clock.Clock, src sample.Source, f *record.Formatter) (string, error) {
	cal, err := c.Calendar()
	if err != nil {
		return "", fault.Wrap(fault.ClockUnavailable, "read calendar", err)
	}
	set := sample.Set{Timestamp: cal, Readings: src.ReadAll()}
	out := string(f.Set(set))
	for _, r := range set.Readings {
		if r.Available() {
			out += fmt.Sprintf("  %-16s %g\n", r.Name, r.Value)
		} else {
			out += fmt.Sprintf("  %-16s unavailable (%v)\n", r.Name, r.Err)
		}
	}
	return out, nil
}
