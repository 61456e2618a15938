// Package sample defines instrument readings and the sources that produce
// them. A failed reading is carried as an explicit error, never as zero.
package sample

import (
	"errors"
	"fmt"
	"math"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/fault"
)

// Well-known channel names.
const (
	BatteryVoltage = "battery_voltage"
	StateOfCharge  = "state_of_charge"
	ChargeRate     = "charge_rate"
	Temperature    = "temperature"
	Humidity       = "humidity"
)

// Aux returns the name of auxiliary analog channel i ("aux0".."aux3").
func Aux(i int) string { return fmt.Sprintf("aux%d", i) }

// ErrUnknownChannel is returned by ReadChannel for names the source lacks.
var ErrUnknownChannel = errors.New("sample: unknown channel")

// Reading is one named measurement. Err is non-nil when the value could not
// be obtained.
type Reading struct {
	Name  string
	Value float64
	Err   error
}

// Available reports whether the reading holds a finite value.
func (r Reading) Available() bool {
	return r.Err == nil && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// Set is a timestamped, fixed-order tuple of readings.
type Set struct {
	Timestamp clock.Calendar
	Readings  []Reading
}

// Get returns the reading called name.
func (s Set) Get(name string) (Reading, bool) {
	for _, r := range s.Readings {
		if r.Name == name {
			return r, true
		}
	}
	return Reading{}, false
}

// Unavailable returns the readings that failed, in order.
func (s Set) Unavailable() []Reading {
	var out []Reading
	for _, r := range s.Readings {
		if !r.Available() {
			out = append(out, r)
		}
	}
	return out
}

// Source reads the current instrument state.
type Source interface {
	// ReadAll returns one reading per configured channel, in order. Failures
	// are reported per reading and never abort the whole read.
	ReadAll() []Reading

	// ReadChannel reads a single named channel.
	ReadChannel(name string) (float64, error)
}

// Channel binds a name to a read function.
type Channel struct {
	Name string
	Read func() (float64, error)
}

// HardwareSource reads a list of channels backed by device drivers.
type HardwareSource struct {
	channels []Channel
}

// NewHardwareSource creates a source reading channels in the given order.
func NewHardwareSource(channels ...Channel) *HardwareSource {
	return &HardwareSource{channels: channels}
}

// Names returns the channel names in read order.
func (h *HardwareSource) Names() []string {
	names := make([]string, len(h.channels))
	for i, c := range h.channels {
		names[i] = c.Name
	}
	return names
}

func (h *HardwareSource) ReadAll() []Reading {
	out := make([]Reading, len(h.channels))
	for i, c := range h.channels {
		v, err := c.Read()
		out[i] = Reading{Name: c.Name, Value: v, Err: fault.Wrap(fault.SampleUnavailable, "read "+c.Name, err)}
	}
	return out
}

func (h *HardwareSource) ReadChannel(name string) (float64, error) {
	for _, c := range h.channels {
		if c.Name == name {
			v, err := c.Read()
			if err != nil {
				return 0, fault.Wrap(fault.SampleUnavailable, "read "+name, err)
			}
			return v, nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
}

// Unavailable is a Channel read function for hardware that is absent.
func Unavailable(reason error) func() (float64, error) {
	return func() (float64, error) { return 0, reason }
}
