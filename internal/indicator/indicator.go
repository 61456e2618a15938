// Package indicator maps logger states and battery voltage to colors for a
// single-pixel RGB status display.
package indicator

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/sweeney/field-logger/internal/fault"
)

// Color is an RGB triple of small non-negative intensities.
type Color struct {
	R, G, B uint8
}

func (c Color) String() string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

// Off is no light.
var Off = Color{}

// State is a discrete logger state shown on the display.
type State string

const (
	BootSuccess State = "boot_success"
	BootFailure State = "boot_failure"
	Sampling    State = "sampling"
	Idle        State = "idle"
	Fault       State = "fault"
	Battery     State = "battery"
)

// ColorFor returns the color for a discrete state. Battery has no fixed
// color; use Buckets.Color.
func ColorFor(s State) Color {
	switch s {
	case BootSuccess:
		return Color{0, 4, 0}
	case BootFailure:
		return Color{4, 0, 0}
	case Sampling:
		return Color{4, 4, 0}
	case Fault:
		return Color{4, 0, 4}
	}
	return Off
}

// Display drives the physical pixel.
type Display interface {
	Show(c Color) error
}

// Nop is a Display for boards without a status pixel.
type Nop struct{}

func (Nop) Show(Color) error { return nil }

// Indicator tracks the current state and pushes colors to a Display.
// Display errors are returned tagged as recoverable indicator failures.
type Indicator struct {
	display Display
	buckets Buckets

	mu     sync.Mutex
	state  State
	color  Color
	bucket Bucket
}

// New creates an Indicator. A nil display behaves like Nop.
func New(d Display, b Buckets) *Indicator {
	if d == nil {
		d = Nop{}
	}
	return &Indicator{display: d, buckets: b, state: Idle}
}

// Set shows the color for s.
func (i *Indicator) Set(s State) error {
	return i.show(s, ColorFor(s), "")
}

// Voltage shows the color of the bucket containing v. NaN shows Idle.
func (i *Indicator) Voltage(v float64) error {
	if math.IsNaN(v) {
		return i.Set(Idle)
	}
	b := i.buckets.Classify(v)
	return i.show(Battery, b.Color, b.Name)
}

// Fault shows the fault color. It satisfies fault.Indicator.
func (i *Indicator) Fault() error {
	return i.Set(Fault)
}

func (i *Indicator) show(s State, c Color, bucket string) error {
	i.mu.Lock()
	i.state = s
	i.color = c
	i.bucket = Bucket{Name: bucket, Color: c}
	i.mu.Unlock()

	if err := i.display.Show(c); err != nil {
		return fault.Wrap(fault.IndicatorFailure, "show "+string(s), err)
	}
	return nil
}

// Current returns the last requested state, color and bucket name.
func (i *Indicator) Current() (State, Color, string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state, i.color, i.bucket.Name
}

// ErrThresholds is returned for bucket thresholds that are not strictly
// ascending or do not match the bucket count.
var ErrThresholds = errors.New("indicator: thresholds must be strictly ascending, one per bucket below the top")
