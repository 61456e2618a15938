//go:build linux

package gpio

import (
	"errors"
	"fmt"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/field-logger/internal/indicator"
)

// RealReader reads GPIO from actual hardware using Linux GPIO character device.
type RealReader struct {
	chip     *gpiocdev.Chip
	cdPin    *gpiocdev.Line
	alertPin *gpiocdev.Line
}

// NewRealReader requests the card-detect and alert lines. Either offset may
// be Unwired, in which case the card is reported present and the alert
// inactive.
func NewRealReader(chipName string, pinCD, pinAlert int) (*RealReader, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	r := &RealReader{chip: chip}

	// The card-detect switch pulls to ground when a card is inserted.
	if pinCD != Unwired {
		r.cdPin, err = chip.RequestLine(pinCD, gpiocdev.AsInput, gpiocdev.WithPullUp)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request card-detect pin %d: %w", pinCD, err)
		}
	}

	// The gauge's ALRT output has a pull-up fitted on the board.
	if pinAlert != Unwired {
		r.alertPin, err = chip.RequestLine(pinAlert, gpiocdev.AsInput)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("request alert pin %d: %w", pinAlert, err)
		}
	}
	return r, nil
}

// Read samples both inputs. Both are active-low.
func (r *RealReader) Read() (Inputs, error) {
	in := Inputs{CardPresent: true}
	if r.cdPin != nil {
		v, err := r.cdPin.Value()
		if err != nil {
			return Inputs{}, fmt.Errorf("read card-detect pin: %w", err)
		}
		in.CardPresent = v == 0
	}
	if r.alertPin != nil {
		v, err := r.alertPin.Value()
		if err != nil {
			return Inputs{}, fmt.Errorf("read alert pin: %w", err)
		}
		in.BatteryAlert = v == 0
	}
	return in, nil
}

// Close releases GPIO resources.
func (r *RealReader) Close() error {
	var errs []error
	for _, l := range []*gpiocdev.Line{r.cdPin, r.alertPin} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if r.chip != nil {
		if err := r.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}

// RealLED drives a common-cathode RGB LED from three output lines. A channel
// is lit when its intensity is non-zero; the lines carry no PWM.
type RealLED struct {
	chip  *gpiocdev.Chip
	lines *gpiocdev.Lines
}

// NewRealLED requests the red, green and blue lines as outputs, initially off.
func NewRealLED(chipName string, pinR, pinG, pinB int) (*RealLED, error) {
	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	lines, err := chip.RequestLines([]int{pinR, pinG, pinB}, gpiocdev.AsOutput(0, 0, 0))
	if err != nil {
		chip.Close()
		return nil, fmt.Errorf("request led pins %d,%d,%d: %w", pinR, pinG, pinB, err)
	}
	return &RealLED{chip: chip, lines: lines}, nil
}

// Show sets the LED to c.
func (l *RealLED) Show(c indicator.Color) error {
	if err := l.lines.SetValues(ledValues(c)); err != nil {
		return fmt.Errorf("set led: %w", err)
	}
	return nil
}

// Close turns the LED off and releases the lines. The lines are
// reconfigured as inputs so the pins float back to their boot defaults.
func (l *RealLED) Close() error {
	var errs []error
	if l.lines != nil {
		if err := l.lines.SetValues([]int{0, 0, 0}); err != nil {
			errs = append(errs, fmt.Errorf("led off: %w", err))
		}
		if err := l.lines.Reconfigure(gpiocdev.AsInput); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure led pins: %w", err))
		}
		if err := l.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close led pins: %w", err))
		}
	}
	if l.chip != nil {
		if err := l.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}
	return errors.Join(errs...)
}
