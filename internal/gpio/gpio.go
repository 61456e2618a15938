// Package gpio provides GPIO access with hardware abstraction: the SD card
// detect and fuel-gauge alert inputs, and the RGB status LED outputs.
// The real implementation uses Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import "github.com/sweeney/field-logger/internal/indicator"

// Inputs is the logical state of the board's input lines.
type Inputs struct {
	CardPresent  bool
	BatteryAlert bool
}

// Reader reads GPIO input states.
type Reader interface {
	// Read returns the card-detect and battery-alert inputs. Both raw
	// lines are active-low: raw 0 means card present or alert asserted.
	Read() (Inputs, error)

	// Close releases GPIO resources.
	Close() error
}

// LED drives an RGB status pixel. It satisfies indicator.Display.
type LED interface {
	Show(c indicator.Color) error
	Close() error
}

// Unwired marks a line that is not connected on this board.
const Unwired = -1

// Line offsets on gpiochip0 (BCM numbering) for the reference wiring.
const (
	DefaultPinCardDetect  = 22
	DefaultPinBatteryAlrt = 11
	DefaultPinRed         = 23
	DefaultPinGreen       = 24
	DefaultPinBlue        = 25
)

// DefaultChip is the GPIO character device used by default.
const DefaultChip = "gpiochip0"
