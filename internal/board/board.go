// Package board discovers the sensors on the I2C bus and binds them to the
// named channels the logger records.
package board

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/sweeney/field-logger/internal/clock"
	"github.com/sweeney/field-logger/internal/config"
	"github.com/sweeney/field-logger/internal/devices/ads1x15"
	"github.com/sweeney/field-logger/internal/devices/max17048"
	"github.com/sweeney/field-logger/internal/devices/rv8803"
	"github.com/sweeney/field-logger/internal/i2c"
	"github.com/sweeney/field-logger/internal/sample"
)

// ErrAbsent is the cause recorded for channels whose device did not answer
// the boot scan.
var ErrAbsent = errors.New("device not present")

// Devices holds the drivers for hardware found at boot. Absent devices are
// nil.
type Devices struct {
	Found   []uint16
	Gauge   *max17048.Device
	ADC     *ads1x15.Device
	Climate *Climate
	RTC     *rv8803.Device

	adcScale func(int) float64
}

// Probe scans bus and builds drivers for the known devices that answered.
// Only a malformed ADC configuration is an error; missing hardware leaves
// its channels unavailable.
func Probe(bus i2c.Bus, cfg config.Config, log *slog.Logger) (*Devices, error) {
	if log == nil {
		log = slog.Default()
	}
	d := &Devices{Found: i2c.Scan(bus), adcScale: cfg.ADC.ScaleFor}
	for _, addr := range d.Found {
		log.Debug("i2c device", "addr", fmt.Sprintf("0x%02x", addr), "name", i2c.Name(addr))
	}

	if i2c.Present(d.Found, i2c.AddrGauge) {
		d.Gauge = max17048.New(bus)
		if err := d.Gauge.SetAlertThreshold(cfg.Gauge.AlertThreshold); err != nil {
			log.Warn("gauge alert threshold not set", "err", err)
		}
	}
	if i2c.Present(d.Found, i2c.AddrADC) {
		model, err := ads1x15.ParseModel(cfg.ADC.Chip)
		if err != nil {
			return nil, err
		}
		d.ADC, err = ads1x15.New(bus, ads1x15.Config{Model: model, Gain: cfg.ADC.Gain})
		if err != nil {
			return nil, err
		}
	}
	if i2c.Present(d.Found, i2c.AddrClimate) {
		d.Climate = NewClimate(bus)
	}
	if i2c.Present(d.Found, i2c.AddrRTC) {
		d.RTC = rv8803.New(bus)
	}
	return d, nil
}

// Source returns a sample source reading names in order. Names that are
// repeated are read once.
func (d *Devices) Source(names ...string) *sample.HardwareSource {
	var chans []sample.Channel
	seen := map[string]bool{}
	for _, n := range names {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		chans = append(chans, sample.Channel{Name: n, Read: d.reader(n)})
	}
	return sample.NewHardwareSource(chans...)
}

func (d *Devices) reader(name string) func() (float64, error) {
	switch name {
	case sample.BatteryVoltage:
		if d.Gauge != nil {
			return d.Gauge.Voltage
		}
	case sample.StateOfCharge:
		if d.Gauge != nil {
			return d.Gauge.StateOfCharge
		}
	case sample.ChargeRate:
		if d.Gauge != nil {
			return d.Gauge.ChargeRate
		}
	case sample.Temperature:
		if d.Climate != nil {
			return d.Climate.Temperature
		}
	case sample.Humidity:
		if d.Climate != nil {
			return d.Climate.Humidity
		}
	default:
		for i := 0; i < 4; i++ {
			if name != sample.Aux(i) {
				continue
			}
			if d.ADC == nil {
				break
			}
			ch, scale := i, d.adcScale(i)
			return func() (float64, error) {
				v, err := d.ADC.ReadVoltage(ch)
				return v * scale, err
			}
		}
	}
	return sample.Unavailable(fmt.Errorf("%s: %w", name, ErrAbsent))
}

// Clock returns the RTC-backed clock when an RTC answered the scan, or the
// system clock otherwise.
func (d *Devices) Clock(log *slog.Logger) clock.Clock {
	if d.RTC != nil {
		return clock.NewRTC(d.RTC, log)
	}
	return clock.System{}
}

// Describe lists the devices found, for the scan command.
func (d *Devices) Describe() []string {
	out := make([]string, len(d.Found))
	for i, addr := range d.Found {
		out[i] = fmt.Sprintf("0x%02x: %s", addr, i2c.Name(addr))
	}
	return out
}
