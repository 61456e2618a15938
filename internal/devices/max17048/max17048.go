// Package max17048 is a driver for the MAX17048 single-cell fuel gauge.
//
// Registers are 16-bit big-endian (MSB first).
//   - VCELL: 78.125 µV per LSB.
//   - SOC: high byte is whole percent, low byte is 1/256 %.
//   - CRATE: signed, 0.208 %/hr per LSB.
//   - CONFIG: low five bits hold ATHD = 32 - alert threshold (%).
package max17048

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// AddressDefault is the fixed 7-bit address.
const AddressDefault = 0x36

const (
	regVCell   = 0x02
	regSOC     = 0x04
	regMode    = 0x06
	regVersion = 0x08
	regConfig  = 0x0C
	regCRate   = 0x16

	configAlert     = 1 << 5
	configAthdMask  = 0x1F
	microvoltPerLSB = 78.125
	crateLSB        = 0.208
)

// ErrThreshold is returned for an alert threshold outside 1..32 %.
var ErrThreshold = errors.New("max17048: alert threshold must be 1..32 percent")

type Device struct {
	i2c  drivers.I2C
	addr uint16

	w [3]byte
	r [2]byte
}

func New(i2c drivers.I2C) *Device {
	return &Device{i2c: i2c, addr: AddressDefault}
}

// Voltage returns the cell voltage in volts.
func (d *Device) Voltage() (float64, error) {
	v, err := d.readWord(regVCell)
	if err != nil {
		return 0, fmt.Errorf("read vcell: %w", err)
	}
	return float64(v) * microvoltPerLSB / 1e6, nil
}

// StateOfCharge returns the remaining charge in percent.
func (d *Device) StateOfCharge() (float64, error) {
	v, err := d.readWord(regSOC)
	if err != nil {
		return 0, fmt.Errorf("read soc: %w", err)
	}
	return float64(v>>8) + float64(v&0xFF)/256, nil
}

// ChargeRate returns the charge (positive) or discharge rate in percent
// per hour.
func (d *Device) ChargeRate() (float64, error) {
	v, err := d.readWord(regCRate)
	if err != nil {
		return 0, fmt.Errorf("read crate: %w", err)
	}
	return float64(int16(v)) * crateLSB, nil
}

// Version returns the production version word.
func (d *Device) Version() (uint16, error) {
	return d.readWord(regVersion)
}

// SetAlertThreshold programs the empty-alert threshold in percent.
func (d *Device) SetAlertThreshold(pct int) error {
	if pct < 1 || pct > 32 {
		return ErrThreshold
	}
	cfg, err := d.readWord(regConfig)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	cfg = cfg&^configAthdMask | uint16(32-pct)
	return d.writeWord(regConfig, cfg)
}

// AlertThreshold returns the programmed empty-alert threshold in percent.
func (d *Device) AlertThreshold() (int, error) {
	cfg, err := d.readWord(regConfig)
	if err != nil {
		return 0, err
	}
	return 32 - int(cfg&configAthdMask), nil
}

// Alerting reports whether the ALRT flag is set.
func (d *Device) Alerting() (bool, error) {
	cfg, err := d.readWord(regConfig)
	if err != nil {
		return false, err
	}
	return cfg&configAlert != 0, nil
}

// ClearAlert clears the ALRT flag, releasing the alert pin.
func (d *Device) ClearAlert() error {
	cfg, err := d.readWord(regConfig)
	if err != nil {
		return err
	}
	return d.writeWord(regConfig, cfg&^configAlert)
}

// Big-endian word access.

func (d *Device) readWord(reg byte) (uint16, error) {
	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeWord(reg byte, val uint16) error {
	d.w[0] = reg
	d.w[1] = byte(val >> 8)
	d.w[2] = byte(val)
	return d.i2c.Tx(d.addr, d.w[:3], nil)
}
