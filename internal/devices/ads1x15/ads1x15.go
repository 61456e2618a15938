// Package ads1x15 is a single-shot driver for the ADS1015 (12-bit) and
// ADS1115 (16-bit) four-channel ADCs.
package ads1x15

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tinygo.org/x/drivers"
)

const AddressDefault = 0x48

const (
	regConversion = 0x00
	regConfig     = 0x01

	cfgOS         = 1 << 15 // write: start; read: 1 = idle
	cfgMuxSingle  = 0x4     // AINx vs GND, x added
	cfgModeSingle = 1 << 8
	cfgRate       = 0x4 // 1600 SPS (ADS1015) / 128 SPS (ADS1115)
	cfgCompOff    = 0x3

	maxPolls = 10
)

// Model selects the converter resolution.
type Model uint8

const (
	ADS1015 Model = iota
	ADS1115
)

func (m Model) String() string {
	if m == ADS1115 {
		return "ADS1115"
	}
	return "ADS1015"
}

// ParseModel accepts "ADS1015" or "ADS1115", case-insensitively.
func ParseModel(s string) (Model, error) {
	switch strings.ToUpper(s) {
	case "ADS1015":
		return ADS1015, nil
	case "ADS1115":
		return ADS1115, nil
	}
	return 0, fmt.Errorf("ads1x15: unknown model %q", s)
}

// FullScale is the input range in volts for each gain setting 0..5.
var FullScale = [6]float64{6.144, 4.096, 2.048, 1.024, 0.512, 0.256}

var (
	ErrGain    = errors.New("ads1x15: gain must be 0..5")
	ErrChannel = errors.New("ads1x15: channel must be 0..3")
	ErrTimeout = errors.New("ads1x15: conversion timeout")
)

type Config struct {
	Address uint16
	Model   Model
	Gain    int
}

type Device struct {
	i2c   drivers.I2C
	addr  uint16
	model Model
	gain  int

	// Sleep waits between conversion polls; replaced in tests.
	Sleep func(time.Duration)

	w [3]byte
	r [2]byte
}

func New(i2c drivers.I2C, cfg Config) (*Device, error) {
	if cfg.Gain < 0 || cfg.Gain >= len(FullScale) {
		return nil, ErrGain
	}
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	return &Device{i2c: i2c, addr: addr, model: cfg.Model, gain: cfg.Gain, Sleep: time.Sleep}, nil
}

// ConfigWord returns the config register value that starts a single-shot
// conversion of channel ch.
func (d *Device) ConfigWord(ch int) uint16 {
	return cfgOS |
		uint16(cfgMuxSingle+ch)<<12 |
		uint16(d.gain)<<9 |
		cfgModeSingle |
		cfgRate<<5 |
		cfgCompOff
}

func (d *Device) conversionTime() time.Duration {
	if d.model == ADS1115 {
		return 9 * time.Millisecond
	}
	return time.Millisecond
}

// ReadRaw performs a single-shot conversion of channel ch and returns the
// signed result right-aligned to the model's resolution.
func (d *Device) ReadRaw(ch int) (int16, error) {
	if ch < 0 || ch > 3 {
		return 0, ErrChannel
	}
	if err := d.writeWord(regConfig, d.ConfigWord(ch)); err != nil {
		return 0, fmt.Errorf("start conversion: %w", err)
	}

	ready := false
	for i := 0; i < maxPolls; i++ {
		d.Sleep(d.conversionTime())
		cfg, err := d.readWord(regConfig)
		if err != nil {
			return 0, fmt.Errorf("poll config: %w", err)
		}
		if cfg&cfgOS != 0 {
			ready = true
			break
		}
	}
	if !ready {
		return 0, ErrTimeout
	}

	v, err := d.readWord(regConversion)
	if err != nil {
		return 0, fmt.Errorf("read conversion: %w", err)
	}
	raw := int16(v)
	if d.model == ADS1015 {
		raw >>= 4
	}
	return raw, nil
}

// ReadVoltage converts channel ch and returns the input voltage.
func (d *Device) ReadVoltage(ch int) (float64, error) {
	raw, err := d.ReadRaw(ch)
	if err != nil {
		return 0, err
	}
	span := 32768.0
	if d.model == ADS1015 {
		span = 2048.0
	}
	return float64(raw) / span * FullScale[d.gain], nil
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
