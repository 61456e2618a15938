// Package rv8803 reads and sets the calendar of an RV-8803 real-time clock.
// Time registers are BCD; the weekday register is one-hot; the year is
// stored as an offset from 2000. The RTC is kept in UTC.
package rv8803

import (
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

const AddressDefault = 0x32

const (
	regHundredths = 0x00
	regSeconds    = 0x01

	regFlag    = 0x0E
	flagVLF    = 1 << 1 // voltage low: time invalid
	timeLength = 8      // hundredths..year
)

// ErrInvalidTime is returned when the oscillator has stopped or the
// registers hold an impossible date.
var ErrInvalidTime = errors.New("rv8803: time not valid")

type Device struct {
	i2c  drivers.I2C
	addr uint16

	w [timeLength]byte
	r [timeLength]byte
}

func New(i2c drivers.I2C) *Device {
	return &Device{i2c: i2c, addr: AddressDefault}
}

// ReadTime returns the RTC time in UTC with 10 ms resolution.
func (d *Device) ReadTime() (time.Time, error) {
	var flag [1]byte
	d.w[0] = regFlag
	if err := d.i2c.Tx(d.addr, d.w[:1], flag[:]); err != nil {
		return time.Time{}, fmt.Errorf("read flags: %w", err)
	}
	if flag[0]&flagVLF != 0 {
		return time.Time{}, ErrInvalidTime
	}

	d.w[0] = regHundredths
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:]); err != nil {
		return time.Time{}, fmt.Errorf("read time: %w", err)
	}
	r := d.r
	hund := fromBCD(r[0])
	sec := fromBCD(r[1] & 0x7F)
	min := fromBCD(r[2] & 0x7F)
	hour := fromBCD(r[3] & 0x3F)
	day := fromBCD(r[5] & 0x3F)
	month := fromBCD(r[6] & 0x1F)
	year := 2000 + fromBCD(r[7])

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || min > 59 || sec > 59 || hund > 99 {
		return time.Time{}, ErrInvalidTime
	}
	return time.Date(year, time.Month(month), day, hour, min, sec, hund*int(10*time.Millisecond), time.UTC), nil
}

// SetTime writes t (converted to UTC) to the RTC and clears the
// voltage-low flag. Years outside 2000..2099 are rejected.
func (d *Device) SetTime(t time.Time) error {
	t = t.UTC()
	if t.Year() < 2000 || t.Year() > 2099 {
		return fmt.Errorf("rv8803: year %d out of range", t.Year())
	}
	buf := [1 + timeLength - 1]byte{
		regSeconds,
		toBCD(t.Second()),
		toBCD(t.Minute()),
		toBCD(t.Hour()),
		1 << uint(t.Weekday()),
		toBCD(t.Day()),
		toBCD(int(t.Month())),
		toBCD(t.Year() - 2000),
	}
	if err := d.i2c.Tx(d.addr, buf[:], nil); err != nil {
		return fmt.Errorf("write time: %w", err)
	}
	if err := d.i2c.Tx(d.addr, []byte{regFlag, 0}, nil); err != nil {
		return fmt.Errorf("clear flags: %w", err)
	}
	return nil
}

func fromBCD(b byte) int {
	return int(b>>4)*10 + int(b&0x0F)
}

func toBCD(v int) byte {
	return byte(v/10)<<4 | byte(v%10)
}
