// Package i2c provides the I2C bus used by the logger's sensors. Buses
// implement tinygo's drivers.I2C so the same device drivers run against
// the Linux i2c-dev interface and the in-memory fake.
package i2c

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"
)

// ErrNack is returned when no device acknowledges an address.
var ErrNack = errors.New("i2c: no acknowledge")

// Bus is the transaction interface shared with tinygo drivers.
type Bus = drivers.I2C

// Known 7-bit addresses on the logger board.
const (
	AddrRTC      uint16 = 0x32
	AddrGauge    uint16 = 0x36
	AddrClimate  uint16 = 0x38
	AddrADC      uint16 = 0x48
	AddrPressure uint16 = 0x77
)

var names = map[uint16]string{
	AddrRTC:      "RV-8803 RTC",
	AddrGauge:    "MAX17048 fuel gauge",
	AddrClimate:  "AHT20 temperature/humidity",
	AddrADC:      "ADS1x15 ADC",
	AddrPressure: "BMP280 pressure",
}

// Name describes the device normally found at addr.
func Name(addr uint16) string {
	if n, ok := names[addr]; ok {
		return n
	}
	return fmt.Sprintf("unknown device 0x%02x", addr)
}

// Scan probes the non-reserved 7-bit address range with a one-byte read and
// returns the addresses that answered, in ascending order.
func Scan(bus Bus) []uint16 {
	var found []uint16
	var buf [1]byte
	for addr := uint16(0x08); addr <= 0x77; addr++ {
		if err := bus.Tx(addr, nil, buf[:]); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

// Present reports whether addr appears in found.
func Present(found []uint16, addr uint16) bool {
	for _, a := range found {
		if a == addr {
			return true
		}
	}
	return false
}
