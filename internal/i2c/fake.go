package i2c

import (
	"fmt"
	"sync"
)

// FakeDevice is a register-mapped device on a FakeBus. The first byte of a
// write selects the register; any further bytes are stored into it. Reads
// return the selected register's contents.
type FakeDevice struct {
	Regs map[byte][]byte

	// Raw, if set, is returned for reads that are not preceded by a write
	// in the same transaction.
	Raw []byte

	// OnWrite, if set, is called after each write is applied.
	OnWrite func(d *FakeDevice, w []byte)

	// Err, if set, fails every transaction to this device.
	Err error

	Writes [][]byte
	Reads  int

	ptr byte
}

// NewFakeDevice returns a device with an empty register map.
func NewFakeDevice() *FakeDevice {
	return &FakeDevice{Regs: map[byte][]byte{}}
}

// Set stores a register value.
func (d *FakeDevice) Set(reg byte, v ...byte) *FakeDevice {
	d.Regs[reg] = append([]byte(nil), v...)
	return d
}

// LastWrite returns the most recent write, or nil.
func (d *FakeDevice) LastWrite() []byte {
	if len(d.Writes) == 0 {
		return nil
	}
	return d.Writes[len(d.Writes)-1]
}

// FakeBus is an in-memory bus for tests.
type FakeBus struct {
	mu      sync.Mutex
	Devices map[uint16]*FakeDevice
	Txs     int
}

// NewFakeBus returns an empty bus.
func NewFakeBus() *FakeBus {
	return &FakeBus{Devices: map[uint16]*FakeDevice{}}
}

// Attach places d at addr and returns it.
func (b *FakeBus) Attach(addr uint16, d *FakeDevice) *FakeDevice {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Devices[addr] = d
	return d
}

// Tx implements drivers.I2C.
func (b *FakeBus) Tx(addr uint16, w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.Txs++

	d, ok := b.Devices[addr]
	if !ok {
		return fmt.Errorf("fake addr 0x%02x: %w", addr, ErrNack)
	}
	if d.Err != nil {
		return d.Err
	}

	if len(w) > 0 {
		d.Writes = append(d.Writes, append([]byte(nil), w...))
		d.ptr = w[0]
		if len(w) > 1 {
			d.Regs[w[0]] = append([]byte(nil), w[1:]...)
		}
		if d.OnWrite != nil {
			d.OnWrite(d, w)
		}
	}
	if len(r) > 0 {
		d.Reads++
		src := d.Regs[d.ptr]
		if len(w) == 0 && d.Raw != nil {
			src = d.Raw
		}
		n := copy(r, src)
		for i := n; i < len(r); i++ {
			r[i] = 0
		}
	}
	return nil
}
