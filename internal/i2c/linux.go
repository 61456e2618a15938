//go:build linux

package i2c

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	ioctlRdwr = 0x0707 // I2C_RDWR
	flagRead  = 0x0001 // I2C_M_RD
)

// i2cMsg mirrors struct i2c_msg.
type i2cMsg struct {
	addr  uint16
	flags uint16
	len   uint16
	buf   *byte
}

// rdwrData mirrors struct i2c_rdwr_ioctl_data.
type rdwrData struct {
	msgs  *i2cMsg
	nmsgs uint32
}

// LinuxBus talks to an adapter through /dev/i2c-N. Each Tx is issued as a
// single I2C_RDWR ioctl so a write followed by a read uses a repeated start.
type LinuxBus struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// Open opens /dev/i2c-<n>.
func Open(n int) (*LinuxBus, error) {
	path := fmt.Sprintf("/dev/i2c-%d", n)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open i2c bus: %w", err)
	}
	return &LinuxBus{f: f, path: path}, nil
}

// Tx writes w then reads into r at addr. Either may be empty.
func (b *LinuxBus) Tx(addr uint16, w, r []byte) error {
	msgs := make([]i2cMsg, 0, 2)
	if len(w) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, len: uint16(len(w)), buf: &w[0]})
	}
	if len(r) > 0 {
		msgs = append(msgs, i2cMsg{addr: addr, flags: flagRead, len: uint16(len(r)), buf: &r[0]})
	}
	if len(msgs) == 0 {
		return nil
	}
	data := rdwrData{msgs: &msgs[0], nmsgs: uint32(len(msgs))}

	b.mu.Lock()
	defer b.mu.Unlock()
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, b.f.Fd(), ioctlRdwr, uintptr(unsafe.Pointer(&data)))
	runtime.KeepAlive(w)
	runtime.KeepAlive(r)
	runtime.KeepAlive(msgs)
	if errno != 0 {
		if errno == unix.ENXIO || errno == unix.EREMOTEIO {
			return fmt.Errorf("%s addr 0x%02x: %w", b.path, addr, ErrNack)
		}
		return fmt.Errorf("%s addr 0x%02x: %w", b.path, addr, errno)
	}
	return nil
}

// Close releases the device file.
func (b *LinuxBus) Close() error {
	return b.f.Close()
}
