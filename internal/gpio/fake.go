package gpio

import (
	"errors"

	"github.com/sweeney/field-logger/internal/indicator"
)

// ErrNoScript is returned by a FakeReader with nothing scripted.
var ErrNoScript = errors.New("gpio: fake reader has no script")

// FakeReader replays scripted inputs, one entry per Read. After the last
// entry it keeps returning that entry.
type FakeReader struct {
	Script []Inputs
	Err    error // returned by every Read when set
	Reads  int
	Closed bool
}

// NewFakeReader scripts the given inputs.
func NewFakeReader(script ...Inputs) *FakeReader {
	return &FakeReader{Script: script}
}

func (f *FakeReader) Read() (Inputs, error) {
	if f.Err != nil {
		return Inputs{}, f.Err
	}
	if len(f.Script) == 0 {
		return Inputs{}, ErrNoScript
	}
	i := f.Reads
	if i >= len(f.Script) {
		i = len(f.Script) - 1
	}
	f.Reads++
	return f.Script[i], nil
}

func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// FakeLED records every color shown.
type FakeLED struct {
	Shown     []indicator.Color
	Levels    [][]int
	ShowError error
	Closed    bool
}

// Show records c and the line levels it would drive.
func (f *FakeLED) Show(c indicator.Color) error {
	if f.ShowError != nil {
		return f.ShowError
	}
	f.Shown = append(f.Shown, c)
	f.Levels = append(f.Levels, ledValues(c))
	return nil
}

// Close marks the LED as closed.
func (f *FakeLED) Close() error {
	f.Closed = true
	return nil
}

// Last returns the most recently shown color.
func (f *FakeLED) Last() indicator.Color {
	if len(f.Shown) == 0 {
		return indicator.Off
	}
	return f.Shown[len(f.Shown)-1]
}
