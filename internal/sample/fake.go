package sample

import "fmt"

// FakeSource is a test double that returns scripted readings.
// Each call to ReadAll consumes the next entry of Script; once exhausted the
// last entry repeats.
type FakeSource struct {
	Script [][]Reading

	index int

	// Calls counts ReadAll invocations.
	Calls int
}

// NewFakeSource creates a FakeSource with the given script.
func NewFakeSource(script ...[]Reading) *FakeSource {
	return &FakeSource{Script: script}
}

func (f *FakeSource) ReadAll() []Reading {
	f.Calls++
	if len(f.Script) == 0 {
		return nil
	}
	rs := f.Script[f.index]
	if f.index < len(f.Script)-1 {
		f.index++
	}
	out := make([]Reading, len(rs))
	copy(out, rs)
	return out
}

func (f *FakeSource) ReadChannel(name string) (float64, error) {
	if len(f.Script) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
	}
	for _, r := range f.Script[f.index] {
		if r.Name == name {
			return r.Value, r.Err
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownChannel, name)
}
