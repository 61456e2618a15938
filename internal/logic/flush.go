package logic

import "time"

// FlushState counts appends since the last durable commit.
type FlushState struct {
	CyclesSinceSync int
	MaxCycles       int
}

// MaxCyclesFor derives the append count between forced flushes from a
// staleness bound: floor(maxStaleness / period), at least 1.
func MaxCyclesFor(maxStaleness, period time.Duration) int {
	if period <= 0 {
		return 1
	}
	n := int(maxStaleness / period)
	if n < 1 {
		return 1
	}
	return n
}

// NewFlushState returns a state that requests a flush every maxCycles
// appends. Values below 1 are raised to 1.
func NewFlushState(maxCycles int) FlushState {
	if maxCycles < 1 {
		maxCycles = 1
	}
	return FlushState{MaxCycles: maxCycles}
}

// Appended records one successful append and reports whether a flush is due.
func (f *FlushState) Appended() bool {
	f.CyclesSinceSync++
	return f.CyclesSinceSync >= f.MaxCycles
}

// Synced records a successful durable commit.
func (f *FlushState) Synced() {
	f.CyclesSinceSync = 0
}

// Pending reports whether any appends are not yet committed.
func (f FlushState) Pending() bool {
	return f.CyclesSinceSync > 0
}
