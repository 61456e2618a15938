// Package status provides a thread-safe status tracker for the logger
// daemon. It is written by the acquisition loop and read by the HTTP
// handlers and lifecycle events.
package status

import (
	"sync"
	"time"
)

// NetworkInfo contains network state. This is a local copy to avoid
// importing internal/mqtt from status.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	Device       string
	Mount        string
	Fields       []string
	Period       time.Duration
	MaxStaleness time.Duration
	MaxCycles    int
	Broker       string
	HTTPAddr     string
}

// Reading is one channel of the most recent sample.
type Reading struct {
	Name      string
	Value     float64
	Available bool
	Error     string
}

// Loop mirrors the scheduler's counters.
type Loop struct {
	Iterations  int64
	Recoverable int64
	Overruns    int64
	Missed      int64
	LastDelay   time.Duration
	LastRun     time.Duration
}

// Storage mirrors the log writer's counters.
type Storage struct {
	Path            string
	Appends         int64
	Flushes         int64
	Rejected        int64
	CyclesSinceSync int
	MaxCycles       int
}

// Indicator is the status pixel's current state.
type Indicator struct {
	State  string
	Color  string
	Bucket string
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and stays valid after the lock is released.
type Snapshot struct {
	BootID        string
	StartTime     time.Time
	Now           time.Time
	Timestamp     string // calendar time of the last record
	LastRecord    string
	Readings      []Reading
	Loop          Loop
	Storage       Storage
	Indicator     Indicator
	CardPresent   bool
	BatteryAlert  bool
	LastError     string
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether at least one record has been written.
func (s Snapshot) Ready() bool {
	return s.Storage.Appends > 0
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time
}

// NewTracker creates a Tracker with the given start time, boot ID and config.
func NewTracker(startTime time.Time, bootID string, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			BootID:      bootID,
			StartTime:   startTime,
			CardPresent: true,
			Config:      cfg,
		},
		now: time.Now,
	}
}

// Record stores the outcome of one acquisition iteration.
func (t *Tracker) Record(timestamp, line string, readings []Reading, st Storage) {
	t.mu.Lock()
	t.snap.Timestamp = timestamp
	t.snap.LastRecord = line
	t.snap.Readings = append([]Reading(nil), readings...)
	t.snap.Storage = st
	t.mu.Unlock()
}

// SetLoop sets the scheduler counters.
func (t *Tracker) SetLoop(l Loop) {
	t.mu.Lock()
	t.snap.Loop = l
	t.mu.Unlock()
}

// SetIndicator sets the status pixel state.
func (t *Tracker) SetIndicator(ind Indicator) {
	t.mu.Lock()
	t.snap.Indicator = ind
	t.mu.Unlock()
}

// SetInputs sets the card-detect and battery-alert input states.
func (t *Tracker) SetInputs(cardPresent, batteryAlert bool) {
	t.mu.Lock()
	t.snap.CardPresent = cardPresent
	t.snap.BatteryAlert = batteryAlert
	t.mu.Unlock()
}

// SetError records the most recent error; nil clears it.
func (t *Tracker) SetError(err error) {
	t.mu.Lock()
	if err == nil {
		t.snap.LastError = ""
	} else {
		t.snap.LastError = err.Error()
	}
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	s.Readings = append([]Reading(nil), t.snap.Readings...)
	t.mu.RUnlock()
	s.Now = t.now()
	return s
}
