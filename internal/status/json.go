package status

import (
	"encoding/json"
	"math"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string        `json:"event,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Device        string        `json:"device"`
	BootID        string        `json:"boot_id"`
	Ready         bool          `json:"ready"`
	UptimeSeconds int64         `json:"uptime_seconds"`
	StartTime     string        `json:"start_time"`
	Timestamp     string        `json:"timestamp"`
	LastRecord    LastRecord    `json:"last_record"`
	Loop          LoopJSON      `json:"loop"`
	Storage       StorageJSON   `json:"storage"`
	Indicator     IndicatorJSON `json:"indicator"`
	Inputs        InputsJSON    `json:"inputs"`
	LastError     string        `json:"last_error,omitempty"`
	MQTT          MQTTStatus    `json:"mqtt"`
	Network       *NetworkJSON  `json:"network,omitempty"`
	Config        ConfigJSON    `json:"config"`
}

// LastRecord is the most recent record and its readings.
type LastRecord struct {
	Timestamp string        `json:"timestamp,omitempty"`
	Line      string        `json:"line,omitempty"`
	Readings  []ReadingJSON `json:"readings"`
}

// ReadingJSON is one channel. Value is null when the reading is unavailable.
type ReadingJSON struct {
	Name  string   `json:"name"`
	Value *float64 `json:"value"`
	Error string   `json:"error,omitempty"`
}

// LoopJSON reports scheduler counters.
type LoopJSON struct {
	Iterations  int64 `json:"iterations"`
	Recoverable int64 `json:"recoverable_errors"`
	Overruns    int64 `json:"overruns"`
	Missed      int64 `json:"missed_ticks"`
	LastDelayMs int64 `json:"last_delay_ms"`
	LastRunMs   int64 `json:"last_run_ms"`
}

// StorageJSON reports writer counters.
type StorageJSON struct {
	Path            string `json:"path,omitempty"`
	Appends         int64  `json:"appends"`
	Flushes         int64  `json:"flushes"`
	Rejected        int64  `json:"rejected"`
	CyclesSinceSync int    `json:"cycles_since_sync"`
	MaxCycles       int    `json:"max_cycles"`
}

// IndicatorJSON reports the status pixel.
type IndicatorJSON struct {
	State  string `json:"state"`
	Color  string `json:"color"`
	Bucket string `json:"bucket,omitempty"`
}

// InputsJSON reports GPIO inputs.
type InputsJSON struct {
	CardPresent  bool `json:"card_present"`
	BatteryAlert bool `json:"battery_alert"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Mount          string   `json:"mount"`
	Fields         []string `json:"fields"`
	PeriodMs       int64    `json:"period_ms"`
	MaxStalenessMs int64    `json:"max_staleness_ms"`
	MaxCycles      int      `json:"max_cycles"`
	Broker         string   `json:"broker"`
	HTTPAddr       string   `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	state := snap.Indicator.State
	if state == "" {
		state = "UNKNOWN"
	}

	readings := make([]ReadingJSON, 0, len(snap.Readings))
	for _, r := range snap.Readings {
		rj := ReadingJSON{Name: r.Name, Error: r.Error}
		if r.Available && !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0) {
			v := r.Value
			rj.Value = &v
		}
		readings = append(readings, rj)
	}

	return StatusInner{
		Device:        snap.Config.Device,
		BootID:        snap.BootID,
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		LastRecord: LastRecord{
			Timestamp: snap.Timestamp,
			Line:      snap.LastRecord,
			Readings:  readings,
		},
		Loop: LoopJSON{
			Iterations:  snap.Loop.Iterations,
			Recoverable: snap.Loop.Recoverable,
			Overruns:    snap.Loop.Overruns,
			Missed:      snap.Loop.Missed,
			LastDelayMs: snap.Loop.LastDelay.Milliseconds(),
			LastRunMs:   snap.Loop.LastRun.Milliseconds(),
		},
		Storage: StorageJSON{
			Path:            snap.Storage.Path,
			Appends:         snap.Storage.Appends,
			Flushes:         snap.Storage.Flushes,
			Rejected:        snap.Storage.Rejected,
			CyclesSinceSync: snap.Storage.CyclesSinceSync,
			MaxCycles:       snap.Storage.MaxCycles,
		},
		Indicator: IndicatorJSON{
			State:  state,
			Color:  snap.Indicator.Color,
			Bucket: snap.Indicator.Bucket,
		},
		Inputs: InputsJSON{
			CardPresent:  snap.CardPresent,
			BatteryAlert: snap.BatteryAlert,
		},
		LastError: snap.LastError,
		MQTT:      MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Config: ConfigJSON{
			Mount:          snap.Config.Mount,
			Fields:         snap.Config.Fields,
			PeriodMs:       snap.Config.Period.Milliseconds(),
			MaxStalenessMs: snap.Config.MaxStaleness.Milliseconds(),
			MaxCycles:      snap.Config.MaxCycles,
			Broker:         snap.Config.Broker,
			HTTPAddr:       snap.Config.HTTPAddr,
		},
	}
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
