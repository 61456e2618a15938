// Package mqtt publishes daemon lifecycle events, with an abstraction for
// testing. Records are never published; the card is the only sink for data.
package mqtt

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/sweeney/field-logger/internal/status"
)

// Lifecycle event names.
const (
	EventStartup   = "STARTUP"
	EventHeartbeat = "HEARTBEAT"
	EventFault     = "FAULT"
	EventShutdown  = "SHUTDOWN"
	EventOffline   = "OFFLINE"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "field-logger"

// SystemTopic returns the lifecycle topic for a device:
// <prefix>/<device>/system.
func SystemTopic(prefix, device string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return prefix + "/" + device + "/system"
}

// Publisher publishes lifecycle events to MQTT.
type Publisher interface {
	// PublishSystem sends a system lifecycle event to the broker.
	// Returns error if publishing fails (should not crash the process).
	PublishSystem(event SystemEvent) error

	// Close disconnects from the broker.
	Close() error
}

// ConnectionStatus reports whether the MQTT connection is active.
type ConnectionStatus interface {
	IsConnected() bool
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "FAULT", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", or the fatal error
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// StatusEvent builds a lifecycle event carrying a full status snapshot.
// STARTUP, FAULT and SHUTDOWN are retained so a late subscriber sees the
// last lifecycle transition.
func StatusEvent(snap status.Snapshot, event, reason string) SystemEvent {
	return SystemEvent{
		Timestamp:  snap.Now,
		Event:      event,
		Reason:     reason,
		Retained:   event != EventHeartbeat,
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
}

// SystemPayload represents the MQTT message payload for system events.
// Used for simple events (the OFFLINE will) that don't carry a full status snapshot.
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Device    string `json:"device,omitempty"`
	BootID    string `json:"boot_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Event:  event.Event,
			Reason: event.Reason,
		},
	}
	if !event.Timestamp.IsZero() {
		payload.System.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(payload)
}

// WillPayload is the last-will message the broker publishes if the
// connection drops without a clean disconnect.
func WillPayload(device, bootID string) []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{
		Event:  EventOffline,
		Device: device,
		BootID: bootID,
		Reason: "connection lost",
	}})
	return data
}
