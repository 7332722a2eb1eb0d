// Package telemetry reports coin totals to the remote dashboard.
// The dashboard speaks in numbered value channels and small text displays;
// the MQTT implementation maps both onto topics under a per-device prefix.
package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotConnected means the session is down. Non-fatal: the host waits
	// for the session to come back and carries on.
	ErrNotConnected = errors.New("telemetry: not connected")

	// ErrFatal marks a transport fault on a session believed to be open.
	// The host treats it as unrecoverable and restarts the process.
	ErrFatal = errors.New("telemetry: transport fault")
)

// Sink accepts value and display writes. The orchestration task is its only
// caller; errors are returned unchanged to the host loop.
type Sink interface {
	// WriteValue sets dashboard value channel id to value.
	WriteValue(id int, value string) error

	// WriteDisplay writes text to one line of the display block at
	// (column, row).
	WriteDisplay(column, row, line int, text string) error
}

// Session is the full telemetry connection owned by the host loop.
type Session interface {
	Sink

	// PublishSystem sends a lifecycle event (startup, shutdown, heartbeat).
	PublishSystem(event SystemEvent) error

	// IsConnected reports whether the session is currently open.
	IsConnected() bool

	// Reconnect blocks until the session is open again or ctx is done.
	Reconnect(ctx context.Context) error

	// Close disconnects.
	Close() error
}

// Topics builds the MQTT topic names for one device.
type Topics struct {
	Prefix string // e.g. "coin-acceptor/SN-0042"
}

// Value returns the topic for value channel id.
func (t Topics) Value(id int) string {
	return fmt.Sprintf("%s/vw/%d", t.Prefix, id)
}

// Display returns the topic for a display line.
func (t Topics) Display(column, row, line int) string {
	return fmt.Sprintf("%s/lcd/%d/%d/%d", t.Prefix, column, row, line)
}

// System returns the topic for lifecycle events.
func (t Topics) System() string {
	return t.Prefix + "/system"
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the payload for events without a full status snapshot
// (last will, reconnect).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly.
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	payload := SystemPayload{
		System: SystemPayloadInner{
			Timestamp: event.Timestamp.UTC().Format(time.RFC3339),
			Event:     event.Event,
			Reason:    event.Reason,
		},
	}
	return json.Marshal(payload)
}

// WillPayload is the retained last-will message published by the broker
// when the device drops off without a clean shutdown.
func WillPayload() []byte {
	data, _ := json.Marshal(SystemPayload{System: SystemPayloadInner{Event: "OFFLINE"}})
	return data
}
