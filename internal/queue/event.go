// Package queue defines the device event payloads exchanged over the message
// broker and the consumer that writes them to the event log.
package queue

import "time"

// Event types published on the device event queue.
const (
	EventDeviceRegistered = "device.registered"
	EventDeviceData       = "device.data"
	EventLedToggled       = "led.toggled"
)

// DeviceEvent is published whenever device state changes.  It carries
// enough for downstream consumers to log or alert without querying the
// primary database.  State is "on"/"off" for LED toggles and
// "pressed"/"released" for button reports; it is empty for registrations.
// UserID is zero when the event originates from a device rather than a user.
type DeviceEvent struct {
	Type       string `json:"type"`
	DeviceID   string `json:"device_id"`
	UserID     uint64 `json:"user_id,omitempty"`
	State      string `json:"state,omitempty"`
	OccurredAt string `json:"occurred_at"`
}

// NewDeviceEvent stamps an event with the current UTC time.
func NewDeviceEvent(typ, deviceID string, userID uint64, state string) DeviceEvent {
	return DeviceEvent{
		Type:       typ,
		DeviceID:   deviceID,
		UserID:     userID,
		State:      state,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// ButtonLabel renders a button state for the event log.
func ButtonLabel(pressed bool) string {
	if pressed {
		return "pressed"
	}
	return "released"
}
