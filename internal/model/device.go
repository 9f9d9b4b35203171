package model

import "time"

// Device is a registered unit identified by a globally unique DeviceID and
// owned by exactly one user.  Ownership never changes.
type Device struct {
	DeviceID  string    // devices.device_id
	UserID    uint64    // devices.user_id
	CreatedAt time.Time // devices.created_at
}

// DeviceData is one append-only button report from a device.
type DeviceData struct {
	ID          uint64    // device_data.id
	DeviceID    string    // device_data.device_id
	ButtonState bool      // device_data.button_state
	Timestamp   time.Time // device_data.timestamp
}

// LedCommand is one append-only desired LED state for a device.
type LedCommand struct {
	ID        uint64    // led_commands.id
	DeviceID  string    // led_commands.device_id
	LedState  bool      // led_commands.led_state
	Timestamp time.Time // led_commands.timestamp
}

// DeviceStatus is the dashboard view of a device: its latest button report
// and latest LED command, each false when nothing has been recorded.
type DeviceStatus struct {
	DeviceID    string `json:"device_id"`
	ButtonState bool   `json:"button_state"`
	LedState    bool   `json:"led_state"`
}

// DeviceDetail is one owned device with its latest events.  The timestamps
// are nil until the first report or command.
type DeviceDetail struct {
	DeviceID      string     `json:"device_id"`
	CreatedAt     time.Time  `json:"created_at"`
	ButtonState   bool       `json:"button_state"`
	LedState      bool       `json:"led_state"`
	LastReportAt  *time.Time `json:"last_report_at,omitempty"`
	LastCommandAt *time.Time `json:"last_command_at,omitempty"`
}

// LedLabel renders an LED state the way devices expect it on the wire.
func LedLabel(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
