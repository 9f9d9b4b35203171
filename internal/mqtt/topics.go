package mqtt

import "strings"

// Topics builds the per-device topic names under a common prefix:
//
//	<prefix>/<device_id>/led     LED state pushed to the device (retained)
//	<prefix>/<device_id>/button  button reports from the device
type Topics struct {
	Prefix string
}

// Led returns the topic a device watches for its desired LED state.
func (t Topics) Led(deviceID string) string {
	return t.prefix() + "/" + deviceID + "/led"
}

// Button returns the topic a device reports its button state on.
func (t Topics) Button(deviceID string) string {
	return t.prefix() + "/" + deviceID + "/button"
}

// AllButtons matches the button topic of every device.
func (t Topics) AllButtons() string {
	return t.prefix() + "/+/button"
}

// DeviceFromButton extracts the device id from a concrete button topic.
func (t Topics) DeviceFromButton(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/")
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/button")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

func (t Topics) prefix() string {
	p := strings.Trim(t.Prefix, "/")
	if p == "" {
		return "devices"
	}
	return p
}
