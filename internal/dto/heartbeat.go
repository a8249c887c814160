package dto

// Heartbeat is sent periodically by edge devices.
type Heartbeat struct {
	DeviceID string `json:"deviceId"`
	Name     string `json:"name,omitempty"`
}
