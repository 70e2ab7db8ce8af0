// Package domain contains entity without logic, just meta-data
package domain

const (
	MaxDeviceNameLen = 64
	defaultType      = "unknown"
)

// Device is the registered identity of one connected client.
// Timestamps are wall-clock strings, matching what clients display as-is.
type Device struct {
	SocketID     string `json:"socketId"`
	DeviceType   string `json:"deviceType"`
	DeviceName   string `json:"deviceName"`
	ConnectedAt  string `json:"connectedAt"`
	LastActivity string `json:"lastActivity"`
}

// NewDevice fills in the defaults clients rely on: an unregistered type
// becomes "unknown" and a missing name is derived from the socket id.
func NewDevice(socketID, deviceType, name, connectedAt string) *Device {
	if deviceType == "" {
		deviceType = defaultType
	}
	if name == "" {
		short := socketID
		if len(short) > 5 {
			short = short[:5]
		}
		name = deviceType + "-" + short
	}
	if len(name) > MaxDeviceNameLen {
		name = name[:MaxDeviceNameLen]
	}
	return &Device{
		SocketID:     socketID,
		DeviceType:   deviceType,
		DeviceName:   name,
		ConnectedAt:  connectedAt,
		LastActivity: connectedAt,
	}
}
