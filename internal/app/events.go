package app

import "github.com/harvey0995/GhostBridge/internal/domain"

// Outbound event names. These are the wire contract shared with deployed
// clients and must not change.
const (
	EvDevicesUpdated = "devices-updated"
	EvClickReceived  = "click-received"
	EvClickConfirmed = "click-confirmed"
	EvReceiveFile    = "receive-file"
	EvServerShutdown = "server-shutdown"
)

// DevicesUpdatedEvent is the membership snapshot pushed to clients whenever
// a device registers, joins a room, or disconnects.
type DevicesUpdatedEvent struct {
	Type         string          `json:"type"`
	Devices      []domain.Device `json:"devices"`
	Timestamp    string          `json:"timestamp"`
	TotalCount   int             `json:"totalCount"`
	Disconnected string          `json:"disconnected,omitempty"`
}

// ClickBroadcast carries a click event to every other connection.
type ClickBroadcast struct {
	Type              string `json:"type"`
	ClickID           string `json:"clickId"`
	SenderSocketID    string `json:"senderSocketId"`
	SenderName        string `json:"senderName"`
	SenderType        string `json:"senderType"`
	Message           string `json:"message"`
	Timestamp         string `json:"timestamp"`
	OriginalTimestamp string `json:"originalTimestamp,omitempty"`
}

// ClickConfirmedEvent echoes the broadcast back to the sender with delivery
// stats. RecipientCount counts targets at dispatch time, not acknowledged
// receipts.
type ClickConfirmedEvent struct {
	ClickBroadcast
	Status         string `json:"status"`
	RecipientCount int    `json:"recipientCount"`
}

// FileBroadcast delivers a file payload verbatim to room members.
type FileBroadcast struct {
	Type           string             `json:"type"`
	File           domain.FilePayload `json:"file"`
	SenderSocketID string             `json:"senderSocketId"`
	SenderName     string             `json:"senderName,omitempty"`
	Timestamp      string             `json:"timestamp"`
}

// FileConfirmedEvent is the one-shot, sender-only acknowledgment that a file
// relay was accepted for dispatch.
type FileConfirmedEvent struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	FileName  string `json:"fileName"`
	Timestamp string `json:"timestamp"`
}

type ServerShutdownEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
