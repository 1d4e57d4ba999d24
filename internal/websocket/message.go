package websocket

import "github.com/reelbox/reelbox_server/internal/media"

type MessageType string

const (
	MessageTypeConnected    MessageType = "connected"
	MessageTypeMediaCreated MessageType = "media_created"
	MessageTypeMediaDeleted MessageType = "media_deleted"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
	MessageTypeError        MessageType = "error"
)

type IncomingMessage struct {
	Type MessageType `json:"type"`
}

type OutgoingMessage struct {
	Type     MessageType `json:"type"`
	ClientID string      `json:"clientId,omitempty"`
	Error    string      `json:"error,omitempty"`
}

type MediaMessage struct {
	Type    MessageType  `json:"type"`
	Media   *media.Media `json:"media,omitempty"`
	MediaID string       `json:"mediaId,omitempty"`
}
