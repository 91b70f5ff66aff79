package websocket

import "encoding/json"

// Message types exchanged with clients.
const (
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
	TypePing        = "ping"
	TypePong        = "pong"
	TypeError       = "error"
	TypeResolve     = "attention_resolve"
)

// WSMessage is the envelope for client-originated messages.
type WSMessage struct {
	Type        string          `json:"type"`
	Session     string          `json:"session,omitempty"`
	AttentionID string          `json:"attention_id,omitempty"`
	Behavior    string          `json:"behavior,omitempty"`
	Message     string          `json:"message,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`

	// Code is set on error messages.
	Code string `json:"code,omitempty"`
}

// BroadcastMessage is a payload queued for fan-out.
type BroadcastMessage struct {
	Session string
	Data    []byte
}
