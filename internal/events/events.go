// Package events defines the closed set of events the daemon broadcasts
// to subscribers, and the Publisher interface used to emit them.
package events

import (
	"encoding/json"

	"steward/internal/domain"
)

// Event is one broadcastable event. The set of implementations is
// closed; producers and consumers switch over the concrete types.
type Event interface {
	EventType() string
}

// Publisher fans an event out to all subscribers. Implementations make
// no delivery or backpressure guarantees.
type Publisher interface {
	Publish(ev Event)
}

// SessionCreated is published once per run, when the engine assigns the
// real session identifier. TempID allows clients to correlate events
// received before the swap.
type SessionCreated struct {
	Session domain.SessionSummary `json:"session"`
	TempID  string                `json:"temp_id"`
}

func (SessionCreated) EventType() string { return "session:created" }

// SessionMessage carries one engine event, verbatim, in emission order.
type SessionMessage struct {
	SessionID string          `json:"session_id"`
	Message   json.RawMessage `json:"message"`
}

func (SessionMessage) EventType() string { return "session:message" }

// SessionUpdated reports a metadata or process-state change.
type SessionUpdated struct {
	SessionID string         `json:"session_id"`
	Changes   map[string]any `json:"changes"`
}

func (SessionUpdated) EventType() string { return "session:updated" }

// SessionEnded reports a run's terminal outcome.
type SessionEnded struct {
	SessionID string           `json:"session_id"`
	Reason    domain.EndReason `json:"reason"`
}

func (SessionEnded) EventType() string { return "session:ended" }

// AttentionRequested announces a new pending attention item.
type AttentionRequested struct {
	Attention domain.AttentionItem `json:"attention"`
}

func (AttentionRequested) EventType() string { return "attention:requested" }

// AttentionResolved announces that an attention item has been decided.
type AttentionResolved struct {
	AttentionID string `json:"attention_id"`
}

func (AttentionResolved) EventType() string { return "attention:resolved" }

// InteractionResolved carries the durable audit record for a decision.
type InteractionResolved struct {
	SessionID   string                   `json:"session_id"`
	Interaction domain.InteractionRecord `json:"interaction"`
}

func (InteractionResolved) EventType() string { return "interaction:resolved" }

// Envelope is the wire form of an event.
type Envelope struct {
	Type string `json:"type"`
	Data Event  `json:"data"`
}

// Marshal encodes an event into its wire envelope.
func Marshal(ev Event) ([]byte, error) {
	return json.Marshal(Envelope{Type: ev.EventType(), Data: ev})
}
