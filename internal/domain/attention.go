// Package domain defines the shared entities of the steward daemon:
// attention items, resolutions, interaction records, and session summaries.
package domain

import (
	"encoding/json"
	"time"
)

// AttentionKind classifies an attention item.
type AttentionKind string

const (
	// KindPermission is a pending tool-use decision blocking a run.
	KindPermission AttentionKind = "permission"

	// KindError reports a failed run awaiting acknowledgment.
	KindError AttentionKind = "error"

	// KindCompletion reports a finished run awaiting acknowledgment.
	KindCompletion AttentionKind = "completion"
)

// AttentionItem is one pending decision point or terminal report.
type AttentionItem struct {
	// ID is the server-generated unique identifier.
	ID string `json:"id"`

	// RunID is the effective run identifier current at creation time.
	// It is never retroactively updated after the identity swap.
	RunID string `json:"run_id"`

	// Kind classifies the item.
	Kind AttentionKind `json:"kind"`

	// ToolName, ToolInput and ToolUseID are set only for permission items.
	// ToolUseID is the engine's correlation token and must be echoed
	// verbatim when answering.
	ToolName  string          `json:"tool_name,omitempty"`
	ToolInput json.RawMessage `json:"tool_input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`

	// Message is set for error and completion items.
	Message string `json:"message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Behavior is the operator's decision on a permission item.
type Behavior string

const (
	BehaviorAllow       Behavior = "allow"
	BehaviorDeny        Behavior = "deny"
	BehaviorAllowAlways Behavior = "allow-always"
)

// DefaultDenyMessage is used when a deny resolution carries no message.
const DefaultDenyMessage = "Denied by user"

// Resolution is the decision data supplied by a human operator.
type Resolution struct {
	Behavior Behavior `json:"behavior"`
	Message  string   `json:"message,omitempty"`
}

// Outcome is the engine-facing resolution payload. For allow,
// UpdatedInput echoes the tool input captured at enqueue time.
type Outcome struct {
	Behavior     Behavior        `json:"behavior"`
	ToolUseID    string          `json:"tool_use_id"`
	UpdatedInput json.RawMessage `json:"updated_input,omitempty"`
	Message      string          `json:"message,omitempty"`
}

// InteractionRecord is the durable audit entry for one resolved item.
type InteractionRecord struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Kind       AttentionKind   `json:"kind"`
	ToolName   string          `json:"tool_name,omitempty"`
	ToolInput  json.RawMessage `json:"tool_input,omitempty"`
	Behavior   Behavior        `json:"behavior"`
	Message    string          `json:"message,omitempty"`
	ResolvedAt time.Time       `json:"resolved_at"`
}
