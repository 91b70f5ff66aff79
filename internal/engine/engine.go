// Package engine abstracts the external agent execution engine. The
// daemon depends only on this contract: given a prompt, a working
// directory, and a permission callback, the engine produces an ordered
// stream of opaque events and consults the callback before every
// privileged tool use.
package engine

import (
	"context"
	"encoding/json"

	"steward/internal/domain"
)

// CallOptions carries per-invocation metadata for a permission check.
type CallOptions struct {
	// ToolUseID is the engine's correlation token. It must be echoed
	// verbatim in the returned outcome.
	ToolUseID string
}

// PermissionFunc is invoked before each privileged tool use. The engine
// blocks on it; the returned outcome is forwarded unmodified.
type PermissionFunc func(ctx context.Context, toolName string, input json.RawMessage, opts CallOptions) (domain.Outcome, error)

// Options configures one engine run.
type Options struct {
	Prompt         string
	Workdir        string
	ResumeID       string
	PermissionMode string
	CanUseTool     PermissionFunc
}

// Message is one opaque engine event. SessionID and Type are peeked
// from the payload for correlation; Raw is forwarded verbatim.
type Message struct {
	Raw       json.RawMessage
	SessionID string
	Type      string
}

// Stream is an in-flight engine run. Events yields messages in emission
// order and is closed when the run finishes; Err reports the terminal
// error (nil for normal completion, context.Canceled for interrupts)
// and is valid only after Events is exhausted.
type Stream interface {
	Events() <-chan Message
	Err() error
}

// Engine starts agent runs.
type Engine interface {
	Run(ctx context.Context, opts Options) (Stream, error)
}

// peekFields is the subset of an engine event the daemon inspects.
type peekFields struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}

// peek extracts the inspected fields from a raw event. Malformed
// payloads yield empty fields, never an error: events are opaque.
func peek(raw json.RawMessage) (string, string) {
	var f peekFields
	if err := json.Unmarshal(raw, &f); err != nil {
		return "", ""
	}
	return f.Type, f.SessionID
}
