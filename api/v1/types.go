// Package v1 provides API v1 data types and handlers.
package v1

import (
	"encoding/json"
	"time"

	"steward/internal/domain"
)

// Error codes for API responses.
const (
	// Client errors (4xx)
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeConflict       = "CONFLICT"

	// Server errors (5xx)
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// LaunchRequest starts a new agent run.
type LaunchRequest struct {
	Prompt string `json:"prompt"`
	// Workdir is the directory the agent operates in. Required for new
	// runs; optional on resume.
	Workdir string `json:"workdir,omitempty"`
	// ResumeID continues an existing session.
	ResumeID string `json:"resume_id,omitempty"`
	// PermissionMode overrides the configured default.
	PermissionMode string `json:"permission_mode,omitempty"`
}

// LaunchResponse acknowledges an accepted run.
type LaunchResponse struct {
	RunID string `json:"run_id"`
}

// ResolveRequest decides a pending attention item.
type ResolveRequest struct {
	Behavior string `json:"behavior"`
	Message  string `json:"message,omitempty"`
}

// AttentionListResponse lists pending attention items in arrival order.
type AttentionListResponse struct {
	Items []domain.AttentionItem `json:"items"`
}

// SessionListResponse lists recorded sessions, newest first.
type SessionListResponse struct {
	Sessions []domain.SessionSummary `json:"sessions"`
}

// InteractionListResponse is a session's decision history.
type InteractionListResponse struct {
	Interactions []domain.InteractionRecord `json:"interactions"`
}

// MessageListResponse carries raw transcript messages.
type MessageListResponse struct {
	Messages []json.RawMessage `json:"messages"`
}

// ProjectListResponse lists known transcript projects.
type ProjectListResponse struct {
	Projects []string `json:"projects"`
}

// StatusResponse reports daemon runtime state.
type StatusResponse struct {
	ActiveRuns int       `json:"active_runs"`
	Pending    int       `json:"pending"`
	Clients    int       `json:"clients"`
	Time       time.Time `json:"time"`
}
