package domain

import "time"

// EndReason is the terminal outcome of a run.
type EndReason string

const (
	ReasonCompleted   EndReason = "completed"
	ReasonInterrupted EndReason = "interrupted"
	ReasonErrored     EndReason = "errored"
)

// SessionSummary is the metadata broadcast when a run's real session
// identity becomes known. When the backing transcript has not been
// written yet the coordinator synthesizes placeholder fields.
type SessionSummary struct {
	ID        string    `json:"id"`
	Project   string    `json:"project,omitempty"`
	Title     string    `json:"title,omitempty"`
	Workdir   string    `json:"workdir,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
