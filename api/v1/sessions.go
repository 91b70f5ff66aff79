package v1

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"steward/internal/domain"
	"steward/internal/gateway/handlers"
	"steward/internal/transcript"
)

// HandleListSessions lists recorded sessions, newest first.
// GET /api/v1/sessions?project=<name>
func (r *Router) HandleListSessions(w http.ResponseWriter, req *http.Request) {
	if r.transcripts == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Transcript store not available")
		return
	}

	sessions, err := r.transcripts.List(req.URL.Query().Get("project"))
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if sessions == nil {
		sessions = []domain.SessionSummary{}
	}
	handlers.SendJSON(w, http.StatusOK, SessionListResponse{Sessions: sessions})
}

// HandleGetMessages returns a session's raw transcript messages.
// GET /api/v1/sessions/{id}/messages?limit=<n>
func (r *Router) HandleGetMessages(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	if r.transcripts == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Transcript store not available")
		return
	}

	limit := 0
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	messages, err := r.transcripts.Messages(id, limit)
	if err != nil {
		if errors.Is(err, transcript.ErrNotFound) {
			handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
			return
		}
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if messages == nil {
		messages = []json.RawMessage{}
	}
	handlers.SendJSON(w, http.StatusOK, MessageListResponse{Messages: messages})
}

// HandleGetInteractions returns a session's decision history.
// GET /api/v1/sessions/{id}/interactions
func (r *Router) HandleGetInteractions(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	if r.interactions == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Interaction store not available")
		return
	}

	records, err := r.interactions.ListBySession(id)
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if records == nil {
		records = []domain.InteractionRecord{}
	}
	handlers.SendJSON(w, http.StatusOK, InteractionListResponse{Interactions: records})
}

// HandleListProjects lists the transcript projects on disk.
// GET /api/v1/projects
func (r *Router) HandleListProjects(w http.ResponseWriter, req *http.Request) {
	if r.transcripts == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Transcript store not available")
		return
	}

	projects, err := r.transcripts.Projects()
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	if projects == nil {
		projects = []string{}
	}
	handlers.SendJSON(w, http.StatusOK, ProjectListResponse{Projects: projects})
}
