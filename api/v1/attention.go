package v1

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"steward/internal/domain"
	"steward/internal/gateway/handlers"
)

// HandleListAttention returns pending attention items in arrival order.
// GET /api/v1/attention
func (r *Router) HandleListAttention(w http.ResponseWriter, req *http.Request) {
	if r.registry == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Attention registry not available")
		return
	}

	items := r.registry.ListPending()
	if items == nil {
		items = []domain.AttentionItem{}
	}
	handlers.SendJSON(w, http.StatusOK, AttentionListResponse{Items: items})
}

// HandleResolveAttention decides a pending item. Resolving an unknown
// or already-decided id is a 404; a second resolution never reaches
// the waiting run.
// POST /api/v1/attention/{id}/resolve
func (r *Router) HandleResolveAttention(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	var resolveReq ResolveRequest
	if err := json.NewDecoder(req.Body).Decode(&resolveReq); err != nil {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	behavior := domain.Behavior(resolveReq.Behavior)
	switch behavior {
	case domain.BehaviorAllow, domain.BehaviorDeny, domain.BehaviorAllowAlways:
	default:
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "behavior must be allow, deny or allow-always")
		return
	}

	if r.registry == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Attention registry not available")
		return
	}

	res := domain.Resolution{Behavior: behavior, Message: resolveReq.Message}
	if !r.registry.Resolve(id, res) {
		handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "no pending attention item with that id")
		return
	}

	handlers.SendJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"attention_id": id,
	})
}
