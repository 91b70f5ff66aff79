package v1

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"steward/internal/gateway/handlers"
	"steward/internal/run"
)

// HandleLaunchRun starts a new agent run.
// POST /api/v1/runs
func (r *Router) HandleLaunchRun(w http.ResponseWriter, req *http.Request) {
	var launchReq LaunchRequest
	if err := json.NewDecoder(req.Body).Decode(&launchReq); err != nil {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid JSON body")
		return
	}

	if launchReq.Prompt == "" {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "prompt is required")
		return
	}
	if launchReq.Workdir == "" && launchReq.ResumeID == "" {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "workdir is required for new runs")
		return
	}

	if r.coordinator == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Run coordinator not available")
		return
	}

	runID := run.NewPendingID()
	r.coordinator.Launch(runID, launchReq.Prompt, launchReq.Workdir, launchReq.ResumeID, launchReq.PermissionMode)

	handlers.SendJSON(w, http.StatusAccepted, LaunchResponse{RunID: runID})
}

// HandleInterruptRun cancels a live run by temporary or real id.
// POST /api/v1/runs/{id}/interrupt
func (r *Router) HandleInterruptRun(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]
	if id == "" {
		handlers.SendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "run id is required")
		return
	}

	if r.coordinator == nil {
		handlers.SendError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Run coordinator not available")
		return
	}

	if !r.coordinator.Interrupt(id) {
		handlers.SendError(w, http.StatusNotFound, ErrCodeNotFound, "no live run with that id")
		return
	}

	handlers.SendJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"run_id":  id,
	})
}

// HandleStatus reports daemon runtime counters.
// GET /api/v1/status
func (r *Router) HandleStatus(w http.ResponseWriter, req *http.Request) {
	resp := StatusResponse{Time: time.Now()}
	if r.table != nil {
		resp.ActiveRuns = r.table.Len()
	}
	if r.registry != nil {
		resp.Pending = len(r.registry.ListPending())
	}
	if r.hub != nil {
		resp.Clients = r.hub.ClientCount()
	}
	handlers.SendJSON(w, http.StatusOK, resp)
}
