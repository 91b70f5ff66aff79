package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steward/internal/attention"
	"steward/internal/domain"
)

func newTestRouter(deps *RouterDeps) *mux.Router {
	m := mux.NewRouter()
	NewRouter(deps).RegisterRoutes(m)
	return m
}

func TestRouter_RegisterRoutes(t *testing.T) {
	m := newTestRouter(nil)

	routes := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/health"},
		{"GET", "/api/v1/status"},
		{"POST", "/api/v1/runs"},
		{"POST", "/api/v1/runs/abc/interrupt"},
		{"GET", "/api/v1/attention"},
		{"POST", "/api/v1/attention/abc/resolve"},
		{"GET", "/api/v1/sessions"},
		{"GET", "/api/v1/sessions/abc/messages"},
		{"GET", "/api/v1/sessions/abc/interactions"},
		{"GET", "/api/v1/projects"},
	}

	for _, route := range routes {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			match := &mux.RouteMatch{}
			assert.True(t, m.Match(req, match), "route not registered")
		})
	}
}

func TestHandleHealth(t *testing.T) {
	m := newTestRouter(&RouterDeps{Version: "1.2.3"})

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestHandleLaunchRun_Validation(t *testing.T) {
	m := newTestRouter(nil)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"invalid json", `{`, http.StatusBadRequest},
		{"missing prompt", `{"workdir":"/tmp"}`, http.StatusBadRequest},
		{"missing workdir", `{"prompt":"hi"}`, http.StatusBadRequest},
		{"no coordinator", `{"prompt":"hi","workdir":"/tmp"}`, http.StatusServiceUnavailable},
		{"resume without workdir ok", `{"prompt":"hi","resume_id":"sess-1"}`, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/runs", bytes.NewBufferString(tt.body))
			rr := httptest.NewRecorder()
			m.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestHandleListAttention(t *testing.T) {
	registry := attention.NewRegistry(nil, nil)
	registry.Enqueue(domain.AttentionItem{ID: "a1", RunID: "r1", Kind: domain.KindPermission, ToolName: "Edit"})
	registry.Enqueue(domain.AttentionItem{ID: "a2", RunID: "r1", Kind: domain.KindCompletion})

	m := newTestRouter(&RouterDeps{Registry: registry})

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/attention", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp AttentionListResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "a1", resp.Items[0].ID)
	assert.Equal(t, "a2", resp.Items[1].ID)
}

func TestHandleListAttention_Empty(t *testing.T) {
	m := newTestRouter(&RouterDeps{Registry: attention.NewRegistry(nil, nil)})

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/attention", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"items":[]}`, rr.Body.String())
}

func TestHandleResolveAttention(t *testing.T) {
	registry := attention.NewRegistry(nil, nil)
	registry.Enqueue(domain.AttentionItem{ID: "a1", RunID: "r1", Kind: domain.KindPermission})

	m := newTestRouter(&RouterDeps{Registry: registry})

	body := bytes.NewBufferString(`{"behavior":"allow"}`)
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/attention/a1/resolve", body))

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, registry.ListPending())

	// Second resolution of the same id is a 404.
	body = bytes.NewBufferString(`{"behavior":"deny"}`)
	rr = httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/attention/a1/resolve", body))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleResolveAttention_InvalidBehavior(t *testing.T) {
	registry := attention.NewRegistry(nil, nil)
	registry.Enqueue(domain.AttentionItem{ID: "a1", RunID: "r1"})

	m := newTestRouter(&RouterDeps{Registry: registry})

	body := bytes.NewBufferString(`{"behavior":"maybe"}`)
	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/attention/a1/resolve", body))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	// The item is untouched.
	assert.Len(t, registry.ListPending(), 1)
}

func TestHandleStatus(t *testing.T) {
	registry := attention.NewRegistry(nil, nil)
	registry.Enqueue(domain.AttentionItem{ID: "a1", RunID: "r1"})

	m := newTestRouter(&RouterDeps{Registry: registry})

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("GET", "/api/v1/status", nil))

	require.Equal(t, http.StatusOK, rr.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Pending)
	assert.Equal(t, 0, resp.ActiveRuns)
}

func TestHandleInterruptRun_NoCoordinator(t *testing.T) {
	m := newTestRouter(nil)

	rr := httptest.NewRecorder()
	m.ServeHTTP(rr, httptest.NewRequest("POST", "/api/v1/runs/r1/interrupt", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
