package v1

import (
	"net/http"

	"github.com/gorilla/mux"

	"steward/internal/attention"
	"steward/internal/gateway/handlers"
	"steward/internal/gateway/websocket"
	"steward/internal/run"
	"steward/internal/storage"
	"steward/internal/transcript"
)

// RouterDeps holds dependencies for the v1 API router.
type RouterDeps struct {
	Coordinator  *run.Coordinator
	Registry     *attention.Registry
	Table        *run.Table
	Transcripts  *transcript.Store
	Interactions *storage.InteractionStore
	Hub          *websocket.Hub
	Version      string
}

// Router wraps v1 API dependencies.
type Router struct {
	coordinator  *run.Coordinator
	registry     *attention.Registry
	table        *run.Table
	transcripts  *transcript.Store
	interactions *storage.InteractionStore
	hub          *websocket.Hub
	version      string
}

// NewRouter creates a new v1 API router.
func NewRouter(deps *RouterDeps) *Router {
	if deps == nil {
		deps = &RouterDeps{}
	}
	return &Router{
		coordinator:  deps.Coordinator,
		registry:     deps.Registry,
		table:        deps.Table,
		transcripts:  deps.Transcripts,
		interactions: deps.Interactions,
		hub:          deps.Hub,
		version:      deps.Version,
	}
}

// RegisterRoutes registers all v1 API routes.
func (r *Router) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Health and status
	v1.HandleFunc("/health", handlers.HealthHandler(r.version)).Methods(http.MethodGet)
	v1.HandleFunc("/status", r.HandleStatus).Methods(http.MethodGet)

	// Runs
	v1.HandleFunc("/runs", r.HandleLaunchRun).Methods(http.MethodPost)
	v1.HandleFunc("/runs/{id}/interrupt", r.HandleInterruptRun).Methods(http.MethodPost)

	// Attention
	v1.HandleFunc("/attention", r.HandleListAttention).Methods(http.MethodGet)
	v1.HandleFunc("/attention/{id}/resolve", r.HandleResolveAttention).Methods(http.MethodPost)

	// Sessions
	v1.HandleFunc("/sessions", r.HandleListSessions).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/messages", r.HandleGetMessages).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/{id}/interactions", r.HandleGetInteractions).Methods(http.MethodGet)
	v1.HandleFunc("/projects", r.HandleListProjects).Methods(http.MethodGet)
}
