// Package gateway provides the HTTP gateway server.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	v1 "steward/api/v1"
	"steward/internal/config"
	"steward/internal/gateway/handlers"
	"steward/internal/gateway/middleware"
	"steward/internal/gateway/websocket"
	"steward/pkg/logger"
)

// Server represents the HTTP gateway server.
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	watcher     *config.Watcher
	config      *config.Config
	rateLimiter *middleware.RateLimiter
	apiRouter   *v1.Router
}

// NewServer creates a new gateway server. API routes are registered
// from deps; the WebSocket endpoint is always mounted.
func NewServer(cfg *config.Config, hub *websocket.Hub, deps *v1.RouterDeps) *Server {
	router := mux.NewRouter()

	rlConfig := middleware.RateLimiterConfig{
		RequestsPerMinute: cfg.Server.RateLimit.RequestsPerMinute,
		Burst:             cfg.Server.RateLimit.Burst,
		Enabled:           cfg.Server.RateLimit.Enabled,
		CleanupInterval:   cfg.Server.RateLimit.CleanupInterval,
	}
	if rlConfig.RequestsPerMinute == 0 {
		rlConfig.RequestsPerMinute = 60
	}
	if rlConfig.Burst == 0 {
		rlConfig.Burst = 10
	}
	if rlConfig.CleanupInterval == 0 {
		rlConfig.CleanupInterval = 5 * time.Minute
	}
	rateLimiter := middleware.NewRateLimiter(rlConfig)

	// Middleware chain: Recovery -> Logging -> CORS -> Auth -> RateLimit
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				middleware.Auth(cfg.Server.AuthToken)(
					rateLimiter.RateLimit(router),
				),
			),
		),
	)

	server := &Server{
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 0, // WebSocket connections are long-lived
			IdleTimeout:  120 * time.Second,
		},
		router:      router,
		hub:         hub,
		config:      cfg,
		rateLimiter: rateLimiter,
	}

	server.apiRouter = v1.NewRouter(deps)
	server.apiRouter.RegisterRoutes(router)

	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(hub, w, r)
	})

	return server
}

// Start starts the HTTP server. It blocks until shutdown.
func (s *Server) Start() error {
	handlers.InitStartTime()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.httpServer.Addr = addr

	go s.hub.Run()

	logger.Info().
		Str("addr", addr).
		Msg("Starting gateway server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	if s.watcher != nil {
		s.watcher.Stop()
	}

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}

// SetWatcher sets the config watcher stopped on shutdown.
func (s *Server) SetWatcher(w *config.Watcher) {
	s.watcher = w
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}
