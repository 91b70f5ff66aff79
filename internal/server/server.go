// Package server wires the daemon's components together and manages
// their lifecycle.
package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	v1 "steward/api/v1"
	"steward/internal/attention"
	"steward/internal/config"
	"steward/internal/domain"
	"steward/internal/engine"
	"steward/internal/gateway"
	"steward/internal/gateway/websocket"
	"steward/internal/maintenance"
	"steward/internal/run"
	"steward/internal/storage"
	"steward/internal/transcript"
	"steward/pkg/logger"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Server is the assembled steward daemon.
type Server struct {
	cfg           *config.Config
	log           zerolog.Logger
	gatewayServer *gateway.Server
	db            *storage.DB
	retention     *maintenance.Retention
	coordinator   *run.Coordinator
	registry      *attention.Registry
	table         *run.Table
	hub           *websocket.Hub

	mu        sync.RWMutex
	running   bool
	startedAt time.Time
	errChan   chan error
}

// Config holds construction parameters for the daemon.
type Config struct {
	ConfigPath string
	Logger     zerolog.Logger
}

// New builds the daemon from configuration: storage, attention
// registry, engine client, run coordinator, broadcast hub and the
// HTTP gateway, in dependency order.
func New(cfg Config) (*Server, error) {
	appCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := storage.Open(appCfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	interactions := storage.NewInteractionStore(db)

	hub := websocket.NewHub()
	registry := attention.NewRegistry(interactions, hub)

	sessionsRoot, err := config.ExpandPath(appCfg.Sessions.Root)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("expand sessions root: %w", err)
	}
	transcripts := transcript.NewStore(sessionsRoot)

	eng, err := engine.NewCLIEngine(engine.CLIConfig{
		Binary:     appCfg.Agent.Binary,
		MinVersion: appCfg.Agent.MinVersion,
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init engine: %w", err)
	}

	table := run.NewTable()
	coordinator := run.NewCoordinator(eng, registry, hub, table, transcripts)

	// Resolutions can also arrive over the WebSocket itself.
	hub.SetResolveHandler(func(attentionID, behavior, message string) error {
		res := domain.Resolution{Behavior: domain.Behavior(behavior), Message: message}
		switch res.Behavior {
		case domain.BehaviorAllow, domain.BehaviorDeny, domain.BehaviorAllowAlways:
		default:
			return fmt.Errorf("invalid behavior %q", behavior)
		}
		if !registry.Resolve(attentionID, res) {
			return fmt.Errorf("no pending attention item %q", attentionID)
		}
		return nil
	})

	deps := &v1.RouterDeps{
		Coordinator:  coordinator,
		Registry:     registry,
		Table:        table,
		Transcripts:  transcripts,
		Interactions: interactions,
		Hub:          hub,
		Version:      Version,
	}

	gatewayServer := gateway.NewServer(appCfg, hub, deps)

	retention, err := maintenance.NewRetention(appCfg.Retention, interactions)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init retention: %w", err)
	}

	return &Server{
		cfg:           appCfg,
		log:           cfg.Logger,
		gatewayServer: gatewayServer,
		db:            db,
		retention:     retention,
		coordinator:   coordinator,
		registry:      registry,
		table:         table,
		hub:           hub,
		errChan:       make(chan error, 1),
	}, nil
}

// Start launches the gateway and background jobs. It returns once the
// server is accepting requests; errors surface on ErrorChan.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.startedAt = time.Now()
	s.mu.Unlock()

	if s.retention != nil {
		s.retention.Start()
	}

	if watcher, err := config.NewWatcher(config.LoadedPath(), func(cfg *config.Config) {
		s.log.Info().Msg("Configuration reloaded")
	}); err == nil {
		if err := watcher.Start(); err == nil {
			s.gatewayServer.SetWatcher(watcher)
		}
	} else {
		s.log.Warn().Err(err).Msg("Config watcher unavailable")
	}

	go func() {
		if err := s.gatewayServer.Start(); err != nil {
			s.errChan <- err
		}
	}()

	return nil
}

// ErrorChan returns the channel carrying fatal server errors.
func (s *Server) ErrorChan() <-chan error {
	return s.errChan
}

// Stop shuts the daemon down: gateway first, then background jobs and
// storage.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.gatewayServer.Shutdown(ctx); err != nil {
		s.log.Error().Err(err).Msg("Gateway shutdown error")
	}

	if s.retention != nil {
		s.retention.Stop()
	}

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}

	logger.Info().Msg("Server stopped")
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
}

// Config returns the loaded configuration.
func (s *Server) Config() *config.Config {
	return s.cfg
}
