package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"steward/internal/server"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the steward daemon",
		Long: `Start the steward daemon.

The daemon launches agent runs on request, holds tool-use permission
requests for review, and broadcasts session activity over WebSocket.`,
		Example: `  # Start with default configuration
  steward serve

  # Start on a custom port
  steward serve --port 8080`,
		RunE: runServe,
	}

	cmd.Flags().IntP("port", "p", 0, "port to listen on (overrides config)")
	cmd.Flags().String("host", "", "host to bind to (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	cfg := cliCtx.Config
	log := cliCtx.Logger

	if port, _ := cmd.Flags().GetInt("port"); port > 0 {
		cfg.Server.Port = port
	}
	if host, _ := cmd.Flags().GetString("host"); host != "" {
		cfg.Server.Host = host
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8317
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}

	log.Info().Msg("Starting steward daemon...")

	srv, err := server.New(server.Config{
		ConfigPath: cliCtx.ConfigPath,
		Logger:     *log,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info().
		Str("address", fmt.Sprintf("http://%s", srv.Addr())).
		Msg("Daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info().Msg("Shutting down...")
	case err := <-srv.ErrorChan():
		if err != nil {
			log.Error().Err(err).Msg("Server error")
			return err
		}
	}

	if err := srv.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
		return err
	}

	return nil
}
