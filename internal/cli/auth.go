package cli

import (
	"fmt"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"steward/internal/config"
)

// NewAuthCmd creates the auth command.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authentication commands",
		Long:  `Manage the API bearer token protecting the daemon.`,
	}

	cmd.AddCommand(newAuthSetCmd())
	cmd.AddCommand(newAuthGenerateCmd())
	cmd.AddCommand(newAuthClearCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set the API token",
		Long: `Store the API bearer token in the steward configuration.

Clients must present the token in an Authorization header, or as a
token query parameter on the WebSocket endpoint.`,
		Example: `  # Interactive prompt (token not echoed)
  steward auth set

  # Provide token directly
  steward auth set --token my-secret`,
		RunE: runAuthSet,
	}

	cmd.Flags().StringP("token", "t", "", "API token (if not provided, will prompt)")

	return cmd
}

func newAuthGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Generate and store a random API token",
		RunE:  runAuthGenerate,
	}
}

func newAuthClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove the API token",
		Long:  `Remove the stored API token, disabling authentication.`,
		RunE:  runAuthClear,
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check authentication status",
		RunE:  runAuthStatus,
	}
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	token, _ := cmd.Flags().GetString("token")

	if token == "" {
		fmt.Print("API token: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}

	if token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := config.Set("server.auth_token", token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Println("Token saved")
	return nil
}

func runAuthGenerate(cmd *cobra.Command, args []string) error {
	token := uuid.New().String()

	if err := config.Set("server.auth_token", token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}

	fmt.Printf("Generated token: %s\n", token)
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	if err := config.Set("server.auth_token", ""); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}

	fmt.Println("Token removed, authentication disabled")
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cliCtx := GetCLIContext(cmd)
	if cliCtx == nil {
		return fmt.Errorf("CLI context not initialized")
	}

	if cliCtx.Config.Server.AuthToken == "" {
		fmt.Println("Authentication: disabled (no token configured)")
	} else {
		fmt.Println("Authentication: enabled")
	}
	return nil
}
