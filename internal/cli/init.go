package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"steward/internal/config"
)

// InitOptions holds init command options.
type InitOptions struct {
	Force bool
}

// NewInitCmd creates the init command.
func NewInitCmd() *cobra.Command {
	opts := &InitOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize steward configuration",
		Long:  "Initialize the steward configuration directory and files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunInit(opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

// RunInit performs the initialization.
func RunInit(opts *InitOptions) error {
	configDir, err := config.DefaultConfigDir()
	if err != nil {
		return fmt.Errorf("get config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		if !opts.Force {
			return fmt.Errorf("configuration already exists at %s (use --force to overwrite)", configPath)
		}
		if err := os.Remove(configPath); err != nil {
			return fmt.Errorf("remove existing config: %w", err)
		}
	}

	dirs := []string{
		configDir,
		filepath.Join(configDir, "logs"),
		filepath.Join(configDir, "sessions"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	if err := config.WriteDefault(configPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Configuration initialized at %s\n", configPath)
	return nil
}
