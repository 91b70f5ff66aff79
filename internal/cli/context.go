package cli

import (
	"sync"

	"github.com/rs/zerolog"

	"steward/internal/config"
	"steward/internal/storage"
	"steward/pkg/logger"
)

// CLIContext carries shared state between commands.
type CLIContext struct {
	Config      *config.Config
	ConfigPath  string
	Logger      *zerolog.Logger
	Verbose     bool
	Quiet       bool
	storageOnce sync.Once
	storage     *storage.DB
}

// NewCLIContext creates a CLI context.
func NewCLIContext(cfg *config.Config, configPath string, log *zerolog.Logger, verbose, quiet bool) *CLIContext {
	return &CLIContext{
		Config:     cfg,
		ConfigPath: configPath,
		Logger:     log,
		Verbose:    verbose,
		Quiet:      quiet,
	}
}

// GetStorage opens the storage connection lazily.
func (c *CLIContext) GetStorage() (*storage.DB, error) {
	var err error
	c.storageOnce.Do(func() {
		c.storage, err = storage.Open(c.Config.Storage.Path)
	})
	return c.storage, err
}

// Close releases held resources.
func (c *CLIContext) Close() error {
	if c.storage != nil {
		return c.storage.Close()
	}
	return nil
}

// Log returns the logger, falling back to the global one.
func (c *CLIContext) Log() *zerolog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return logger.Get()
}
