// Package config provides layered configuration for the steward daemon.
// Precedence: environment variables > config file > defaults.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"steward/pkg/logger"
)

// Config is the root configuration structure.
type Config struct {
	Version   string          `mapstructure:"version" yaml:"version"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Sessions  SessionsConfig  `mapstructure:"sessions" yaml:"sessions"`
	Retention RetentionConfig `mapstructure:"retention" yaml:"retention"`
	Log       logger.Config   `mapstructure:"log" yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host      string          `mapstructure:"host" yaml:"host"`
	Port      int             `mapstructure:"port" yaml:"port"`
	AuthToken string          `mapstructure:"auth_token" yaml:"auth_token,omitempty"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// RateLimitConfig holds request rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool          `mapstructure:"enabled" yaml:"enabled"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	Burst             int           `mapstructure:"burst" yaml:"burst"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
}

// AgentConfig holds settings for the external agent CLI.
type AgentConfig struct {
	Binary         string `mapstructure:"binary" yaml:"binary"`
	MinVersion     string `mapstructure:"min_version" yaml:"min_version,omitempty"`
	PermissionMode string `mapstructure:"permission_mode" yaml:"permission_mode,omitempty"`
	// DefaultWorkdir is used when a launch request omits the working directory.
	DefaultWorkdir string `mapstructure:"default_workdir" yaml:"default_workdir,omitempty"`
}

// StorageConfig holds database settings.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SessionsConfig holds transcript storage settings.
type SessionsConfig struct {
	// Root is the directory containing per-project transcript directories.
	Root string `mapstructure:"root" yaml:"root"`
}

// RetentionConfig controls the scheduled interaction-record sweep.
type RetentionConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Schedule is a cron expression; defaults to daily at 03:30.
	Schedule string `mapstructure:"schedule" yaml:"schedule"`
	// MaxAge is the age past which resolved interactions are pruned.
	MaxAge time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

var (
	globalConfig *Config
	loadedPath   string
	mu           sync.RWMutex
)

// Load reads configuration from the given path, applying defaults and
// environment overrides (STEWARD_ prefix). A missing file is not an error.
func Load(path string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	SetDefaults()

	viper.SetEnvPrefix("STEWARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		loadedPath = expanded

		viper.SetConfigFile(expanded)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, err
			}
			if !os.IsNotExist(err) {
				var pathErr *os.PathError
				if !errors.As(err, &pathErr) {
					return nil, err
				}
			}
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	globalConfig = &cfg
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration.
func GetConfig() *Config {
	mu.RLock()
	defer mu.RUnlock()
	return globalConfig
}

// LoadedPath returns the path of the most recently loaded config file.
func LoadedPath() string {
	mu.RLock()
	defer mu.RUnlock()
	return loadedPath
}

// Set stores a configuration value and persists it to the loaded file.
func Set(key string, value any) error {
	mu.Lock()
	defer mu.Unlock()

	viper.Set(key, value)
	if loadedPath != "" {
		return save()
	}
	return nil
}

// save writes all settings to the loaded config file as YAML.
// Caller must hold mu. Mode 0600: the file may contain the auth token.
func save() error {
	if loadedPath == "" {
		return errors.New("config path not set")
	}

	dir := filepath.Dir(loadedPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return err
	}

	return os.WriteFile(loadedPath, data, 0600)
}

// WriteDefault writes a default config file at path if none exists.
func WriteDefault(path string) error {
	expanded, err := ExpandPath(path)
	if err != nil {
		return err
	}

	if _, err := os.Stat(expanded); err == nil {
		return errors.New("config file already exists")
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0755); err != nil {
		return err
	}

	cfg := Config{
		Version: "1",
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8317,
		},
		Agent: AgentConfig{
			Binary: "claude",
		},
		Storage:  StorageConfig{Path: "~/.steward/steward.db"},
		Sessions: SessionsConfig{Root: "~/.steward/sessions"},
		Retention: RetentionConfig{
			Enabled:  true,
			Schedule: "30 3 * * *",
			MaxAge:   30 * 24 * time.Hour,
		},
		Log: logger.Config{Level: "info", Format: "console"},
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(expanded, data, 0600)
}
