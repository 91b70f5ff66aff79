package config

import (
	"time"

	"github.com/spf13/viper"
)

// SetDefaults registers default values for every configuration key.
func SetDefaults() {
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", 8317)
	viper.SetDefault("server.auth_token", "")
	viper.SetDefault("server.rate_limit.enabled", false)
	viper.SetDefault("server.rate_limit.requests_per_minute", 120)
	viper.SetDefault("server.rate_limit.burst", 20)
	viper.SetDefault("server.rate_limit.cleanup_interval", 5*time.Minute)

	viper.SetDefault("agent.binary", "claude")
	viper.SetDefault("agent.min_version", "")
	viper.SetDefault("agent.permission_mode", "")
	viper.SetDefault("agent.default_workdir", "")

	viper.SetDefault("storage.path", "~/.steward/steward.db")
	viper.SetDefault("sessions.root", "~/.steward/sessions")

	viper.SetDefault("retention.enabled", true)
	viper.SetDefault("retention.schedule", "30 3 * * *")
	viper.SetDefault("retention.max_age", 30*24*time.Hour)

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "console")
	viper.SetDefault("log.file", "")
}
