package flagbase

import (
	"github.com/flagbase/flagbase-go/internal/config"
)

// Config holds all configuration for a Flagbase client. Build one with
// DefaultConfig, ConfigFromEnv or LoadConfig and pass it via WithConfig.
type Config = config.Config

// DefaultConfig returns recommended default configuration.
func DefaultConfig() Config {
	return config.DefaultConfig()
}

// ConfigFromEnv reads FLAGBASE_* environment variables over the defaults.
func ConfigFromEnv() (Config, error) {
	return config.FromEnv()
}

// LoadConfig reads a YAML file, then applies FLAGBASE_* overrides.
func LoadConfig(path string) (Config, error) {
	return config.LoadFile(path)
}
