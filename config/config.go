// Package config loads storage-layer configuration from .env files and the
// process environment. Load returns a plain *Config value rather than
// installing a package-level singleton, so tests and multi-store processes
// can hold independent configurations.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Load reads .env files (most specific first), parses the environment,
// applies defaults, and validates the result.
func Load() (*Config, error) {
	loadEnvFiles()

	cfg := parse()
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// MustLoad loads configuration and panics on error. For application
// initialization where a bad config is fatal.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// loadEnvFiles overlays .env files without clobbering variables already set
// in the environment. Missing files are fine.
func loadEnvFiles() {
	env := os.Getenv("ENVIRONMENT")
	candidates := []string{".env.local", ".env"}
	if env != "" {
		candidates = append([]string{".env." + env}, candidates...)
	}
	for _, f := range candidates {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}
