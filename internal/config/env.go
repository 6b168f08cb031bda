package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvConfig holds overrides read from the environment.
type EnvConfig struct {
	DBPath   string `env:"DUALNBACK_DB"`
	User     string `env:"DUALNBACK_USER"`
	LogPath  string `env:"DUALNBACK_LOG"`
	LogLevel string `env:"DUALNBACK_LOG_LEVEL" envDefault:"info"`
}

// LoadEnv parses EnvConfig and fills unset paths with XDG defaults.
func LoadEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return EnvConfig{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogPath()
	}
	return cfg, nil
}
