// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Game  GameConfig  `toml:"game"`
	Serve ServeConfig `toml:"serve"`
}

// GameConfig maps play-related settings.
type GameConfig struct {
	NLevel       *int     `toml:"n-level"`
	SpeedMs      *int     `toml:"speed-ms"`
	Rounds       *int     `toml:"rounds"`
	MatchRate    *float64 `toml:"match-rate"`
	AlphabetFile *string  `toml:"alphabet-file"`
	Speech       *string  `toml:"speech"`
	SpeechRate   *int     `toml:"speech-rate"`
	ShowLetter   *bool    `toml:"show-letter"`
	User         *string  `toml:"user"`
}

// ServeConfig maps settings for the HTTP save-game endpoint.
type ServeConfig struct {
	Addr *string `toml:"addr"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	meta, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	return cfg, nil
}
