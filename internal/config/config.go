// Package config loads server configuration from a TOML file.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the server configuration.
type Config struct {
	// DataDir is where relation files, the WAL, and catalog metadata live.
	DataDir string `toml:"data_dir"`
	// Addr is the HTTP listen address.
	Addr string `toml:"addr"`
	// ArchiveMode forces bulk loads onto the WAL path so the log stays
	// complete enough for archiving.
	ArchiveMode bool `toml:"archive_mode"`
	// LogLevel is a zap level name: debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DataDir:  "./heapdb-data",
		Addr:     ":8123",
		LogLevel: "info",
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}
