package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config is the server configuration, read from a TOML file.
//
//	listen = ":8080"
//
//	[store]
//	kind = "local"   # or "fluid"
//	path = "plugins"
//
//	[log]
//	development = false
//	level = "info"
//
//	[runtime]
//	max_memory_pages = 256
type Config struct {
	Listen  string        `toml:"listen"`
	Store   StoreConfig   `toml:"store"`
	Log     LogConfig     `toml:"log"`
	Runtime RuntimeConfig `toml:"runtime"`
}

// StoreConfig selects where modules are resolved from.
type StoreConfig struct {
	Kind string `toml:"kind"`
	Path string `toml:"path"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Development bool   `toml:"development"`
	Level       string `toml:"level"`
}

// RuntimeConfig is passed to every runtime.Context and runtime.Runner.
type RuntimeConfig struct {
	MaxMemoryPages uint `toml:"max_memory_pages"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Listen: ":8080",
		Store:  StoreConfig{Kind: "local", Path: "plugins"},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadConfig parses the TOML file at path. Fields absent from the file keep
// their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}

	// Defaults for values explicitly emptied in the file
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "plugins"
	}
	return cfg, nil
}

// NewLogger builds the zap logger described by c.
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		level, err := zapcore.ParseLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(level)
	}
	return zc.Build()
}
