// Package config loads and validates the bridge configuration.
//
// Sources, highest priority first:
//  1. Environment variables (PTEROCRAFT_* prefix; secrets also accept
//     their conventional unprefixed names)
//  2. YAML config file (default: pterocraft.yaml in the working directory)
//  3. Built-in defaults
package config

import (
	"context"
	"time"
)

// Config contains all runtime configuration.
type Config struct {
	// Panel is the Pterodactyl client API access.
	Panel struct {
		URL      string
		APIKey   string
		ServerID string
	}

	// Console tunes the console-session engine.
	Console struct {
		BufferSize        int
		ReconnectMinDelay time.Duration
		ReconnectMaxDelay time.Duration
		ReconnectFactor   float64
		PingInterval      time.Duration
		PingTimeout       time.Duration
		ResponseTimeout   time.Duration
	}

	// Discord is the chat front-end.
	Discord struct {
		Token   string
		GuildID string
	}

	// Audit is the command audit trail.
	Audit struct {
		Enabled    bool
		SQLitePath string
	}

	// Metrics exposure.
	Metrics struct {
		Enabled bool
		Addr    string
	}

	// Logging configuration.
	Logging struct {
		Level    string // debug | info | warn | error
		Format   string // json | console
		FilePath string // empty disables the rotating file sink
	}
}

// Manager defines configuration access.
type Manager interface {
	// Load reads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get() *Config

	// Validate checks the configuration is complete and consistent.
	Validate() error

	// Watch emits updated configs when the file changes. Only reload-safe
	// settings (timeouts, log level) take effect without a restart.
	Watch(ctx context.Context) <-chan Config
}

// NewManager creates a manager reading from configPath.
func NewManager(configPath string) Manager {
	return &viperManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
}
