package config

import "time"

// DefaultConfig returns the built-in defaults. Panel and Discord
// credentials have no defaults and must come from the file or environment.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Console.BufferSize = 500
	cfg.Console.ReconnectMinDelay = 1 * time.Second
	cfg.Console.ReconnectMaxDelay = 60 * time.Second
	cfg.Console.ReconnectFactor = 2.0
	cfg.Console.PingInterval = 20 * time.Second
	cfg.Console.PingTimeout = 10 * time.Second
	cfg.Console.ResponseTimeout = 5 * time.Second

	cfg.Audit.Enabled = true
	cfg.Audit.SQLitePath = "pterocraft.db"

	cfg.Metrics.Enabled = true
	cfg.Metrics.Addr = ":9182"

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	return cfg
}
