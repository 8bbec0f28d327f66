package config

import (
	"fmt"
	"strings"
)

// validate returns every problem found, not just the first, so operators
// can fix a deployment in one pass.
func (c *Config) validate() []error {
	var errs []error

	if c.Panel.URL == "" {
		errs = append(errs, fmt.Errorf("panel.url is required"))
	} else if !strings.HasPrefix(c.Panel.URL, "http://") && !strings.HasPrefix(c.Panel.URL, "https://") {
		errs = append(errs, fmt.Errorf("panel.url must start with http:// or https://"))
	}
	if c.Panel.APIKey == "" {
		errs = append(errs, fmt.Errorf("panel.api_key is required"))
	}
	if c.Panel.ServerID == "" {
		errs = append(errs, fmt.Errorf("panel.server_id is required"))
	}

	if c.Discord.Token == "" {
		errs = append(errs, fmt.Errorf("discord.token is required"))
	}

	if c.Console.BufferSize <= 0 {
		errs = append(errs, fmt.Errorf("console.buffer_size must be positive"))
	}
	if c.Console.ReconnectFactor <= 1 {
		errs = append(errs, fmt.Errorf("console.reconnect_factor must be greater than 1"))
	}
	if c.Console.ReconnectMinDelay <= 0 || c.Console.ReconnectMaxDelay < c.Console.ReconnectMinDelay {
		errs = append(errs, fmt.Errorf("console reconnect delays must satisfy 0 < min <= max"))
	}
	if c.Console.ResponseTimeout <= 0 {
		errs = append(errs, fmt.Errorf("console.response_timeout must be positive"))
	}

	if c.Audit.Enabled && c.Audit.SQLitePath == "" {
		errs = append(errs, fmt.Errorf("audit.sqlite_path is required when audit is enabled"))
	}
	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		errs = append(errs, fmt.Errorf("metrics.addr is required when metrics are enabled"))
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("logging.level must be one of debug, info, warn, error"))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console"))
	}

	return errs
}
