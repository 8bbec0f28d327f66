package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperManager implements Manager using Viper.
type viperManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load reads configuration from the file, environment, and defaults.
func (m *viperManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("PTEROCRAFT")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	if err := m.viper.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus environment carry a full
		// deployment.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		} else if os.IsNotExist(err) {
		} else {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	m.unmarshal()
	m.applyEnvOverrides()
	return nil
}

// Get returns the current configuration.
func (m *viperManager) Get() *Config {
	return m.config
}

// Validate checks the configuration is complete and consistent.
func (m *viperManager) Validate() error {
	errs := m.config.validate()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Watch re-reads the file on change and emits the updated config.
func (m *viperManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		m.unmarshal()
		m.applyEnvOverrides()
		select {
		case m.watchChan <- *m.config:
		default:
			// Consumer is behind; drop this update.
		}
	})
	return m.watchChan
}

func (m *viperManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("console.buffer_size", defaults.Console.BufferSize)
	m.viper.SetDefault("console.reconnect_min_delay", defaults.Console.ReconnectMinDelay)
	m.viper.SetDefault("console.reconnect_max_delay", defaults.Console.ReconnectMaxDelay)
	m.viper.SetDefault("console.reconnect_factor", defaults.Console.ReconnectFactor)
	m.viper.SetDefault("console.ping_interval", defaults.Console.PingInterval)
	m.viper.SetDefault("console.ping_timeout", defaults.Console.PingTimeout)
	m.viper.SetDefault("console.response_timeout", defaults.Console.ResponseTimeout)

	m.viper.SetDefault("audit.enabled", defaults.Audit.Enabled)
	m.viper.SetDefault("audit.sqlite_path", defaults.Audit.SQLitePath)

	m.viper.SetDefault("metrics.enabled", defaults.Metrics.Enabled)
	m.viper.SetDefault("metrics.addr", defaults.Metrics.Addr)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file_path", defaults.Logging.FilePath)
}

func (m *viperManager) unmarshal() {
	cfg := &Config{}

	cfg.Panel.URL = m.viper.GetString("panel.url")
	cfg.Panel.APIKey = m.viper.GetString("panel.api_key")
	cfg.Panel.ServerID = m.viper.GetString("panel.server_id")

	cfg.Console.BufferSize = m.viper.GetInt("console.buffer_size")
	cfg.Console.ReconnectMinDelay = m.viper.GetDuration("console.reconnect_min_delay")
	cfg.Console.ReconnectMaxDelay = m.viper.GetDuration("console.reconnect_max_delay")
	cfg.Console.ReconnectFactor = m.viper.GetFloat64("console.reconnect_factor")
	cfg.Console.PingInterval = m.viper.GetDuration("console.ping_interval")
	cfg.Console.PingTimeout = m.viper.GetDuration("console.ping_timeout")
	cfg.Console.ResponseTimeout = m.viper.GetDuration("console.response_timeout")

	cfg.Discord.Token = m.viper.GetString("discord.token")
	cfg.Discord.GuildID = m.viper.GetString("discord.guild_id")

	cfg.Audit.Enabled = m.viper.GetBool("audit.enabled")
	cfg.Audit.SQLitePath = m.viper.GetString("audit.sqlite_path")

	cfg.Metrics.Enabled = m.viper.GetBool("metrics.enabled")
	cfg.Metrics.Addr = m.viper.GetString("metrics.addr")

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.FilePath = m.viper.GetString("logging.file_path")

	m.config = cfg
}

// applyEnvOverrides accepts the conventional unprefixed names for secrets
// so existing deployments keep working.
func (m *viperManager) applyEnvOverrides() {
	if key := os.Getenv("PTERODACTYL_API_KEY"); key != "" {
		m.config.Panel.APIKey = key
	}
	if url := os.Getenv("PTERODACTYL_URL"); url != "" {
		m.config.Panel.URL = url
	}
	if id := os.Getenv("PTERODACTYL_SERVER_ID"); id != "" {
		m.config.Panel.ServerID = id
	}
	if token := os.Getenv("DISCORD_TOKEN"); token != "" {
		m.config.Discord.Token = token
	}
	if guild := os.Getenv("DISCORD_GUILD_ID"); guild != "" {
		m.config.Discord.GuildID = guild
	}
}
