// Package app wires the bridge components together and owns their
// lifecycle: configuration, logging, the audit store, the console
// engine, the metrics listener, and the Discord front-end.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pnivek/pteroCraft/internal/audit"
	"github.com/pnivek/pteroCraft/internal/config"
	"github.com/pnivek/pteroCraft/internal/console"
	"github.com/pnivek/pteroCraft/internal/frontend/discord"
	"github.com/pnivek/pteroCraft/internal/logging"
	"github.com/pnivek/pteroCraft/internal/metrics"
	"github.com/pnivek/pteroCraft/internal/panel"
)

// Constructor seams, swapped in tests to drive failure paths.
var (
	openAudit = audit.Open
	newBot    = discord.NewBot
)

// App is the assembled bridge process.
type App struct {
	cfg     *config.Config
	manager config.Manager
	log     *zap.Logger
	level   zap.AtomicLevel

	store      *audit.Store // nil when auditing is disabled
	engine     *console.Engine
	bot        *discord.Bot
	metricsSrv *http.Server

	cancel context.CancelFunc
}

// New loads configuration from configPath and constructs every component.
// Nothing is started yet.
func New(ctx context.Context, configPath string) (*App, error) {
	manager := config.NewManager(configPath)
	if err := manager.Load(ctx); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := manager.Validate(); err != nil {
		return nil, err
	}
	cfg := manager.Get()

	log, level, err := logging.New(logging.Options{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  100,
		MaxBackups: 10,
		MaxAgeDays: 30,
	})
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	a := &App{cfg: cfg, manager: manager, log: log, level: level}

	fetcher := panel.NewClient(cfg.Panel.URL, cfg.Panel.APIKey, cfg.Panel.ServerID)

	engineCfg := console.DefaultConfig()
	engineCfg.BufferSize = cfg.Console.BufferSize
	engineCfg.ReconnectMinDelay = cfg.Console.ReconnectMinDelay
	engineCfg.ReconnectMaxDelay = cfg.Console.ReconnectMaxDelay
	engineCfg.ReconnectFactor = cfg.Console.ReconnectFactor
	engineCfg.PingInterval = cfg.Console.PingInterval
	engineCfg.PingTimeout = cfg.Console.PingTimeout
	engineCfg.ResponseTimeout = cfg.Console.ResponseTimeout
	a.engine = console.New(fetcher, engineCfg, log)

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Audit.Enabled {
		store, err := openAudit(cfg.Audit.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening audit store: %w", err)
		}
		a.store = store
		recorder = store
	}

	a.bot, err = newBot(cfg.Discord.Token, cfg.Discord.GuildID,
		a.engine, recorder, log)
	if err != nil {
		if a.store != nil {
			a.store.Close()
		}
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.metricsSrv = metrics.NewServer(cfg.Metrics.Addr)
	}
	return a, nil
}

// Start brings the process up: console engine first so the front-end
// has something to talk to, then metrics, then the Discord session.
func (a *App) Start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	a.engine.Start(ctx)
	a.log.Info("console engine started",
		zap.Int("buffer_size", a.cfg.Console.BufferSize))

	if a.metricsSrv != nil {
		go func() {
			a.log.Info("metrics listening", zap.String("addr", a.metricsSrv.Addr))
			if err := a.metricsSrv.ListenAndServe(); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				a.log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	if err := a.bot.Open(); err != nil {
		a.Stop()
		return err
	}

	go a.watchConfig(ctx)

	a.log.Info("bridge running")
	return nil
}

// watchConfig applies file-change updates for the reload-safe settings.
// Only the log level and the correlation timeout take effect without a
// restart; everything else keeps its boot value.
func (a *App) watchConfig(ctx context.Context) {
	updates := a.manager.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case cfg := <-updates:
			a.applyReload(&cfg)
		}
	}
}

func (a *App) applyReload(cfg *config.Config) {
	if lvl, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil && a.level.Level() != lvl {
		a.level.SetLevel(lvl)
		a.log.Info("log level reloaded", zap.String("level", cfg.Logging.Level))
	}
	if d := cfg.Console.ResponseTimeout; d > 0 && d != a.engine.ResponseTimeout() {
		a.engine.SetResponseTimeout(d)
		a.log.Info("response timeout reloaded", zap.Duration("timeout", d))
	}
}

// Stop tears the process down in reverse start order: the front-end
// first so no new commands arrive, then the engine and its socket, then
// storage and logs.
func (a *App) Stop() {
	if err := a.bot.Close(); err != nil {
		a.log.Warn("closing discord session", zap.Error(err))
	}

	if a.cancel != nil {
		a.cancel()
	}

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.log.Warn("shutting down metrics server", zap.Error(err))
		}
		cancel()
	}

	a.engine.Stop()

	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn("closing audit store", zap.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	a.log.Sync()
}
