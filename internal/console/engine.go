// Package console implements the console-session engine: a persistent,
// auto-reconnecting WebSocket client that authenticates against the panel,
// ingests the shared console stream into a bounded ring buffer, and
// correlates issued commands with the console lines they produce.
package console

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/pnivek/pteroCraft/internal/ansi"
	"github.com/pnivek/pteroCraft/internal/metrics"
	"github.com/pnivek/pteroCraft/internal/panel"
)

// State is the engine's connection state. Authenticated implies Connected.
type State int32

const (
	StateDisconnected State = iota
	StateConnected
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "disconnected"
	}
}

// Config holds the engine's tunables. Zero values fall back to defaults.
type Config struct {
	// BufferSize is the ring buffer capacity in lines.
	BufferSize int

	// Reconnect backoff: delay grows by Factor per consecutive failure,
	// plus jitter, capped at MaxDelay; reset to MinDelay on a successful
	// socket open.
	ReconnectMinDelay time.Duration
	ReconnectMaxDelay time.Duration
	ReconnectFactor   float64

	// AuthRetryDelay is the fixed pause after a failed handshake.
	AuthRetryDelay time.Duration

	// AuthTimeout bounds the wait for the handshake reply frame.
	AuthTimeout time.Duration

	// Keep-alive probing.
	PingInterval time.Duration
	PingTimeout  time.Duration

	// ResponseTimeout is the default correlation window per command.
	ResponseTimeout time.Duration

	// PollInterval is the buffer re-scan cadence during correlation.
	PollInterval time.Duration

	// SendGrace is the pause between sending a command and the first
	// buffer scan, giving the server a beat to echo feedback.
	SendGrace time.Duration

	// Specs overrides the response spec table. Nil means DefaultSpecs.
	Specs SpecTable
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:        DefaultRingCapacity,
		ReconnectMinDelay: 1 * time.Second,
		ReconnectMaxDelay: 60 * time.Second,
		ReconnectFactor:   2.0,
		AuthRetryDelay:    5 * time.Second,
		AuthTimeout:       10 * time.Second,
		PingInterval:      20 * time.Second,
		PingTimeout:       10 * time.Second,
		ResponseTimeout:   5 * time.Second,
		PollInterval:      200 * time.Millisecond,
		SendGrace:         500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BufferSize <= 0 {
		c.BufferSize = d.BufferSize
	}
	if c.ReconnectMinDelay <= 0 {
		c.ReconnectMinDelay = d.ReconnectMinDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = d.ReconnectMaxDelay
	}
	if c.ReconnectFactor <= 1 {
		c.ReconnectFactor = d.ReconnectFactor
	}
	if c.AuthRetryDelay <= 0 {
		c.AuthRetryDelay = d.AuthRetryDelay
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = d.PingInterval
	}
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.ResponseTimeout <= 0 {
		c.ResponseTimeout = d.ResponseTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.SendGrace < 0 {
		c.SendGrace = d.SendGrace
	}
	if c.Specs == nil {
		c.Specs = DefaultSpecs()
	}
	return c
}

// Engine owns the connection lifecycle and the ring buffer. One Engine is
// constructed at process start and handed to every consumer; there are no
// package-level singletons.
//
// The ring buffer is NOT cleared on reconnect, so recent history survives
// brief blips. The known consequence: a line buffered in a stale session
// can in principle satisfy a correlation issued after reconnecting.
type Engine struct {
	cfg     Config
	log     *zap.Logger
	fetcher panel.CredentialFetcher
	ring    *Ring

	state atomic.Int32

	// responseTimeout is the live correlation window; it is the one
	// tunable that can change under a running engine (config reload).
	responseTimeout atomic.Int64

	connMu sync.Mutex
	conn   *websocket.Conn

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns an engine that will connect through fetcher. The engine is
// inert until Start.
func New(fetcher panel.CredentialFetcher, cfg Config, log *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:     cfg,
		log:     log.Named("console"),
		fetcher: fetcher,
		ring:    NewRing(cfg.BufferSize),
	}
	e.responseTimeout.Store(int64(cfg.ResponseTimeout))
	return e
}

// Start launches the supervisor loop. Calling Start on a running engine is
// a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.cancel != nil {
		e.log.Warn("engine already running")
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})
	go e.run(runCtx)
}

// Stop cancels the supervisor, waits for it to exit, and closes the live
// socket best-effort. Safe to call on a stopped engine.
func (e *Engine) Stop() {
	e.runMu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.runMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.closeConn()
}

// State returns the current connection state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// IsConnected reports whether the socket is open.
func (e *Engine) IsConnected() bool {
	return e.State() >= StateConnected
}

// IsAuthenticated reports whether the session is authenticated and the
// listening loop is live.
func (e *Engine) IsAuthenticated() bool {
	return e.State() == StateAuthenticated
}

// ResponseTimeout returns the current correlation window.
func (e *Engine) ResponseTimeout() time.Duration {
	return time.Duration(e.responseTimeout.Load())
}

// SetResponseTimeout changes the correlation window for subsequent
// commands. Safe to call on a running engine; non-positive values are
// ignored.
func (e *Engine) SetResponseTimeout(d time.Duration) {
	if d > 0 {
		e.responseTimeout.Store(int64(d))
	}
}

// RecentLines returns up to n of the newest buffered lines, oldest first,
// with escape sequences stripped.
func (e *Engine) RecentLines(n int) []string {
	raw := e.ring.Last(n)
	out := make([]string, len(raw))
	for i, l := range raw {
		out[i] = ansi.Strip(l)
	}
	return out
}

// LastLine returns the newest buffered line, stripped, if any.
func (e *Engine) LastLine() (string, bool) {
	lines := e.RecentLines(1)
	if len(lines) == 0 {
		return "", false
	}
	return lines[0], true
}

// run is the supervisor loop: fetch credentials, dial, authenticate,
// listen, tear down, back off, repeat. It exits only on cancellation.
// Every network or protocol error is absorbed here and turned into a
// retry; nothing propagates out.
func (e *Engine) run(ctx context.Context) {
	defer close(e.done)
	defer e.setState(StateDisconnected)

	delay := e.cfg.ReconnectMinDelay
	for {
		e.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}

		info, err := e.fetcher.FetchConnectionInfo(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.Warn("failed to fetch websocket details",
				zap.Error(err), zap.Duration("retry_in", delay))
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = e.nextDelay(delay)
			continue
		}

		metrics.ReconnectsTotal.Inc()
		dialer := websocket.Dialer{HandshakeTimeout: e.cfg.AuthTimeout}
		conn, _, err := dialer.DialContext(ctx, info.SocketURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.log.Error("websocket dial failed",
				zap.Error(err), zap.Duration("retry_in", delay))
			if !sleepCtx(ctx, delay) {
				return
			}
			delay = e.nextDelay(delay)
			continue
		}

		e.setConn(conn)
		e.setState(StateConnected)
		delay = e.cfg.ReconnectMinDelay

		sessionID := uuid.NewString()
		slog := e.log.With(zap.String("session_id", sessionID))
		slog.Info("websocket connected", zap.String("url", info.SocketURL))

		if !e.authenticate(conn, info.Token, slog) {
			metrics.AuthFailuresTotal.Inc()
			// Elevated severity: repeated handshake failures usually mean
			// the credential source is stale or revoked.
			slog.Error("auth handshake failed, retrying",
				zap.Duration("retry_in", e.cfg.AuthRetryDelay))
			e.closeConn()
			e.setState(StateDisconnected)
			if !sleepCtx(ctx, e.cfg.AuthRetryDelay) {
				return
			}
			continue
		}

		e.setState(StateAuthenticated)
		slog.Info("websocket authenticated, listening")
		e.listen(ctx, conn, slog)

		e.closeConn()
		e.setState(StateDisconnected)
		if ctx.Err() != nil {
			return
		}
		slog.Info("websocket disconnected", zap.Duration("retry_in", delay))
		if !sleepCtx(ctx, delay) {
			return
		}
		delay = e.nextDelay(delay)
	}
}

// authenticate performs the one-shot credential exchange: send the auth
// frame, wait up to AuthTimeout for exactly one reply, succeed only on an
// "auth success" event. All failure modes return false; state transitions
// are the caller's responsibility.
func (e *Engine) authenticate(conn *websocket.Conn, token string, log *zap.Logger) bool {
	if err := e.writeFrame(panel.AuthFrame(token)); err != nil {
		log.Error("sending auth frame", zap.Error(err))
		return false
	}

	conn.SetReadDeadline(time.Now().Add(e.cfg.AuthTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Error("waiting for auth reply", zap.Error(err))
		return false
	}

	var reply panel.Frame
	if err := json.Unmarshal(data, &reply); err != nil {
		log.Error("decoding auth reply", zap.Error(err))
		return false
	}
	if reply.Event != panel.EventAuthSuccess {
		log.Error("auth rejected",
			zap.String("event", reply.Event), zap.String("reason", reply.Arg()))
		return false
	}
	return true
}

// listen is the ingest loop. It returns when the socket closes (cleanly or
// not), when the panel signals credential expiry, or when ctx is
// cancelled. Malformed frames are skipped, never fatal. The loop is
// receive-only.
func (e *Engine) listen(ctx context.Context, conn *websocket.Conn, log *zap.Logger) {
	sctx, scancel := context.WithCancel(ctx)
	defer scancel()

	// Unblock the read below on cancellation: closing the conn is the only
	// way to interrupt a blocked ReadMessage.
	go func() {
		<-sctx.Done()
		if ctx.Err() != nil {
			conn.Close()
		}
	}()

	go e.keepalive(sctx, conn, log)

	conn.SetReadDeadline(time.Now().Add(e.cfg.PingInterval + e.cfg.PingTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(e.cfg.PingInterval + e.cfg.PingTimeout))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("websocket closed by peer")
			} else if ctx.Err() == nil {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var frame panel.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			log.Error("skipping malformed frame", zap.Error(err),
				zap.ByteString("raw", truncate(data, 100)))
			continue
		}

		switch frame.Event {
		case panel.EventConsoleOutput:
			if len(frame.Args) > 0 {
				e.ring.Append(frame.Args[0])
				metrics.ConsoleLinesTotal.Inc()
			}
		case panel.EventStatus:
			log.Debug("server status", zap.String("status", frame.Arg()))
		case panel.EventTokenExpiring, panel.EventTokenExpired:
			// Tokens are single-use and time-boxed; reconnect for a fresh one.
			log.Warn("session token expiry signalled, reconnecting",
				zap.String("event", frame.Event))
			return
		default:
			// Unrecognized events are ignored.
		}
	}
}

// keepalive sends pings on PingInterval; a missed pong surfaces as a read
// deadline error in listen, which tears the session down.
func (e *Engine) keepalive(ctx context.Context, conn *websocket.Conn, log *zap.Logger) {
	ticker := time.NewTicker(e.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(e.cfg.PingTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Debug("ping failed", zap.Error(err))
				return
			}
		}
	}
}

// writeFrame marshals and sends one frame on the live socket. Writers are
// serialized; control frames (pings) bypass this path safely.
func (e *Engine) writeFrame(f panel.Frame) error {
	e.connMu.Lock()
	defer e.connMu.Unlock()

	if e.conn == nil {
		return ErrNotReady
	}
	e.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return e.conn.WriteJSON(f)
}

func (e *Engine) setConn(conn *websocket.Conn) {
	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()
}

func (e *Engine) closeConn() {
	e.connMu.Lock()
	conn := e.conn
	e.conn = nil
	e.connMu.Unlock()

	if conn != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}
}

func (e *Engine) setState(s State) {
	e.state.Store(int32(s))
	metrics.ConnectionState.Set(float64(s))
}

// nextDelay grows the reconnect delay multiplicatively and adds bounded
// jitter: min(max, d*factor) + uniform(0.1s, d*0.1+0.1s), capped at max.
func (e *Engine) nextDelay(d time.Duration) time.Duration {
	grown := time.Duration(float64(d) * e.cfg.ReconnectFactor)
	if grown > e.cfg.ReconnectMaxDelay {
		grown = e.cfg.ReconnectMaxDelay
	}
	lo := 100 * time.Millisecond
	hi := grown/10 + lo
	jitter := lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
	if grown+jitter > e.cfg.ReconnectMaxDelay {
		return e.cfg.ReconnectMaxDelay
	}
	return grown + jitter
}

// sleepCtx waits d or until ctx is cancelled. Returns false on
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
