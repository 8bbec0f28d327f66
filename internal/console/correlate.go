package console

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pnivek/pteroCraft/internal/ansi"
	"github.com/pnivek/pteroCraft/internal/metrics"
	"github.com/pnivek/pteroCraft/internal/panel"
)

// ErrNotReady is returned when a command is issued before the session is
// authenticated. Callers must not retry; the engine reconnects on its own.
var ErrNotReady = errors.New("console session not authenticated")

// ErrUnknownFamily is returned for a correlation against a family the
// spec table does not know. No network I/O is attempted.
var ErrUnknownFamily = errors.New("unknown response family")

// Match is a correlated command response: the outcome tag of the matcher
// that hit, the raw buffered line, and any extracted fields.
type Match struct {
	Outcome Outcome
	Raw     string
	Fields  Fields
}

// Clean returns the matched line with escape sequences stripped and
// whitespace trimmed, the form the matcher actually saw.
func (m *Match) Clean() string {
	return strings.TrimSpace(ansi.Strip(m.Raw))
}

// SendCommand relays one console command. It requires an authenticated
// session and performs exactly one send; transmit failures are local
// errors, never retried here.
func (e *Engine) SendCommand(ctx context.Context, command string) error {
	if !e.IsAuthenticated() {
		return ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.writeFrame(panel.CommandFrame(command)); err != nil {
		return fmt.Errorf("sending command %q: %w", command, err)
	}
	metrics.CommandsSentTotal.Inc()
	e.log.Info("command sent", zap.String("command", command))
	return nil
}

// SendAndMatch relays command and polls the ring buffer for the newest
// line matching the named response family, within the configured response
// timeout. The whole buffer is re-scanned newest-first on every tick: a
// command may echo before producing its real effect line, and the most
// recent candidate always wins.
//
// A (nil, nil) return means no line matched before the deadline: a
// defined "no confirmation" outcome, not an error. Concurrent calls are
// not serialized; the wire protocol carries no request IDs, so with
// overlapping patterns a call can match a line produced by another
// in-flight command.
func (e *Engine) SendAndMatch(ctx context.Context, command, family string) (*Match, error) {
	spec := e.cfg.Specs.Get(family)
	if spec == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFamily, family)
	}
	if err := e.SendCommand(ctx, command); err != nil {
		return nil, err
	}

	start := time.Now()
	match, err := e.pollForMatch(ctx, func(clean string) *Match {
		outcome, fields, ok := spec.MatchLine(clean)
		if !ok {
			return nil
		}
		return &Match{Outcome: outcome, Fields: fields}
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		metrics.CorrelationsTotal.WithLabelValues(family, "timeout").Inc()
		e.log.Warn("no response matched before deadline",
			zap.String("command", command), zap.String("family", family))
		return nil, nil
	}

	metrics.CorrelationsTotal.WithLabelValues(family, string(match.Outcome)).Inc()
	metrics.CorrelationDuration.WithLabelValues(family).Observe(time.Since(start).Seconds())
	e.log.Info("response matched",
		zap.String("command", command),
		zap.String("family", family),
		zap.String("outcome", string(match.Outcome)))
	return match, nil
}

// SendAndMatchLiteral relays command and waits for a line ending in one of
// the candidate phrases (case-insensitive). Used where responses are a
// small closed set of exact phrases rather than parametrized text. Returns
// the cleaned matched line, or "" when nothing matched in time.
func (e *Engine) SendAndMatchLiteral(ctx context.Context, command string, candidates []string) (string, error) {
	lowered := make([]string, len(candidates))
	for i, c := range candidates {
		lowered[i] = strings.ToLower(c)
	}

	if err := e.SendCommand(ctx, command); err != nil {
		return "", err
	}

	match, err := e.pollForMatch(ctx, func(clean string) *Match {
		lc := strings.ToLower(clean)
		for _, c := range lowered {
			if strings.HasSuffix(lc, c) {
				return &Match{}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if match == nil {
		metrics.CorrelationsTotal.WithLabelValues("literal", "timeout").Inc()
		return "", nil
	}
	metrics.CorrelationsTotal.WithLabelValues("literal", "matched").Inc()
	return match.Clean(), nil
}

// pollForMatch scans buffer snapshots newest-first until test hits, the
// response timeout elapses (nil match), or ctx is cancelled. The deadline
// is wall-clock from the send, so the initial grace period counts
// against it.
func (e *Engine) pollForMatch(ctx context.Context, test func(clean string) *Match) (*Match, error) {
	deadline := time.Now().Add(e.ResponseTimeout())

	// Give the server a beat before the first scan.
	if !sleepCtx(ctx, e.cfg.SendGrace) {
		return nil, ctx.Err()
	}

	for {
		snap := e.ring.Snapshot()
		for i := len(snap) - 1; i >= 0; i-- {
			raw := snap[i]
			clean := strings.TrimSpace(ansi.Strip(raw))
			if clean == "" {
				continue
			}
			if m := test(clean); m != nil {
				m.Raw = raw
				return m, nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, nil
		}
		wait := e.cfg.PollInterval
		if wait > remaining {
			wait = remaining
		}
		if !sleepCtx(ctx, wait) {
			return nil, ctx.Err()
		}
	}
}
