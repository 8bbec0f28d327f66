// Package metrics exposes Prometheus metrics for the console bridge.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Connection lifecycle.
	ReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pterocraft_reconnects_total",
			Help: "Total number of connection attempts against the panel websocket",
		},
	)

	AuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pterocraft_auth_failures_total",
			Help: "Total number of failed websocket auth handshakes",
		},
	)

	// ConnectionState reports the engine state: 0 disconnected,
	// 1 connected, 2 authenticated.
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pterocraft_connection_state",
			Help: "Current connection state (0=disconnected, 1=connected, 2=authenticated)",
		},
	)

	// Console stream.
	ConsoleLinesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pterocraft_console_lines_total",
			Help: "Total number of console lines ingested into the ring buffer",
		},
	)

	// Command relay.
	CommandsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pterocraft_commands_sent_total",
			Help: "Total number of console commands relayed to the server",
		},
	)

	CorrelationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pterocraft_correlations_total",
			Help: "Command/response correlations by family and outcome (outcome=timeout when none matched)",
		},
		[]string{"family", "outcome"},
	)

	CorrelationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pterocraft_correlation_duration_seconds",
			Help:    "Time from command send to matched response line",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
		[]string{"family"},
	)
)

// NewServer returns an HTTP server exposing /metrics on addr. Callers run
// ListenAndServe on its own goroutine and Shutdown it during teardown.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
