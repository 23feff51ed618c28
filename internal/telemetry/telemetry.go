// Package telemetry supplies JadeGate's diagnostic logging (zap) and
// operational metrics (Prometheus), both deliberately separate from the
// domain audit trail in internal/audit: this is "how is the gateway
// itself doing", not "what did the gateway decide" (spec.md §2).
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jadegate/jadegate/internal/runtime"
)

// NewLogger builds the process-wide structured logger. debug toggles
// console-friendly development output instead of JSON.
func NewLogger(debug bool) (*zap.SugaredLogger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return logger.Sugar(), nil
}

// Metrics holds every Prometheus collector the gateway exports.
type Metrics struct {
	sessionsOpened  prometheus.Counter
	sessionsClosed  prometheus.Counter
	callsTotal      *prometheus.CounterVec
	blockedTotal    prometheus.Counter
	breakerTrips    *prometheus.CounterVec
	sessionCalls    prometheus.Histogram
	tofuAlerts      *prometheus.CounterVec
}

// NewMetrics registers and returns the gateway's metric collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		sessionsOpened: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jadegate_sessions_opened_total",
			Help: "Total number of proxy sessions opened.",
		}),
		sessionsClosed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jadegate_sessions_closed_total",
			Help: "Total number of proxy sessions closed.",
		}),
		callsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jadegate_calls_total",
			Help: "Total tool calls evaluated, by verdict.",
		}, []string{"tool", "verdict"}),
		blockedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "jadegate_calls_blocked_total",
			Help: "Total tool calls denied or requiring approval.",
		}),
		breakerTrips: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jadegate_breaker_trips_total",
			Help: "Total circuit breaker trips, by tool.",
		}, []string{"tool"}),
		sessionCalls: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "jadegate_session_call_count",
			Help:    "Distribution of calls per closed session.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		tofuAlerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "jadegate_tofu_alerts_total",
			Help: "Total trust-on-first-use alerts raised, by kind.",
		}, []string{"kind"}),
	}
}

// SessionOpened implements runtime.Recorder.
func (m *Metrics) SessionOpened(sessionID string) {
	m.sessionsOpened.Inc()
}

// SessionClosed implements runtime.Recorder.
func (m *Metrics) SessionClosed(sessionID string, callCount, blockedCount int) {
	m.sessionsClosed.Inc()
	m.sessionCalls.Observe(float64(callCount))
}

// CallRecorded implements runtime.Recorder.
func (m *Metrics) CallRecorded(toolName string, verdict runtime.Verdict) {
	m.callsTotal.WithLabelValues(toolName, string(verdict)).Inc()
	if verdict != runtime.VerdictAllow {
		m.blockedTotal.Inc()
	}
}

// BreakerTripped implements runtime.Recorder.
func (m *Metrics) BreakerTripped(toolName string) {
	m.breakerTrips.WithLabelValues(toolName).Inc()
}

// TOFUAlert implements runtime.Recorder.
func (m *Metrics) TOFUAlert(toolID, kind, message string) {
	m.tofuAlerts.WithLabelValues(kind).Inc()
}

var _ runtime.Recorder = (*Metrics)(nil)

// ServeMetrics starts a loopback-only HTTP server exposing /metrics and
// /healthz, per JadeGate's no-outbound-network posture — this endpoint is
// opt-in and never reached by the proxied tool traffic itself.
func ServeMetrics(ctx context.Context, addr string) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		_ = srv.ListenAndServe()
	}()

	return srv
}

// ZapLogAdapter wraps a *zap.SugaredLogger to satisfy mcpproxy.Logger
// without mcpproxy importing zap directly.
type ZapLogAdapter struct {
	L *zap.SugaredLogger
}

func (a ZapLogAdapter) Infof(format string, args ...any)  { a.L.Infof(format, args...) }
func (a ZapLogAdapter) Warnf(format string, args ...any)  { a.L.Warnf(format, args...) }
func (a ZapLogAdapter) Errorf(format string, args ...any) { a.L.Errorf(format, args...) }
