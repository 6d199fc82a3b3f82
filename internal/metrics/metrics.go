// Package metrics exposes controller counters in Prometheus format.
//
// Every method is safe on a nil *Metrics, so components take an optional
// collector without branching.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "previewctl"

// Restart outcomes.
const (
	OutcomeAccepted = "accepted"
	OutcomeDeclined = "declined"
	OutcomeFailed   = "failed"
)

// Metrics holds the controller collectors.
type Metrics struct {
	// Activations counts feature bundle activations.
	// Labels: result (success, error, already_active)
	Activations *prometheus.CounterVec

	// Deactivations counts feature bundle releases.
	Deactivations prometheus.Counter

	// Active is 1 while a feature bundle is active.
	Active prometheus.Gauge

	// RestartDecisions counts flag changes by decision.
	// Labels: decision (needs_restart, safe_in_place)
	RestartDecisions *prometheus.CounterVec

	// RestartPrompts counts restart prompt outcomes.
	// Labels: outcome (accepted, declined, failed)
	RestartPrompts *prometheus.CounterVec

	// Commands measures command execution time.
	// Labels: command, status (success, error)
	Commands *prometheus.HistogramVec

	// ConfigWrites counts settings writes.
	// Labels: scope, status (success, error)
	ConfigWrites *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		Activations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "activations_total",
			Help:      "Feature bundle activation attempts by result",
		}, []string{"result"}),
		Deactivations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "deactivations_total",
			Help:      "Feature bundles released",
		}),
		Active: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feature",
			Name:      "active",
			Help:      "Whether a feature bundle is active",
		}),
		RestartDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restart",
			Name:      "decisions_total",
			Help:      "Capability flag changes by restart decision",
		}, []string{"decision"}),
		RestartPrompts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "restart",
			Name:      "prompts_total",
			Help:      "Restart prompts by outcome",
		}, []string{"outcome"}),
		Commands: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "commands",
			Name:      "duration_seconds",
			Help:      "Command execution time in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"command", "status"}),
		ConfigWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "config",
			Name:      "writes_total",
			Help:      "Settings writes by scope and status",
		}, []string{"scope", "status"}),
		gatherer: reg,
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordActivation records an activation attempt.
func (m *Metrics) RecordActivation(result string) {
	if m == nil {
		return
	}
	m.Activations.WithLabelValues(result).Inc()
	if result == "success" {
		m.Active.Set(1)
	}
}

// RecordDeactivation records a bundle release.
func (m *Metrics) RecordDeactivation() {
	if m == nil {
		return
	}
	m.Deactivations.Inc()
	m.Active.Set(0)
}

// RecordDecision records a restart decision.
func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.RestartDecisions.WithLabelValues(decision).Inc()
}

// RecordPrompt records a restart prompt outcome.
func (m *Metrics) RecordPrompt(outcome string) {
	if m == nil {
		return
	}
	m.RestartPrompts.WithLabelValues(outcome).Inc()
}

// RecordCommand records a command execution.
func (m *Metrics) RecordCommand(id string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(id, status(err)).Observe(took.Seconds())
}

// RecordConfigWrite records a settings write.
func (m *Metrics) RecordConfigWrite(scope string, err error) {
	if m == nil {
		return
	}
	m.ConfigWrites.WithLabelValues(scope, status(err)).Inc()
}

// Handler serves the registered collectors.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.ServeListener(ctx, ln)
}

// ServeListener exposes /metrics on ln until ctx is cancelled.
func (m *Metrics) ServeListener(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
