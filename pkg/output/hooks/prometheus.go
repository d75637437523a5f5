package hooks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*PrometheusHook)(nil)

// PrometheusHook exposes guardrail run metrics for Prometheus scraping.
// It starts an HTTP server that serves metrics at the configured path.
// Metrics include counters for evaluations/violations/passes/errors,
// gauges for risk score and clean rate, and a histogram for per-rule
// evaluation latency.
type PrometheusHook struct {
	server   *http.Server
	registry *prometheus.Registry
	logger   *slog.Logger
	opts     PrometheusOptions

	// Counters
	evaluationsTotal *prometheus.CounterVec
	violationsTotal  *prometheus.CounterVec
	passesTotal      *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec

	// Gauges
	riskScore        *prometheus.GaugeVec
	cleanRatePercent *prometheus.GaugeVec
	runDurationSecs  *prometheus.GaugeVec

	// Histograms
	evalSeconds *prometheus.HistogramVec

	// Internal tracking
	mu        sync.Mutex
	suite     string
	startTime time.Time
	closed    bool
}

// PrometheusOptions configures the Prometheus hook behavior.
type PrometheusOptions struct {
	// Port for the metrics server (default: 9090).
	Port int

	// Path for the metrics endpoint (default: "/metrics").
	Path string

	// ReadTimeout for the HTTP server (default: 5s).
	ReadTimeout time.Duration

	// WriteTimeout for the HTTP server (default: 10s).
	WriteTimeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewPrometheusHook creates a new Prometheus hook that exposes metrics at the configured endpoint.
// The metrics server starts immediately and runs until Close() is called.
func NewPrometheusHook(opts PrometheusOptions) (*PrometheusHook, error) {
	if opts.Port == 0 {
		opts.Port = defaults.PortMetrics
	}
	if opts.Path == "" {
		opts.Path = "/metrics"
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = duration.WebhookShutdown
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = duration.WebhookTimeout
	}

	// Custom registry keeps the default registry clean.
	registry := prometheus.NewRegistry()

	hook := &PrometheusHook{
		registry:  registry,
		logger:    orDefault(opts.Logger),
		opts:      opts,
		startTime: time.Now(),
	}

	if err := hook.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	if err := hook.startServer(); err != nil {
		return nil, fmt.Errorf("failed to start metrics server: %w", err)
	}

	return hook, nil
}

// initMetrics creates and registers all Prometheus metrics.
func (h *PrometheusHook) initMetrics() error {
	// Counters
	h.evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depgate_evaluations_total",
			Help: "Total number of guardrail rule evaluations",
		},
		[]string{"suite", "check_type"},
	)

	h.violationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depgate_violations_total",
			Help: "Total number of guardrail violations",
		},
		[]string{"suite", "check_type", "severity"},
	)

	h.passesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depgate_passes_total",
			Help: "Total number of passing rule evaluations",
		},
		[]string{"suite", "check_type"},
	)

	h.errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "depgate_errors_total",
			Help: "Total number of rule evaluation errors",
		},
		[]string{"suite", "check_type"},
	)

	// Gauges
	h.riskScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "depgate_risk_score",
			Help: "Dependency risk score for the run (0-100, higher is worse)",
		},
		[]string{"suite"},
	)

	h.cleanRatePercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "depgate_clean_rate_percent",
			Help: "Share of evaluations that passed (passes / total * 100)",
		},
		[]string{"suite"},
	)

	h.runDurationSecs = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "depgate_run_duration_seconds",
			Help: "Total guardrail run duration in seconds",
		},
		[]string{"suite"},
	)

	// Histograms
	h.evalSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "depgate_evaluation_seconds",
			Help:    "Per-rule evaluation latency distribution in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"suite", "outcome"},
	)

	collectors := []prometheus.Collector{
		h.evaluationsTotal,
		h.violationsTotal,
		h.passesTotal,
		h.errorsTotal,
		h.riskScore,
		h.cleanRatePercent,
		h.runDurationSecs,
		h.evalSeconds,
	}

	for _, c := range collectors {
		if err := h.registry.Register(c); err != nil {
			return err
		}
	}

	return nil
}

// startServer starts the HTTP server for metrics.
func (h *PrometheusHook) startServer() error {
	mux := http.NewServeMux()
	mux.Handle(h.opts.Path, promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	h.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", h.opts.Port),
		Handler:      mux,
		ReadTimeout:  h.opts.ReadTimeout,
		WriteTimeout: h.opts.WriteTimeout,
	}

	go func() {
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Warn("prometheus: metrics server error", slog.String("error", err.Error()))
		}
	}()

	return nil
}

// OnEvent processes events and updates Prometheus metrics.
func (h *PrometheusHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		return h.handleStart(e)
	case *events.EvaluationEvent:
		return h.handleEvaluation(e)
	case *events.SummaryEvent:
		return h.handleSummary(e)
	default:
		return nil
	}
}

// handleStart records the suite name used as a metric label.
func (h *PrometheusHook) handleStart(start *events.StartEvent) error {
	h.suite = start.Suite
	return nil
}

// handleEvaluation processes evaluation events and updates counters.
func (h *PrometheusHook) handleEvaluation(eval *events.EvaluationEvent) error {
	suite := h.suiteLabel()
	checkType := eval.Rule.CheckType

	h.evaluationsTotal.WithLabelValues(suite, checkType).Inc()

	switch eval.Result.Outcome {
	case events.OutcomeTriggered:
		h.violationsTotal.WithLabelValues(suite, checkType, string(eval.Rule.Severity)).Inc()
	case events.OutcomePass:
		h.passesTotal.WithLabelValues(suite, checkType).Inc()
	case events.OutcomeError:
		h.errorsTotal.WithLabelValues(suite, checkType).Inc()
	}

	// Record evaluation latency (convert ms to seconds)
	if eval.Result.DurationMs > 0 {
		h.evalSeconds.WithLabelValues(suite, string(eval.Result.Outcome)).Observe(eval.Result.DurationMs / 1000.0)
	}

	return nil
}

// handleSummary processes summary events and updates final gauges.
func (h *PrometheusHook) handleSummary(summary *events.SummaryEvent) error {
	if h.suite == "" && summary.Suite.Name != "" {
		h.suite = summary.Suite.Name
	}
	suite := h.suiteLabel()

	h.riskScore.WithLabelValues(suite).Set(summary.Risk.Score)
	h.cleanRatePercent.WithLabelValues(suite).Set(summary.Risk.CleanRatePct)
	h.runDurationSecs.WithLabelValues(suite).Set(summary.Timing.DurationSec)

	return nil
}

// suiteLabel returns the suite label value, defaulting when no start
// event has been seen.
func (h *PrometheusHook) suiteLabel() string {
	if h.suite == "" {
		return "unknown"
	}
	return h.suite
}

// EventTypes returns the event types this hook handles.
func (h *PrometheusHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeEvaluation,
		events.EventTypeSummary,
	}
}

// Close shuts down the metrics server and releases resources.
func (h *PrometheusHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), duration.WebhookShutdown)
		defer cancel()
		return h.server.Shutdown(ctx)
	}

	return nil
}

// MetricsAddr returns the address where metrics are served.
// Useful for testing and logging.
func (h *PrometheusHook) MetricsAddr() string {
	return fmt.Sprintf("http://localhost:%d%s", h.opts.Port, h.opts.Path)
}
