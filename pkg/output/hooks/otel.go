package hooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*OTelHook)(nil)

// OTelHook exports guardrail run telemetry to an OpenTelemetry collector.
// It creates a root span per run and records evaluations and violations
// as span events with attributes.
type OTelHook struct {
	opts           OTelOptions
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer

	// Active span tracking
	mu       sync.Mutex
	rootSpan trace.Span
	rootCtx  context.Context
	closed   bool

	// Run metadata for attributes
	runID     string
	suite     string
	startTime time.Time
}

// OTelOptions configures the OpenTelemetry hook behavior.
type OTelOptions struct {
	// Endpoint is the OTLP endpoint (e.g., "localhost:4317").
	Endpoint string

	// ServiceName is the service name for traces (default: "depgate").
	ServiceName string

	// Insecure uses insecure connection (no TLS).
	Insecure bool

	// Headers contains additional headers for the OTLP exporter.
	Headers map[string]string

	// ShutdownTimeout is the timeout for graceful shutdown (default: 5s).
	ShutdownTimeout time.Duration

	// ConnectionTimeout is the timeout for establishing connection (default: 10s).
	ConnectionTimeout time.Duration
}

// NewOTelHook creates a new OpenTelemetry hook that exports telemetry to the configured endpoint.
// The exporter connects immediately but handles connection failures gracefully without blocking runs.
func NewOTelHook(opts OTelOptions) (*OTelHook, error) {
	if opts.ServiceName == "" {
		opts.ServiceName = defaults.ToolName
	}
	if opts.Endpoint == "" {
		opts.Endpoint = "localhost:4317"
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = duration.WebhookShutdown
	}
	if opts.ConnectionTimeout == 0 {
		opts.ConnectionTimeout = duration.WebhookTimeout
	}

	grpcOpts := []grpc.DialOption{}
	if opts.Insecure {
		grpcOpts = append(grpcOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithDialOption(grpcOpts...),
	}

	if opts.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	if len(opts.Headers) > 0 {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectionTimeout)
	defer cancel()

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, err
	}

	// Keep the resource free of Default() merging to avoid schema conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(opts.ServiceName),
		semconv.ServiceVersion(defaults.Version),
		attribute.String("service.component", "gate"),
	)

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tracerProvider)

	hook := &OTelHook{
		opts:           opts,
		tracerProvider: tracerProvider,
		tracer:         tracerProvider.Tracer(defaults.ToolName + "/gate"),
		startTime:      time.Now(),
	}

	return hook, nil
}

// OnEvent processes events and exports telemetry to the OpenTelemetry collector.
func (h *OTelHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}

	switch e := event.(type) {
	case *events.StartEvent:
		return h.handleStart(ctx, e)
	case *events.ProgressEvent:
		return h.handleProgress(e)
	case *events.EvaluationEvent:
		return h.handleEvaluation(e)
	case *events.ViolationEvent:
		return h.handleViolation(e)
	case *events.SummaryEvent:
		return h.handleSummary(e)
	case *events.CompleteEvent:
		return h.handleComplete(e)
	default:
		return nil
	}
}

// handleStart creates the root span for the run.
func (h *OTelHook) handleStart(ctx context.Context, start *events.StartEvent) error {
	h.runID = start.RunID()
	h.suite = start.Suite
	h.startTime = start.Timestamp()

	spanCtx, span := h.tracer.Start(ctx, "depgate.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("run_id", h.runID),
			attribute.String("suite", h.suite),
			attribute.String("suite_path", start.SuitePath),
			attribute.Int("total_rules", start.TotalRules),
			attribute.Int("skipped_rules", start.SkippedRules),
			attribute.Int("total_components", start.TotalComponents),
			attribute.Int("concurrency", start.Config.Concurrency),
			attribute.Int("timeout_sec", start.Config.Timeout),
			attribute.StringSlice("sources", start.Sources),
			attribute.StringSlice("check_types", start.CheckTypes),
		),
	)

	h.rootSpan = span
	h.rootCtx = spanCtx

	span.AddEvent("run_started", trace.WithAttributes(
		attribute.String("suite", h.suite),
		attribute.Int("total_rules", start.TotalRules),
		attribute.Int("total_components", start.TotalComponents),
	))

	return nil
}

// handleProgress adds span events for progress updates.
func (h *OTelHook) handleProgress(progress *events.ProgressEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("progress_update", trace.WithAttributes(
		attribute.String("phase", progress.Progress.Phase),
		attribute.Int("current", progress.Progress.Current),
		attribute.Int("total", progress.Progress.Total),
		attribute.Float64("percentage", progress.Progress.Percentage),
		attribute.Float64("components_per_sec", progress.Rate.ComponentsPerSec),
		attribute.Float64("avg_eval_ms", progress.Rate.AvgEvalMs),
		attribute.Int("violations", progress.Stats.Violations),
		attribute.Int("passes", progress.Stats.Passes),
		attribute.Int("errors", progress.Stats.Errors),
		attribute.Float64("clean_rate_pct", progress.Stats.CleanRatePct),
	))

	return nil
}

// handleEvaluation records rule evaluations as span events with detailed attributes.
func (h *OTelHook) handleEvaluation(eval *events.EvaluationEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	eventName := "evaluation"
	if eval.Result.Outcome == events.OutcomeTriggered {
		eventName = "violation_detected"
	}

	attrs := []attribute.KeyValue{
		attribute.String("run_id", h.runID),
		attribute.String("rule", eval.Rule.Name),
		attribute.String("check_type", eval.Rule.CheckType),
		attribute.String("severity", string(eval.Rule.Severity)),
		attribute.String("outcome", string(eval.Result.Outcome)),
		attribute.String("component", eval.Component.Ref),
		attribute.String("ecosystem", eval.Component.Ecosystem),
		attribute.Bool("direct", eval.Component.Direct),
		attribute.Float64("duration_ms", eval.Result.DurationMs),
	}
	if eval.Result.Err != "" {
		attrs = append(attrs, attribute.String("error", eval.Result.Err))
	}

	h.rootSpan.AddEvent(eventName, trace.WithAttributes(attrs...))

	if eval.Result.Outcome == events.OutcomeTriggered {
		h.rootSpan.SetStatus(codes.Error, "guardrail violation detected")
	}

	return nil
}

// handleViolation records violation alerts with priority attributes.
func (h *OTelHook) handleViolation(violation *events.ViolationEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("violation_alert", trace.WithAttributes(
		attribute.String("run_id", h.runID),
		attribute.String("priority", violation.Priority),
		attribute.String("rule", violation.Details.RuleName),
		attribute.String("check_type", violation.Details.CheckType),
		attribute.String("severity", string(violation.Details.Severity)),
		attribute.String("component", violation.Details.Component),
		attribute.String("version", violation.Details.Version),
		attribute.String("ecosystem", violation.Details.Ecosystem),
		attribute.String("vuln_ids", strings.Join(violation.Details.VulnIDs, ",")),
		attribute.Int("violations_so_far", violation.Context.ViolationsSoFar),
	))

	h.rootSpan.SetStatus(codes.Error, violation.Alert.Title)

	return nil
}

// handleSummary adds summary attributes to the root span.
func (h *OTelHook) handleSummary(summary *events.SummaryEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.SetAttributes(
		attribute.String("suite.name", summary.Suite.Name),
		attribute.String("suite.fingerprint", summary.Suite.Fingerprint),
		attribute.Int("totals.components", summary.Totals.Components),
		attribute.Int("totals.evaluations", summary.Totals.Evaluations),
		attribute.Int("totals.violations", summary.Totals.Violations),
		attribute.Int("totals.passes", summary.Totals.Passes),
		attribute.Int("totals.errors", summary.Totals.Errors),
		attribute.Int("totals.skipped", summary.Totals.Skipped),
		attribute.Float64("risk.score", summary.Risk.Score),
		attribute.String("risk.grade", summary.Risk.Grade),
		attribute.Float64("risk.clean_rate_pct", summary.Risk.CleanRatePct),
		attribute.Float64("timing.duration_sec", summary.Timing.DurationSec),
		attribute.Float64("timing.components_per_sec", summary.Timing.ComponentsPerSec),
		attribute.Int("exit_code", summary.ExitCode),
		attribute.String("exit_reason", summary.ExitReason),
	)

	h.rootSpan.AddEvent("run_summary", trace.WithAttributes(
		attribute.Int("evaluations", summary.Totals.Evaluations),
		attribute.Int("violations", summary.Totals.Violations),
		attribute.Int("errors", summary.Totals.Errors),
		attribute.Float64("clean_rate_pct", summary.Risk.CleanRatePct),
		attribute.String("grade", summary.Risk.Grade),
		attribute.Float64("duration_sec", summary.Timing.DurationSec),
	))

	if summary.Totals.Violations > 0 {
		h.rootSpan.SetStatus(codes.Error, "run completed with guardrail violations")
	} else {
		h.rootSpan.SetStatus(codes.Ok, "run completed successfully")
	}

	return nil
}

// handleComplete finalizes the run span and flushes telemetry.
func (h *OTelHook) handleComplete(complete *events.CompleteEvent) error {
	if h.rootSpan == nil {
		return nil
	}

	h.rootSpan.AddEvent("run_completed", trace.WithAttributes(
		attribute.Bool("success", complete.Success),
		attribute.Int("exit_code", complete.ExitCode),
		attribute.String("exit_reason", complete.ExitReason),
	))

	if complete.Success {
		if complete.Summary != nil && complete.Summary.Totals.Violations > 0 {
			h.rootSpan.SetStatus(codes.Error, "completed with violations")
		} else {
			h.rootSpan.SetStatus(codes.Ok, "completed successfully")
		}
	} else {
		h.rootSpan.SetStatus(codes.Error, complete.ExitReason)
	}

	h.rootSpan.End()
	h.rootSpan = nil

	return nil
}

// EventTypes returns the event types this hook handles.
func (h *OTelHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeStart,
		events.EventTypeProgress,
		events.EventTypeEvaluation,
		events.EventTypeViolation,
		events.EventTypeSummary,
		events.EventTypeComplete,
	}
}

// Close shuts down the tracer provider and flushes any pending telemetry.
func (h *OTelHook) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true

	if h.rootSpan != nil {
		h.rootSpan.End()
		h.rootSpan = nil
	}

	if h.tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), h.opts.ShutdownTimeout)
		defer cancel()

		if err := h.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("otel: shutdown tracer provider: %w", err)
		}
	}

	return nil
}

// Endpoint returns the OTLP endpoint being used.
// Useful for testing and logging.
func (h *OTelHook) Endpoint() string {
	return h.opts.Endpoint
}

// ServiceName returns the service name being used.
func (h *OTelHook) ServiceName() string {
	return h.opts.ServiceName
}
