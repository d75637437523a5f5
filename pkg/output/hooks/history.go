package hooks

import (
	"context"
	"log/slog"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/history"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*HistoryHook)(nil)

// HistoryHook saves run results to a historical store for trend analysis.
// It listens for SummaryEvent and creates a permanent record.
type HistoryHook struct {
	store  *history.Store
	tags   []string
	logger *slog.Logger
}

// HistoryHookOptions configures the history hook.
type HistoryHookOptions struct {
	// StorePath is the directory where historical data is stored.
	StorePath string

	// Tags are user-defined labels to attach to each run record.
	Tags []string

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewHistoryHook creates a new history hook.
func NewHistoryHook(opts HistoryHookOptions) (*HistoryHook, error) {
	store, err := history.NewStore(opts.StorePath)
	if err != nil {
		return nil, err
	}

	return &HistoryHook{
		store:  store,
		tags:   opts.Tags,
		logger: orDefault(opts.Logger),
	}, nil
}

// OnEvent processes events and saves run results to history.
// Only SummaryEvent is processed to create a complete record.
func (h *HistoryHook) OnEvent(ctx context.Context, event events.Event) error {
	summary, ok := event.(*events.SummaryEvent)
	if !ok {
		return nil
	}

	record := h.buildRecord(summary)
	if err := h.store.Save(record); err != nil {
		h.logger.Warn("failed to save run record", slog.String("error", err.Error()))
		return nil
	}

	h.logger.Info("saved run record", slog.String("id", record.ID), slog.String("suite", record.Suite))
	return nil
}

// EventTypes returns the event types this hook handles.
func (h *HistoryHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeSummary,
	}
}

// Close releases the underlying store.
func (h *HistoryHook) Close() error {
	return h.store.Close()
}

// buildRecord creates a RunRecord from a SummaryEvent.
func (h *HistoryHook) buildRecord(summary *events.SummaryEvent) *history.RunRecord {
	// Generate unique ID
	runID := summary.RunID()
	if runID == "" {
		runID = time.Now().Format("20060102-150405")
	}

	// Build per-check clean rate map
	checkRates := make(map[string]float64)
	for ct, stats := range summary.Breakdown.ByCheckType {
		checkRates[ct] = stats.CleanRate
	}

	version := summary.Version
	if version == "" {
		version = defaults.Version
	}

	return &history.RunRecord{
		ID:                runID,
		Timestamp:         summary.Timestamp(),
		Suite:             summary.Suite.Name,
		SuiteFingerprint:  summary.Suite.Fingerprint,
		Grade:             summary.Risk.Grade,
		RiskScore:         summary.Risk.Score,
		CleanRatePct:      summary.Risk.CleanRatePct,
		ViolationCount:    summary.Totals.Violations,
		ErrorCount:        summary.Totals.Errors,
		TotalEvaluations:  summary.Totals.Evaluations,
		Components:        summary.Totals.Components,
		PassedEvaluations: summary.Totals.Passes,
		Duration:          int64(summary.Timing.DurationSec * 1000),
		P50EvalMs:         int(summary.Latency.P50Ms),
		P95EvalMs:         int(summary.Latency.P95Ms),
		CheckCleanRates:   checkRates,
		Version:           version,
		Tags:              h.tags,
		Notes:             "",
	}
}
