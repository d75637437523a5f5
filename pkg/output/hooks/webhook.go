// Package hooks provides event hooks for real-time integrations.
// Hooks are called during a guardrail run to push events to external
// systems such as webhooks, metrics endpoints, and trace collectors.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/httpclient"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*WebhookHook)(nil)

// WebhookHook sends events to an HTTP endpoint.
// It supports retries with exponential backoff, custom headers,
// and filtering by event type or severity.
type WebhookHook struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
	opts     WebhookOptions
}

// WebhookOptions configures the webhook hook behavior.
type WebhookOptions struct {
	// Headers to include in requests.
	Headers map[string]string

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// RetryCount for failed requests (default: 3).
	RetryCount int

	// OnlyViolations only sends violation events.
	OnlyViolations bool

	// MinSeverity filters events below this severity.
	// Events with severity less severe than this will be skipped.
	MinSeverity events.Severity

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewWebhookHook creates a new webhook hook that sends events to the given endpoint.
// The hook is safe for concurrent use.
func NewWebhookHook(endpoint string, opts WebhookOptions) *WebhookHook {
	if opts.Timeout == 0 {
		opts.Timeout = duration.WebhookTimeout
	}
	if opts.RetryCount == 0 {
		opts.RetryCount = defaults.RetryMedium
	}

	// The config carries no proxy, so New cannot fail.
	client, _ := httpclient.New(httpclient.Config{Timeout: opts.Timeout})

	return &WebhookHook{
		endpoint: endpoint,
		client:   client,
		logger:   orDefault(opts.Logger),
		opts:     opts,
	}
}

// OnEvent sends the event to the configured webhook endpoint.
// It returns nil on success or if the event should be skipped.
// Errors are logged but do not block the run.
func (h *WebhookHook) OnEvent(ctx context.Context, event events.Event) error {
	if h.opts.OnlyViolations && event.EventType() != events.EventTypeViolation {
		return nil
	}

	if h.opts.MinSeverity != "" && !h.meetsMinSeverity(event) {
		return nil
	}

	body, err := jsonutil.Marshal(event)
	if err != nil {
		h.logger.Warn("webhook: failed to marshal event", slog.String("error", err.Error()))
		return nil // Don't block the run on serialization errors
	}

	if err := h.sendWithRetry(ctx, event.EventType(), body); err != nil {
		h.logger.Warn("webhook: failed to send event after retries", slog.String("error", err.Error()))
		return nil // Don't block the run on webhook failures
	}

	return nil
}

// EventTypes returns nil to receive all event types.
// Filtering is done in OnEvent based on options.
func (h *WebhookHook) EventTypes() []events.EventType {
	return nil
}

// meetsMinSeverity checks if the event meets the minimum severity threshold.
func (h *WebhookHook) meetsMinSeverity(event events.Event) bool {
	minScore := h.opts.MinSeverity.Score()
	if minScore == 0 {
		return true // Unknown threshold, allow through
	}

	var eventSeverity events.Severity
	switch e := event.(type) {
	case *events.EvaluationEvent:
		eventSeverity = e.Rule.Severity
	case *events.ViolationEvent:
		eventSeverity = e.Details.Severity
	default:
		return true // Non-severity events pass through
	}

	score := eventSeverity.Score()
	if score == 0 {
		return true // Unknown severity, allow through
	}

	return score >= minScore
}

// sendWithRetry sends the request with exponential backoff retries.
func (h *WebhookHook) sendWithRetry(ctx context.Context, eventType events.EventType, body []byte) error {
	var lastErr error

	for attempt := 0; attempt < h.opts.RetryCount; attempt++ {
		if attempt > 0 {
			// Exponential backoff: 1s, 2s, 4s, ...
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}

		req.Header.Set("Content-Type", defaults.ContentTypeJSON)
		req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)
		req.Header.Set("X-DepGate-Event-Type", string(eventType))

		for key, value := range h.opts.Headers {
			req.Header.Set(key, value)
		}

		resp, err := h.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		resp.Body.Close()

		// Success
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil
		}

		// Retry on 5xx errors
		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}

		// Don't retry on 4xx errors
		return fmt.Errorf("client error: %d", resp.StatusCode)
	}

	return lastErr
}
