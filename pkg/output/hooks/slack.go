package hooks

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/depgate/depgate/pkg/defaults"
	"github.com/depgate/depgate/pkg/duration"
	"github.com/depgate/depgate/pkg/httpclient"
	"github.com/depgate/depgate/pkg/iohelper"
	"github.com/depgate/depgate/pkg/jsonutil"
	"github.com/depgate/depgate/pkg/output/dispatcher"
	"github.com/depgate/depgate/pkg/output/events"
)

// Compile-time interface check.
var _ dispatcher.Hook = (*SlackHook)(nil)

// SlackHook sends formatted messages to Slack via incoming webhooks.
// It uses Slack's Block Kit for rich formatting of run summaries
// and sends immediate alerts for critical violations.
type SlackHook struct {
	webhookURL string
	client     *http.Client
	opts       SlackOptions
	violations []*events.ViolationEvent
	mu         sync.Mutex
	logger     *slog.Logger
}

// SlackOptions configures the Slack hook behavior.
type SlackOptions struct {
	// Channel override (uses webhook default if empty).
	Channel string

	// Username for bot (default: "DepGate").
	Username string

	// IconEmoji for bot avatar (default: ":shield:").
	IconEmoji string

	// MinSeverity filters alerts below this severity.
	MinSeverity events.Severity

	// OnlyOnViolations only sends the summary if violations were found.
	OnlyOnViolations bool

	// Timeout for HTTP requests (default: 10s).
	Timeout time.Duration

	// Logger for structured logging (default: slog.Default()).
	Logger *slog.Logger
}

// NewSlackHook creates a new Slack hook that sends messages to the given webhook URL.
func NewSlackHook(webhookURL string, opts SlackOptions) *SlackHook {
	// Apply defaults
	if opts.Username == "" {
		opts.Username = defaults.ToolNameDisplay
	}
	if opts.IconEmoji == "" {
		opts.IconEmoji = ":shield:"
	}
	if opts.Timeout == 0 {
		opts.Timeout = duration.WebhookTimeout
	}

	// The config carries no proxy, so New cannot fail.
	client, _ := httpclient.New(httpclient.Config{Timeout: opts.Timeout})

	return &SlackHook{
		webhookURL: webhookURL,
		client:     client,
		opts:       opts,
		violations: make([]*events.ViolationEvent, 0),
		logger:     orDefault(opts.Logger),
	}
}

// OnEvent processes events and sends them to Slack.
// Critical/high severity violations trigger immediate alerts.
// Summary events send a complete Block Kit message.
func (h *SlackHook) OnEvent(ctx context.Context, event events.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch e := event.(type) {
	case *events.ViolationEvent:
		return h.handleViolation(ctx, e)
	case *events.SummaryEvent:
		return h.handleSummary(ctx, e)
	default:
		return nil
	}
}

// EventTypes returns the event types this hook handles.
func (h *SlackHook) EventTypes() []events.EventType {
	return []events.EventType{
		events.EventTypeViolation,
		events.EventTypeSummary,
	}
}

// handleViolation collects violations and sends immediate alerts for critical/high severity.
func (h *SlackHook) handleViolation(ctx context.Context, violation *events.ViolationEvent) error {
	// Collect for summary, capped to prevent unbounded growth.
	const maxCollectedViolations = 100
	if len(h.violations) < maxCollectedViolations {
		h.violations = append(h.violations, violation)
	}

	// Apply MinSeverity filter
	if h.opts.MinSeverity != "" && !h.meetsMinSeverity(violation.Details.Severity) {
		return nil
	}

	// Send immediate alert for critical/high severity
	if violation.Details.Severity == events.SeverityCritical || violation.Details.Severity == events.SeverityHigh {
		return h.sendViolationAlert(ctx, violation)
	}

	return nil
}

// handleSummary sends the final run summary to Slack.
func (h *SlackHook) handleSummary(ctx context.Context, summary *events.SummaryEvent) error {
	// Apply OnlyOnViolations filter
	if h.opts.OnlyOnViolations && summary.Totals.Violations == 0 {
		return nil
	}

	return h.sendSummary(ctx, summary)
}

// meetsMinSeverity checks if the severity meets the minimum threshold.
func (h *SlackHook) meetsMinSeverity(severity events.Severity) bool {
	minScore := h.opts.MinSeverity.Score()
	if minScore == 0 {
		return true
	}

	score := severity.Score()
	if score == 0 {
		return true
	}

	return score >= minScore
}

// sendViolationAlert sends an immediate alert for a critical/high violation.
func (h *SlackHook) sendViolationAlert(ctx context.Context, violation *events.ViolationEvent) error {
	emoji := "🚨"
	color := "danger"
	severityLabel := string(violation.Details.Severity)

	fields := []slackField{
		{Title: "Rule", Value: violation.Details.RuleName, Short: true},
		{Title: "Check", Value: violation.Details.CheckType, Short: true},
		{Title: "Severity", Value: capitalize(severityLabel), Short: true},
		{Title: "Ecosystem", Value: violation.Details.Ecosystem, Short: true},
		{Title: "Component", Value: violation.Details.Component + "@" + violation.Details.Version, Short: false},
	}
	if len(violation.Details.VulnIDs) > 0 {
		fields = append(fields, slackField{
			Title: "Advisories",
			Value: strings.Join(violation.Details.VulnIDs, ", "),
			Short: false,
		})
	}

	message := slackMessage{
		Username:  h.opts.Username,
		IconEmoji: h.opts.IconEmoji,
		Channel:   h.opts.Channel,
		Text:      fmt.Sprintf("%s *%s Guardrail Violation*", emoji, capitalize(severityLabel)),
		Attachments: []slackAttachment{
			{
				Color:  color,
				Fields: fields,
			},
		},
	}

	return h.send(ctx, message)
}

// sendSummary sends the Block Kit formatted run summary.
func (h *SlackHook) sendSummary(ctx context.Context, summary *events.SummaryEvent) error {
	blocks := h.buildSummaryBlocks(summary)

	message := slackBlockMessage{
		Username:  h.opts.Username,
		IconEmoji: h.opts.IconEmoji,
		Channel:   h.opts.Channel,
		Blocks:    blocks,
	}

	return h.send(ctx, message)
}

// buildSummaryBlocks builds Block Kit blocks for the run summary.
func (h *SlackHook) buildSummaryBlocks(summary *events.SummaryEvent) []slackBlock {
	blocks := make([]slackBlock, 0, 6)

	// Header
	headerIcon := "🛡️"
	if summary.Totals.Violations > 0 {
		headerIcon = "⚠️"
	}
	blocks = append(blocks, slackBlock{
		Type: "header",
		Text: &slackText{
			Type: "plain_text",
			Text: fmt.Sprintf("%s Dependency Guardrail Run Complete", headerIcon),
		},
	})

	// Suite and grade section
	suiteField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Suite:*\n%s", suiteDisplayName(summary.Suite.Name))}
	gradeField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Grade:*\n%s (risk %.1f)", summary.Risk.Grade, summary.Risk.Score)}
	blocks = append(blocks, slackBlock{
		Type:   "section",
		Fields: []*slackText{&suiteField, &gradeField},
	})

	// Stats section
	violationText := fmt.Sprintf("%d", summary.Totals.Violations)
	if summary.Totals.Violations > 0 {
		violationText = fmt.Sprintf("%d ⚠️", summary.Totals.Violations)
	}

	passedField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Passed:*\n%d", summary.Totals.Passes)}
	violationField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Violations:*\n%s", violationText)}
	cleanRateField := slackText{Type: "mrkdwn", Text: fmt.Sprintf("*Clean rate:*\n%.1f%%", summary.Risk.CleanRatePct)}

	blocks = append(blocks, slackBlock{
		Type:   "section",
		Fields: []*slackText{&passedField, &violationField, &cleanRateField},
	})

	// Add top violations if any
	if len(h.violations) > 0 {
		blocks = append(blocks, slackBlock{Type: "divider"})

		topViolations := h.formatTopViolations(5) // Limit to 5
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Top Violations:*\n%s", topViolations),
			},
		})
	}

	return blocks
}

// formatTopViolations formats the top N violations as a bullet list.
func (h *SlackHook) formatTopViolations(n int) string {
	if len(h.violations) == 0 {
		return "_No violations found_"
	}

	count := n
	if len(h.violations) < count {
		count = len(h.violations)
	}

	var buf bytes.Buffer
	for i := 0; i < count; i++ {
		v := h.violations[i]
		buf.WriteString(fmt.Sprintf("• `%s` - %s (%s)\n", v.Details.RuleName, v.Details.Component, v.Details.Severity))
	}

	return buf.String()
}

// suiteDisplayName returns the suite name or "unknown" if empty.
func suiteDisplayName(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}

// send posts the message to Slack.
func (h *SlackHook) send(ctx context.Context, payload interface{}) error {
	body, err := jsonutil.Marshal(payload)
	if err != nil {
		h.logger.Warn("failed to marshal message", slog.String("error", err.Error()))
		return nil // Don't block the run
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.webhookURL, bytes.NewReader(body))
	if err != nil {
		h.logger.Warn("failed to create request", slog.String("error", err.Error()))
		return nil
	}
	req.Header.Set("Content-Type", defaults.ContentTypeJSON)
	req.Header.Set("User-Agent", defaults.ToolName+"/"+defaults.Version)

	resp, err := h.client.Do(req)
	if err != nil {
		h.logger.Warn("failed to send message", slog.String("error", err.Error()))
		return nil // Don't block the run
	}
	defer iohelper.DrainAndClose(resp.Body)

	if resp.StatusCode >= 400 {
		h.logger.Warn("error response", slog.Int("status", resp.StatusCode))
	}

	return nil
}

// capitalize returns the string with the first letter uppercase.
// Handles empty strings, uppercase letters, numbers, and Unicode safely.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	// Get first rune and uppercase it safely
	for i, r := range s {
		if i == 0 {
			return string(unicode.ToUpper(r)) + s[1:]
		}
	}
	return s
}

// Slack message types for JSON serialization.

type slackMessage struct {
	Username    string            `json:"username,omitempty"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments,omitempty"`
}

type slackAttachment struct {
	Color  string       `json:"color"`
	Fields []slackField `json:"fields"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackBlockMessage struct {
	Username  string       `json:"username,omitempty"`
	IconEmoji string       `json:"icon_emoji,omitempty"`
	Channel   string       `json:"channel,omitempty"`
	Blocks    []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type   string       `json:"type"`
	Text   *slackText   `json:"text,omitempty"`
	Fields []*slackText `json:"fields,omitempty"`
}

type slackText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}
