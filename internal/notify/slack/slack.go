// Package slack sends triage notifications to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/linnemanlabs/warden/internal/triage"
)

const (
	maxFindingsListed = 5
	maxReasonLen      = 300
	httpTimeout       = 10 * time.Second
)

// Notifier sends triage results to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a triage result to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, result *triage.Result) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(result)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(r *triage.Result) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			findingsBlock(r),
			{"type": "divider"},
			contextBlock(r),
		},
	}
}

func headerBlock(r *triage.Result) map[string]any {
	emoji := severityEmoji(r)
	title := "Triage Complete"
	if r.Status == triage.StatusFailed {
		title = "Triage Failed"
	}
	text := fmt.Sprintf("%s %s: %d findings", emoji, title, len(r.Findings))

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *triage.Result) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Status:* %s", r.Status),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*P0:* %d", r.P0Count),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*P1:* %d", r.P1Count),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*KEV hits:* %d", len(r.KEVHits)),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", r.Duration),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Model:* %s", shortModel(r.Model)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func findingsBlock(r *triage.Result) map[string]any {
	if r.Status == triage.StatusFailed {
		text := r.Error
		if text == "" {
			text = "_No detail available._"
		}
		return sectionBlock("*Error*\n\n" + text)
	}
	if len(r.Findings) == 0 {
		return sectionBlock("_No findings._")
	}

	var sb bytes.Buffer
	sb.WriteString("*Findings*\n")
	for i, f := range r.Findings {
		if i >= maxFindingsListed {
			fmt.Fprintf(&sb, "\n_... and %d more_", len(r.Findings)-maxFindingsListed)
			break
		}
		fmt.Fprintf(&sb, "\n*%s* %s — %s (%s)\n%s",
			f.Level, f.CVE, f.Component, f.Tag, truncate(f.Reason, maxReasonLen))
	}
	return sectionBlock(sb.String())
}

func sectionBlock(text string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(r *triage.Result) map[string]any {
	ts := r.CompletedAt
	if ts.IsZero() {
		ts = r.CreatedAt
	}

	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("warden • triage %s • %s", r.ID, ts.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func severityEmoji(r *triage.Result) string {
	switch {
	case r.Status == triage.StatusFailed, r.P0Count > 0:
		return "\U0001f534" // red circle
	case r.P1Count > 0:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

// dateModelRe matches model names ending with a YYYYMMDD date suffix.
var dateModelRe = regexp.MustCompile(`-\d{8}$`)

func shortModel(model string) string {
	return dateModelRe.ReplaceAllString(model, "")
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
