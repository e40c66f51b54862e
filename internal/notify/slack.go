package notify

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"brewvulns/internal/scan"
	"brewvulns/internal/vuln"

	"github.com/slack-go/slack"
)

// maxListed caps the vulnerability lines per formula attachment.
const maxListed = 10

// SlackNotifier posts scan summaries to a Slack incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

// NewSlackNotifier creates a new SlackNotifier.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify sends msg to the configured webhook.
func (s *SlackNotifier) Notify(ctx context.Context, msg *slack.WebhookMessage) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, client, msg); err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	return nil
}

// NotifyResult summarizes result and sends it.
func (s *SlackNotifier) NotifyResult(ctx context.Context, result *scan.Result) error {
	return s.Notify(ctx, BuildMessage(result))
}

// BuildMessage renders a scan result as a webhook message with one
// attachment per affected formula.
func BuildMessage(result *scan.Result) *slack.WebhookMessage {
	if result.Empty() {
		queried := 0
		if result != nil {
			queried = result.Queried
		}
		return &slack.WebhookMessage{
			Text: fmt.Sprintf("brew-vulns: no vulnerabilities found in %d formulae", queried),
		}
	}

	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("brew-vulns: %d vulnerabilities in %d of %d formulae%s",
			result.TotalVulnerabilities(), len(result.Findings), result.Queried, severityBreakdown(result)),
	}

	for _, f := range result.Findings {
		worst := vuln.SeverityUnknown
		lines := make([]string, 0, len(f.Vulnerabilities))
		for i, v := range f.Vulnerabilities {
			if v.SeverityLevel > worst {
				worst = v.SeverityLevel
			}
			if i >= maxListed {
				continue
			}
			line := fmt.Sprintf("<%s|%s> (%s)", v.AdvisoryURL, v.ID, v.SeverityDisplay)
			if v.HasSummary() {
				line += " " + v.Summary
			}
			lines = append(lines, line)
		}
		if extra := len(f.Vulnerabilities) - maxListed; extra > 0 {
			lines = append(lines, fmt.Sprintf("…and %d more", extra))
		}

		msg.Attachments = append(msg.Attachments, slack.Attachment{
			Color:    attachmentColor(worst),
			Title:    fmt.Sprintf("%s %s", f.Formula.Name, f.Formula.ScanVersion()),
			Text:     strings.Join(lines, "\n"),
			Fallback: fmt.Sprintf("%s: %d vulnerabilities", f.Formula.Name, len(f.Vulnerabilities)),
		})
	}
	return msg
}

func severityBreakdown(result *scan.Result) string {
	counts := result.CountBySeverity()
	labels := make([]string, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		ri, rj := vuln.ParseSeverity(labels[i]), vuln.ParseSeverity(labels[j])
		if ri != rj {
			return ri > rj
		}
		return labels[i] < labels[j]
	})

	parts := make([]string, 0, len(labels))
	for _, label := range labels {
		parts = append(parts, fmt.Sprintf("%d %s", counts[label], strings.ToLower(label)))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func attachmentColor(s vuln.Severity) string {
	switch s {
	case vuln.SeverityCritical, vuln.SeverityHigh:
		return "danger"
	case vuln.SeverityMedium:
		return "warning"
	default:
		return "#808080"
	}
}
