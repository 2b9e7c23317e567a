package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/triage"
)

// AttachmentGreen is the accent color used on successful command results.
const AttachmentGreen = "#36a64f"

// Notifier posts alert assessments to the configured alert channel,
// implementing triage.Notifier.
type Notifier struct {
	client  *Client
	channel string
	logger  log.Logger
}

// NewNotifier creates a notifier for the given channel. An empty channel
// makes NotifyAssessment a no-op.
func NewNotifier(client *Client, channel string, logger log.Logger) *Notifier {
	if logger == nil {
		logger = log.Nop()
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// NotifyAssessment formats an assessment with priority tiering and posts
// it to the alert channel.
func (n *Notifier) NotifyAssessment(ctx context.Context, al *alert.Alert, as *triage.Assessment) error {
	if n.channel == "" {
		return nil
	}

	text := FormatLowPriority(al.Title, as)
	if IsHighPriority(as) {
		text = FormatHighPriority(al.Title, as)
	}

	ts, err := n.client.PostMessage(ctx, n.channel, text, "")
	if err != nil {
		return err
	}
	n.logger.Info(ctx, "alert notification posted",
		"alert_id", al.ID,
		"channel", n.channel,
		"ts", ts,
	)
	return nil
}

// IsHighPriority reports whether an assessment gets the high-priority
// template: incident-worthy and at least medium severity.
func IsHighPriority(as *triage.Assessment) bool {
	if !as.CreateIncident {
		return false
	}
	switch strings.ToLower(as.Severity) {
	case "medium", "high", "critical":
		return true
	}
	return false
}

// FormatHighPriority renders the escalation template: title, severity,
// summary, and bulleted actions and causes.
func FormatHighPriority(title string, as *triage.Assessment) string {
	return fmt.Sprintf(`🚨 High-Priority Incident Created

Alert: %s
Severity: %s
Summary: %s

Immediate Actions:
%s

Root Causes:
%s

Analyzed by AlertFlow AI`,
		title,
		strings.ToUpper(as.Severity),
		as.Summary,
		bullets(as.ImmediateActions, "No actions specified"),
		bullets(as.RootCauses, "Analysis in progress"),
	)
}

// FormatLowPriority renders the informational template.
func FormatLowPriority(title string, as *triage.Assessment) string {
	return fmt.Sprintf(`%s

Summary: %s
Severity: %s

Analyzed by AlertFlow AI`,
		title,
		as.Summary,
		strings.ToUpper(as.Severity),
	)
}

func bullets(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("• ")
		b.WriteString(item)
	}
	return b.String()
}
