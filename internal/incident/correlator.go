package incident

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/alertflow/internal/alert"
)

// webhookChannelID marks incidents created from the alert-ingestion path,
// which have no real Slack thread behind them.
const webhookChannelID = "webhook"

// Correlator owns the create-or-update decision for incidents. All
// incident creation in the system goes through it.
type Correlator struct {
	store  Store
	logger log.Logger
}

// NewCorrelator creates a correlator over the given store.
func NewCorrelator(store Store, logger log.Logger) *Correlator {
	if logger == nil {
		logger = log.Nop()
	}
	return &Correlator{store: store, logger: logger}
}

// Correlate finds or creates the incident a thread message belongs to.
// The store guarantees at most one incident per thread key, so concurrent
// duplicate deliveries of the same Slack event converge on one row.
func (c *Correlator) Correlate(ctx context.Context, channelID, threadTS, logs, titleHint, severityHint string) (*Incident, error) {
	inc, err := c.store.UpsertByThread(ctx, ThreadUpsert{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		Logs:      logs,
		Title:     titleHint,
		Severity:  severityHint,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert incident for thread %s/%s: %w", channelID, threadTS, err)
	}

	c.logger.Info(ctx, "correlated thread message",
		"incident_id", inc.ID,
		"channel", channelID,
		"thread_ts", threadTS,
	)
	return inc, nil
}

// CreateForAlert opens an incident for an alert the classifier judged
// incident-worthy, and links the alert to it. This path does not use the
// thread-key invariant; the incident gets a synthetic thread identity so
// the storage uniqueness constraint never collides with real threads.
func (c *Correlator) CreateForAlert(ctx context.Context, al *alert.Alert, summary string, actions json.RawMessage, severity string) (*Incident, error) {
	now := time.Now().UTC()
	inc := &Incident{
		ID:               ulid.Make().String(),
		SlackChannelID:   webhookChannelID,
		Title:            al.Title,
		Severity:         severity,
		Status:           StatusActive,
		RawLogs:          al.Description,
		AISummary:        summary,
		SuggestedActions: actions,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	inc.SlackMessageTS = inc.ID

	if err := c.store.CreateIncident(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident for alert %s: %w", al.ID, err)
	}
	if err := c.store.SetAlertIncident(ctx, al.ID, inc.ID); err != nil {
		return nil, fmt.Errorf("link alert %s to incident %s: %w", al.ID, inc.ID, err)
	}
	al.IncidentID = inc.ID

	c.logger.Info(ctx, "incident opened for alert",
		"incident_id", inc.ID,
		"alert_id", al.ID,
		"severity", severity,
	)
	return inc, nil
}
