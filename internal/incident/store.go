package incident

import (
	"context"
	"encoding/json"

	"github.com/linnemanlabs/alertflow/internal/alert"
)

// ThreadUpsert carries the inputs of a thread-keyed correlation. Logs
// replace the stored text (they represent the full accumulated context);
// Title and Severity only overwrite existing values when non-empty.
type ThreadUpsert struct {
	ChannelID string
	ThreadTS  string
	Logs      string
	Title     string
	Severity  string
}

// IncidentFilter narrows incident listings. Zero values mean "no filter".
type IncidentFilter struct {
	Status    string
	Severity  string
	ChannelID string
	Search    string // matches title, raw logs, or AI summary
	Limit     int
	Offset    int
}

// AlertFilter narrows alert listings. Zero values mean "no filter".
type AlertFilter struct {
	Status   string
	Severity string
	Source   string
	Limit    int
	Offset   int
}

// Store is the persistence interface for incidents, alerts, and incident
// queries. UpsertByThread must be atomic with respect to the thread key:
// concurrent calls for the same (channel, ts) pair must converge on a
// single incident row, never two.
type Store interface {
	UpsertByThread(ctx context.Context, up ThreadUpsert) (*Incident, error)
	CreateIncident(ctx context.Context, inc *Incident) error
	GetIncident(ctx context.Context, id string) (*Incident, bool, error)
	SetAnalysis(ctx context.Context, id, summary string, actions json.RawMessage, severity string) error
	ListIncidents(ctx context.Context, f IncidentFilter) ([]Incident, int, error)
	RecentIncidents(ctx context.Context, limit int, activeOnly bool, channelID string) ([]Incident, error)

	CreateAlert(ctx context.Context, al *alert.Alert) error
	GetAlert(ctx context.Context, id string) (*alert.Alert, bool, error)
	SetAlertIncident(ctx context.Context, alertID, incidentID string) error
	ListAlerts(ctx context.Context, f AlertFilter) ([]alert.Alert, int, error)

	CreateQuery(ctx context.Context, q *Query) error
	SetQueryResponse(ctx context.Context, id, response string) error
	ListQueriesForIncident(ctx context.Context, incidentID string, limit int) ([]Query, error)
}
