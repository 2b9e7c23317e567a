// Package api is the HTTP surface: vendor webhook ingest, Slack event and
// command endpoints, and the read API the dashboard consumes.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/alertflow/internal/command"
	"github.com/linnemanlabs/alertflow/internal/incident"
	"github.com/linnemanlabs/alertflow/internal/slacksig"
	"github.com/linnemanlabs/alertflow/internal/triage"
)

// defaultIncidentChannels is the allow-list matched against the channel
// of inbound Slack message events.
var defaultIncidentChannels = []string{"alerts", "incidents", "CINC"}

// TriageService defines the pipeline operations the API needs.
type TriageService interface {
	IngestWebhook(ctx context.Context, body []byte, contentType string) (*triage.IngestResult, error)
	AnalyzeThread(ctx context.Context, channelID, threadTS, text string) error
	AnalyzeIncident(ctx context.Context, req triage.AnalyzeRequest) (*incident.Incident, *triage.Assessment, error)
	AskIncident(ctx context.Context, query, userID, incidentID string) (*incident.Query, error)
}

// CommandDispatcher acks slash commands.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) *command.Ack
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger           log.Logger
	svc              TriageService
	store            incident.Store
	dispatcher       CommandDispatcher
	signingSecret    string
	incidentChannels []string
}

// New creates a new API handler. incidentChannels may be nil to use the
// default allow-list.
func New(logger log.Logger, svc TriageService, store incident.Store, dispatcher CommandDispatcher, signingSecret string, incidentChannels []string) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("triage service is required"))
	}
	if store == nil {
		panic(xerrors.New("incident store is required"))
	}
	if dispatcher == nil {
		panic(xerrors.New("command dispatcher is required"))
	}
	if len(incidentChannels) == 0 {
		incidentChannels = defaultIncidentChannels
	}
	return &API{
		logger:           logger,
		svc:              svc,
		store:            store,
		dispatcher:       dispatcher,
		signingSecret:    signingSecret,
		incidentChannels: incidentChannels,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Options("/webhook", a.handleWebhookOptions)
		r.Post("/webhook", a.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(slacksig.Middleware(a.signingSecret))
			r.Post("/slack/events", a.handleSlackEvents)
			r.Post("/slack/commands", a.handleSlackCommand)
		})

		r.Get("/alerts", a.handleListAlerts)
		r.Post("/alerts", a.handleCreateAlert)
		r.Get("/incidents", a.handleListIncidents)
		r.Post("/incidents/query", a.handleIncidentQuery)
		r.Post("/incidents/analyze", a.handleAnalyzeIncident)
	})
}

// pagination is the list-response envelope consumed by the dashboard.
type pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func newPagination(total, limit, offset int) pagination {
	return pagination{
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasMore: offset+limit < total,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
