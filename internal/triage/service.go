package triage

import (
	"context"
	"strconv"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/incident"
)

// Notifier delivers an alert assessment to the chat channel. Delivery is
// best-effort; the service logs failures and moves on.
type Notifier interface {
	NotifyAssessment(ctx context.Context, al *alert.Alert, as *Assessment) error
}

// Relay republishes a growing transcript to a chat thread.
type Relay interface {
	Publish(ctx context.Context, delta string) error
	Text() string
}

// RelayFactory builds a relay bound to one channel/thread.
type RelayFactory func(channelID, threadTS string) Relay

// IngestResult is the outcome of a webhook ingest: the recorded alert,
// its assessment, and the incident if one was opened.
type IngestResult struct {
	Alert      *alert.Alert
	Assessment *Assessment
	Incident   *incident.Incident
}

// AnalyzeRequest carries the inputs of an explicit incident analysis.
type AnalyzeRequest struct {
	ChannelID string
	MessageTS string
	Logs      string
	Title     string
	Severity  string
}

// Service is the business boundary for the triage pipeline.
type Service struct {
	store      incident.Store
	correlator *incident.Correlator
	engine     *Engine
	notifier   Notifier
	relays     RelayFactory
	metrics    *Metrics
	logger     log.Logger
}

// NewService creates a triage service. Notifier, relay factory, and
// metrics may be nil; those paths then become no-ops.
func NewService(store incident.Store, correlator *incident.Correlator, engine *Engine, notifier Notifier, relays RelayFactory, metrics *Metrics, logger log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{
		store:      store,
		correlator: correlator,
		engine:     engine,
		notifier:   notifier,
		relays:     relays,
		metrics:    metrics,
		logger:     logger,
	}
}

// IngestWebhook runs the full ingestion pipeline: normalize, assess,
// persist the alert, open an incident when the classifier says so, and
// notify the chat channel best-effort. Classifier failures degrade; only
// normalization and persistence failures reach the caller.
func (s *Service) IngestWebhook(ctx context.Context, body []byte, contentType string) (*IngestResult, error) {
	al, err := alert.Normalize(body, contentType)
	if err != nil {
		s.metrics.ObserveIngest("unknown", "invalid")
		return nil, err
	}

	now := time.Now().UTC()
	al.ID = ulid.Make().String()
	al.Status = alert.StatusActive
	al.CreatedAt = now
	al.UpdatedAt = now

	as := s.engine.AssessAlert(ctx, al)
	if as.Structured && alert.IsValidSeverity(as.Severity) {
		// classifier severity wins over the vendor mapping, once.
		al.Severity = alert.Severity(as.Severity)
	}

	if err := s.store.CreateAlert(ctx, al); err != nil {
		s.metrics.ObserveIngest(string(al.Source), "error")
		return nil, err
	}

	res := &IngestResult{Alert: al, Assessment: as}
	if as.CreateIncident {
		inc, err := s.correlator.CreateForAlert(ctx, al, as.Summary, as.SuggestedActionsJSON(), as.Severity)
		if err != nil {
			s.metrics.ObserveIngest(string(al.Source), "error")
			return nil, err
		}
		res.Incident = inc
		s.metrics.ObserveIncidentOpened("alert")
	}

	s.notify(ctx, al, as)
	s.metrics.ObserveIngest(string(al.Source), "ok")
	return res, nil
}

// AnalyzeThread correlates a Slack thread message into its incident and
// streams the analysis back into the thread, republishing the full
// accumulated text on every chunk. The final transcript is persisted as
// the incident summary exactly once.
func (s *Service) AnalyzeThread(ctx context.Context, channelID, threadTS, text string) error {
	inc, err := s.correlator.Correlate(ctx, channelID, threadTS, text, firstLine(text), "")
	if err != nil {
		return err
	}
	if inc.CreatedAt.Equal(inc.UpdatedAt) {
		s.metrics.ObserveIncidentOpened("thread")
	}

	var relay Relay
	emit := func(string) error { return nil }
	if s.relays != nil {
		relay = s.relays(channelID, threadTS)
		emit = func(delta string) error {
			s.metrics.ObserveStreamPublish()
			return relay.Publish(ctx, delta)
		}
	}

	final, streamErr := s.engine.StreamLogs(ctx, inc.RawLogs, emit)
	if streamErr != nil {
		s.logger.Error(ctx, streamErr, "streaming analysis failed",
			"incident_id", inc.ID,
			"channel", channelID,
			"thread_ts", threadTS,
		)
	}
	if final == "" && relay != nil {
		final = relay.Text()
	}
	if final == "" {
		return nil
	}

	if err := s.store.SetAnalysis(ctx, inc.ID, final, nil, ""); err != nil {
		return err
	}
	s.logger.Info(ctx, "thread analysis persisted",
		"incident_id", inc.ID,
		"summary_len", len(final),
	)
	return nil
}

// AnalyzeIncident runs a one-shot analysis of submitted logs, upserting
// the incident for the given thread identity (or a fresh one when no
// message timestamp is supplied).
func (s *Service) AnalyzeIncident(ctx context.Context, req AnalyzeRequest) (*incident.Incident, *Assessment, error) {
	ts := req.MessageTS
	if ts == "" {
		ts = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}

	inc, err := s.correlator.Correlate(ctx, req.ChannelID, ts, req.Logs, req.Title, req.Severity)
	if err != nil {
		return nil, nil, err
	}

	as := s.engine.AnalyzeLogs(ctx, req.Logs, req.Severity)
	severity := ""
	if as.Structured {
		severity = as.Severity
	}
	if err := s.store.SetAnalysis(ctx, inc.ID, as.Summary, as.SuggestedActionsJSON(), severity); err != nil {
		return nil, nil, err
	}

	inc.AISummary = as.Summary
	inc.SuggestedActions = as.SuggestedActionsJSON()
	if severity != "" {
		inc.Severity = severity
	}
	return inc, as, nil
}

// AskIncident records a question about an incident, answers it with the
// incident's context, and persists the response exactly once. Classifier
// failures degrade into an apology rather than an error.
func (s *Service) AskIncident(ctx context.Context, query, userID, incidentID string) (*incident.Query, error) {
	q := &incident.Query{
		ID:         ulid.Make().String(),
		IncidentID: incidentID,
		UserID:     userID,
		Query:      query,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateQuery(ctx, q); err != nil {
		return nil, err
	}

	contextText := ""
	if incidentID != "" {
		inc, ok, err := s.store.GetIncident(ctx, incidentID)
		if err != nil {
			return nil, err
		}
		if ok {
			history, err := s.store.ListQueriesForIncident(ctx, incidentID, 5)
			if err != nil {
				return nil, err
			}
			contextText = BuildIncidentContext(inc, history)
		}
	}

	answer, err := s.engine.AnswerQuestion(ctx, contextText, query)
	if err != nil {
		s.logger.Error(ctx, err, "incident query failed", "query_id", q.ID)
		answer = "I wasn't able to analyze this question right now. Please try again shortly."
	}

	if err := s.store.SetQueryResponse(ctx, q.ID, answer); err != nil {
		return nil, err
	}
	q.Response = answer
	return q, nil
}

func (s *Service) notify(ctx context.Context, al *alert.Alert, as *Assessment) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAssessment(ctx, al, as); err != nil {
		s.metrics.ObserveNotifyFailure()
		s.logger.Warn(ctx, "slack notification failed",
			"alert_id", al.ID,
			"error", err.Error(),
		)
	}
}
