// Package pgstore provides a PostgreSQL implementation of incident.Store.
//
// The one-incident-per-thread invariant is enforced by a uniqueness
// constraint on (slack_channel_id, slack_message_ts); UpsertByThread rides
// ON CONFLICT so concurrent duplicate deliveries converge on one row
// without any application-level locking.
package pgstore

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/incident"
)

var tracer = otel.Tracer("github.com/linnemanlabs/alertflow/internal/incident/pgstore")

//go:embed schema.sql
var schema string

// Store persists incidents, alerts, and queries in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// New applies the schema and returns a ready Store over the given pool.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

const incidentColumns = `id, slack_channel_id, slack_message_ts, title, severity, status,
	raw_logs, ai_summary, suggested_actions, created_at, resolved_at, updated_at`

const alertColumns = `id, title, description, severity, source, status, raw_data,
	incident_id, created_at, resolved_at, updated_at`

func startSpan(ctx context.Context, name, op string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation.name", op),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// UpsertByThread finds or creates the incident for a thread key in a
// single statement. On conflict the logs are replaced and title/severity
// are only overwritten by non-empty values.
func (s *Store) UpsertByThread(ctx context.Context, up incident.ThreadUpsert) (*incident.Incident, error) {
	ctx, span := startSpan(ctx, "pgstore.UpsertByThread", "UPSERT")
	defer span.End()

	now := time.Now().UTC()
	query := `INSERT INTO incidents (
		id, slack_channel_id, slack_message_ts, title, severity, status,
		raw_logs, created_at, updated_at
	) VALUES ($1,$2,$3,$4,$5,'active',$6,$7,$7)
	ON CONFLICT (slack_channel_id, slack_message_ts) DO UPDATE SET
		raw_logs   = EXCLUDED.raw_logs,
		title      = COALESCE(NULLIF(EXCLUDED.title, ''), incidents.title),
		severity   = COALESCE(NULLIF(EXCLUDED.severity, ''), incidents.severity),
		updated_at = EXCLUDED.updated_at
	RETURNING ` + incidentColumns

	row := s.pool.QueryRow(ctx, query,
		ulid.Make().String(), up.ChannelID, up.ThreadTS, up.Title, up.Severity, up.Logs, now,
	)
	inc, err := scanIncident(row)
	if err != nil {
		return nil, fail(span, err)
	}
	return inc, nil
}

// CreateIncident inserts a new incident row.
func (s *Store) CreateIncident(ctx context.Context, inc *incident.Incident) error {
	ctx, span := startSpan(ctx, "pgstore.CreateIncident", "INSERT")
	defer span.End()

	query := `INSERT INTO incidents (` + incidentColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := s.pool.Exec(ctx, query,
		inc.ID, inc.SlackChannelID, inc.SlackMessageTS, inc.Title, inc.Severity,
		string(inc.Status), inc.RawLogs, inc.AISummary, actionsParam(inc.SuggestedActions),
		inc.CreatedAt, inc.ResolvedAt, inc.UpdatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert incident: %w", err))
	}
	return nil
}

// GetIncident retrieves an incident by ID.
func (s *Store) GetIncident(ctx context.Context, id string) (*incident.Incident, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetIncident", "SELECT")
	defer span.End()

	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE id = $1`
	inc, err := scanIncident(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, err)
	}
	return inc, true, nil
}

// SetAnalysis persists the classifier output on an incident; severity is
// only applied when non-empty.
func (s *Store) SetAnalysis(ctx context.Context, id, summary string, actions json.RawMessage, severity string) error {
	ctx, span := startSpan(ctx, "pgstore.SetAnalysis", "UPDATE")
	defer span.End()

	query := `UPDATE incidents SET
		ai_summary        = $2,
		suggested_actions = $3,
		severity          = COALESCE(NULLIF($4, ''), severity),
		updated_at        = $5
	WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, summary, actionsParam(actions), severity, time.Now().UTC())
	if err != nil {
		return fail(span, fmt.Errorf("update analysis: %w", err))
	}
	return nil
}

// ListIncidents returns filtered incidents, most recent first, plus the
// total match count for pagination.
func (s *Store) ListIncidents(ctx context.Context, f incident.IncidentFilter) ([]incident.Incident, int, error) {
	ctx, span := startSpan(ctx, "pgstore.ListIncidents", "SELECT")
	defer span.End()

	where, args := incidentWhere(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM incidents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fail(span, fmt.Errorf("count incidents: %w", err))
	}

	query := `SELECT ` + incidentColumns + ` FROM incidents` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, listLimit(f.Limit), f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fail(span, fmt.Errorf("query incidents: %w", err))
	}
	defer rows.Close()

	var out []incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, 0, fail(span, err)
		}
		out = append(out, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fail(span, fmt.Errorf("iterate incidents: %w", err))
	}
	return out, total, nil
}

// RecentIncidents returns the most recent incidents, optionally restricted
// to unresolved statuses and a single channel.
func (s *Store) RecentIncidents(ctx context.Context, limit int, activeOnly bool, channelID string) ([]incident.Incident, error) {
	ctx, span := startSpan(ctx, "pgstore.RecentIncidents", "SELECT")
	defer span.End()

	var conds []string
	var args []any
	if activeOnly {
		conds = append(conds, "status <> 'resolved'")
	}
	if channelID != "" {
		args = append(args, channelID)
		conds = append(conds, fmt.Sprintf("slack_channel_id = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	args = append(args, listLimit(limit))

	query := `SELECT ` + incidentColumns + ` FROM incidents` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query recent incidents: %w", err))
	}
	defer rows.Close()

	var out []incident.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, fail(span, err)
		}
		out = append(out, *inc)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate recent incidents: %w", err))
	}
	return out, nil
}

// CreateAlert inserts a new alert row.
func (s *Store) CreateAlert(ctx context.Context, al *alert.Alert) error {
	ctx, span := startSpan(ctx, "pgstore.CreateAlert", "INSERT")
	defer span.End()

	query := `INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
	_, err := s.pool.Exec(ctx, query,
		al.ID, al.Title, al.Description, string(al.Severity), string(al.Source),
		string(al.Status), rawParam(al.RawData), nullString(al.IncidentID),
		al.CreatedAt, al.ResolvedAt, al.UpdatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert alert: %w", err))
	}
	return nil
}

// GetAlert retrieves an alert by ID.
func (s *Store) GetAlert(ctx context.Context, id string) (*alert.Alert, bool, error) {
	ctx, span := startSpan(ctx, "pgstore.GetAlert", "SELECT")
	defer span.End()

	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	al, err := scanAlert(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fail(span, err)
	}
	return al, true, nil
}

// SetAlertIncident links an alert to an incident.
func (s *Store) SetAlertIncident(ctx context.Context, alertID, incidentID string) error {
	ctx, span := startSpan(ctx, "pgstore.SetAlertIncident", "UPDATE")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`UPDATE alerts SET incident_id = $2, updated_at = $3 WHERE id = $1`,
		alertID, incidentID, time.Now().UTC(),
	)
	if err != nil {
		return fail(span, fmt.Errorf("link alert: %w", err))
	}
	return nil
}

// ListAlerts returns filtered alerts, most recent first, plus the total
// match count for pagination.
func (s *Store) ListAlerts(ctx context.Context, f incident.AlertFilter) ([]alert.Alert, int, error) {
	ctx, span := startSpan(ctx, "pgstore.ListAlerts", "SELECT")
	defer span.End()

	where, args := alertWhere(f)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM alerts`+where, args...).Scan(&total); err != nil {
		return nil, 0, fail(span, fmt.Errorf("count alerts: %w", err))
	}

	query := `SELECT ` + alertColumns + ` FROM alerts` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, listLimit(f.Limit), f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fail(span, fmt.Errorf("query alerts: %w", err))
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		al, err := scanAlert(rows)
		if err != nil {
			return nil, 0, fail(span, err)
		}
		out = append(out, *al)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fail(span, fmt.Errorf("iterate alerts: %w", err))
	}
	return out, total, nil
}

// CreateQuery inserts a new incident query row.
func (s *Store) CreateQuery(ctx context.Context, q *incident.Query) error {
	ctx, span := startSpan(ctx, "pgstore.CreateQuery", "INSERT")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO incident_queries (id, incident_id, user_id, query, response, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		q.ID, nullString(q.IncidentID), q.UserID, q.Query, q.Response, q.CreatedAt,
	)
	if err != nil {
		return fail(span, fmt.Errorf("insert query: %w", err))
	}
	return nil
}

// SetQueryResponse records the answer to a query.
func (s *Store) SetQueryResponse(ctx context.Context, id, response string) error {
	ctx, span := startSpan(ctx, "pgstore.SetQueryResponse", "UPDATE")
	defer span.End()

	_, err := s.pool.Exec(ctx,
		`UPDATE incident_queries SET response = $2 WHERE id = $1`, id, response)
	if err != nil {
		return fail(span, fmt.Errorf("update query response: %w", err))
	}
	return nil
}

// ListQueriesForIncident returns the most recent queries for an incident.
func (s *Store) ListQueriesForIncident(ctx context.Context, incidentID string, limit int) ([]incident.Query, error) {
	ctx, span := startSpan(ctx, "pgstore.ListQueriesForIncident", "SELECT")
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, incident_id, user_id, query, response, created_at
		 FROM incident_queries WHERE incident_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		incidentID, listLimit(limit),
	)
	if err != nil {
		return nil, fail(span, fmt.Errorf("query incident queries: %w", err))
	}
	defer rows.Close()

	var out []incident.Query
	for rows.Next() {
		var q incident.Query
		var incID *string
		if err := rows.Scan(&q.ID, &incID, &q.UserID, &q.Query, &q.Response, &q.CreatedAt); err != nil {
			return nil, fail(span, fmt.Errorf("scan query: %w", err))
		}
		if incID != nil {
			q.IncidentID = *incID
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fail(span, fmt.Errorf("iterate queries: %w", err))
	}
	return out, nil
}

func incidentWhere(f incident.IncidentFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.ChannelID != "" {
		add("slack_channel_id = $%d", f.ChannelID)
	}
	if f.Search != "" {
		add("(title ILIKE $%[1]d OR raw_logs ILIKE $%[1]d OR ai_summary ILIKE $%[1]d)", "%"+f.Search+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func alertWhere(f incident.AlertFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, val any) {
		args = append(args, val)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.Severity != "" {
		add("severity = $%d", f.Severity)
	}
	if f.Source != "" {
		add("source = $%d", f.Source)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanIncident(row pgx.Row) (*incident.Incident, error) {
	var (
		inc     incident.Incident
		status  string
		actions []byte
	)
	err := row.Scan(
		&inc.ID, &inc.SlackChannelID, &inc.SlackMessageTS, &inc.Title, &inc.Severity,
		&status, &inc.RawLogs, &inc.AISummary, &actions,
		&inc.CreatedAt, &inc.ResolvedAt, &inc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan incident: %w", err)
	}
	inc.Status = incident.Status(status)
	inc.SuggestedActions = actions
	return &inc, nil
}

func scanAlert(row pgx.Row) (*alert.Alert, error) {
	var (
		al       alert.Alert
		severity string
		source   string
		status   string
		raw      []byte
		incID    *string
	)
	err := row.Scan(
		&al.ID, &al.Title, &al.Description, &severity, &source, &status,
		&raw, &incID, &al.CreatedAt, &al.ResolvedAt, &al.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}
	al.Severity = alert.Severity(severity)
	al.Source = alert.Source(source)
	al.Status = alert.Status(status)
	al.RawData = raw
	if incID != nil {
		al.IncidentID = *incID
	}
	return &al, nil
}

// actionsParam maps empty JSON to NULL so the JSONB column stays clean.
func actionsParam(actions json.RawMessage) any {
	if len(actions) == 0 {
		return nil
	}
	return []byte(actions)
}

func rawParam(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

const defaultListLimit = 50

func listLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	return limit
}
