// Package memstore provides an in-memory implementation of incident.Store.
// Suitable for dev/testing; the mutex serializes thread-key upserts so the
// one-incident-per-thread invariant holds under concurrent ingestion.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/incident"
)

// Store holds incidents, alerts, and queries in memory.
type Store struct {
	mu        sync.RWMutex
	incidents map[string]*incident.Incident // incident ID -> incident
	threads   map[string]string             // channel|ts -> incident ID
	alerts    map[string]*alert.Alert       // alert ID -> alert
	queries   map[string]*incident.Query    // query ID -> query
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		incidents: make(map[string]*incident.Incident),
		threads:   make(map[string]string),
		alerts:    make(map[string]*alert.Alert),
		queries:   make(map[string]*incident.Query),
	}
}

func threadKey(channelID, ts string) string {
	return channelID + "|" + ts
}

// UpsertByThread finds or creates the incident for a thread key under one
// lock acquisition, so concurrent duplicates converge on a single record.
func (s *Store) UpsertByThread(_ context.Context, up incident.ThreadUpsert) (*incident.Incident, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if id, ok := s.threads[threadKey(up.ChannelID, up.ThreadTS)]; ok {
		inc := s.incidents[id]
		inc.RawLogs = up.Logs
		if up.Title != "" {
			inc.Title = up.Title
		}
		if up.Severity != "" {
			inc.Severity = up.Severity
		}
		inc.UpdatedAt = now
		cp := *inc
		return &cp, nil
	}

	inc := &incident.Incident{
		ID:             ulid.Make().String(),
		SlackChannelID: up.ChannelID,
		SlackMessageTS: up.ThreadTS,
		Title:          up.Title,
		Severity:       up.Severity,
		Status:         incident.StatusActive,
		RawLogs:        up.Logs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.incidents[inc.ID] = inc
	s.threads[threadKey(up.ChannelID, up.ThreadTS)] = inc.ID
	cp := *inc
	return &cp, nil
}

// CreateIncident stores a copy of the incident and indexes its thread key.
func (s *Store) CreateIncident(_ context.Context, inc *incident.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inc
	s.incidents[inc.ID] = &cp
	s.threads[threadKey(inc.SlackChannelID, inc.SlackMessageTS)] = inc.ID
	return nil
}

// GetIncident retrieves an incident by ID. Returns a copy.
func (s *Store) GetIncident(_ context.Context, id string) (*incident.Incident, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil, false, nil
	}
	cp := *inc
	return &cp, true, nil
}

// SetAnalysis persists the classifier output on an incident. The severity
// is only applied when non-empty (classifier severity wins over hints).
func (s *Store) SetAnalysis(_ context.Context, id, summary string, actions json.RawMessage, severity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inc, ok := s.incidents[id]
	if !ok {
		return nil
	}
	inc.AISummary = summary
	inc.SuggestedActions = actions
	if severity != "" {
		inc.Severity = severity
	}
	inc.UpdatedAt = time.Now().UTC()
	return nil
}

// ListIncidents returns filtered incidents, most recent first, plus the
// total match count for pagination.
func (s *Store) ListIncidents(_ context.Context, f incident.IncidentFilter) ([]incident.Incident, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []incident.Incident
	for _, inc := range s.incidents {
		if f.Status != "" && string(inc.Status) != f.Status {
			continue
		}
		if f.Severity != "" && inc.Severity != f.Severity {
			continue
		}
		if f.ChannelID != "" && inc.SlackChannelID != f.ChannelID {
			continue
		}
		if f.Search != "" && !incidentMatches(inc, f.Search) {
			continue
		}
		matched = append(matched, *inc)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	return paginate(matched, f.Limit, f.Offset), total, nil
}

// RecentIncidents returns the most recent incidents, optionally restricted
// to unresolved statuses and a single channel.
func (s *Store) RecentIncidents(_ context.Context, limit int, activeOnly bool, channelID string) ([]incident.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incident.Incident
	for _, inc := range s.incidents {
		if channelID != "" && inc.SlackChannelID != channelID {
			continue
		}
		if activeOnly && inc.Status == incident.StatusResolved {
			continue
		}
		out = append(out, *inc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CreateAlert stores a copy of the alert.
func (s *Store) CreateAlert(_ context.Context, al *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *al
	s.alerts[al.ID] = &cp
	return nil
}

// GetAlert retrieves an alert by ID. Returns a copy.
func (s *Store) GetAlert(_ context.Context, id string) (*alert.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	al, ok := s.alerts[id]
	if !ok {
		return nil, false, nil
	}
	cp := *al
	return &cp, true, nil
}

// SetAlertIncident links an alert to an incident.
func (s *Store) SetAlertIncident(_ context.Context, alertID, incidentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if al, ok := s.alerts[alertID]; ok {
		al.IncidentID = incidentID
		al.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// ListAlerts returns filtered alerts, most recent first, plus the total
// match count.
func (s *Store) ListAlerts(_ context.Context, f incident.AlertFilter) ([]alert.Alert, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []alert.Alert
	for _, al := range s.alerts {
		if f.Status != "" && string(al.Status) != f.Status {
			continue
		}
		if f.Severity != "" && string(al.Severity) != f.Severity {
			continue
		}
		if f.Source != "" && string(al.Source) != f.Source {
			continue
		}
		matched = append(matched, *al)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	return paginate(matched, f.Limit, f.Offset), total, nil
}

// CreateQuery stores a copy of the incident query.
func (s *Store) CreateQuery(_ context.Context, q *incident.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *q
	s.queries[q.ID] = &cp
	return nil
}

// SetQueryResponse records the answer to a query.
func (s *Store) SetQueryResponse(_ context.Context, id, response string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if q, ok := s.queries[id]; ok {
		q.Response = response
	}
	return nil
}

// ListQueriesForIncident returns the most recent queries for an incident.
func (s *Store) ListQueriesForIncident(_ context.Context, incidentID string, limit int) ([]incident.Query, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []incident.Query
	for _, q := range s.queries {
		if q.IncidentID == incidentID {
			out = append(out, *q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func incidentMatches(inc *incident.Incident, search string) bool {
	q := strings.ToLower(search)
	return strings.Contains(strings.ToLower(inc.Title), q) ||
		strings.Contains(strings.ToLower(inc.RawLogs), q) ||
		strings.Contains(strings.ToLower(inc.AISummary), q)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
