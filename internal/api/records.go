package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/incident"
	"github.com/linnemanlabs/alertflow/internal/triage"
)

const defaultPageSize = 50

func pageParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	q := r.URL.Query()

	alerts, total, err := a.store.ListAlerts(r.Context(), incident.AlertFilter{
		Status:   q.Get("status"),
		Severity: q.Get("severity"),
		Source:   q.Get("source"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "alert listing failed")
		writeError(w, http.StatusInternalServerError, "Failed to query alerts")
		return
	}
	if alerts == nil {
		alerts = []alert.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"alerts":     alerts,
		"pagination": newPagination(total, limit, offset),
	})
}

func (a *API) handleCreateAlert(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Severity    string          `json:"severity"`
		Source      string          `json:"source"`
		RawData     json.RawMessage `json:"rawData"`
		IncidentID  string          `json:"incidentId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Title == "" || req.Severity == "" || req.Source == "" {
		writeError(w, http.StatusBadRequest, "Title, severity, and source are required")
		return
	}

	now := time.Now().UTC()
	al := &alert.Alert{
		ID:          ulid.Make().String(),
		Title:       req.Title,
		Description: req.Description,
		Severity:    alert.ParseSeverity(req.Severity),
		Source:      alert.Source(req.Source),
		Status:      alert.StatusActive,
		RawData:     req.RawData,
		IncidentID:  req.IncidentID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.store.CreateAlert(r.Context(), al); err != nil {
		a.logger.Error(r.Context(), err, "alert create failed")
		writeError(w, http.StatusInternalServerError, "Failed to create alert")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"alert":   al,
	})
}

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	q := r.URL.Query()

	incidents, total, err := a.store.ListIncidents(r.Context(), incident.IncidentFilter{
		Status:    q.Get("status"),
		Severity:  q.Get("severity"),
		ChannelID: q.Get("channelId"),
		Search:    q.Get("search"),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "incident listing failed")
		writeError(w, http.StatusInternalServerError, "Failed to query incidents")
		return
	}
	if incidents == nil {
		incidents = []incident.Incident{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"incidents":  incidents,
		"pagination": newPagination(total, limit, offset),
	})
}

func (a *API) handleIncidentQuery(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query      string `json:"query"`
		IncidentID string `json:"incidentId"`
		UserID     string `json:"userId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Query == "" || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "Query and userId are required")
		return
	}

	q, err := a.svc.AskIncident(r.Context(), req.Query, req.UserID, req.IncidentID)
	if err != nil {
		a.logger.Error(r.Context(), err, "incident query failed")
		writeError(w, http.StatusInternalServerError, "Failed to create incident query")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"query":    q,
		"response": q.Response,
	})
}

func (a *API) handleAnalyzeIncident(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Logs      string `json:"logs"`
		ChannelID string `json:"channelId"`
		MessageTS string `json:"messageTs"`
		Title     string `json:"title"`
		Severity  string `json:"severity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.Logs == "" {
		writeError(w, http.StatusBadRequest, "Logs are required")
		return
	}

	channelID := req.ChannelID
	if channelID == "" {
		channelID = "unknown"
	}

	inc, as, err := a.svc.AnalyzeIncident(r.Context(), triage.AnalyzeRequest{
		ChannelID: channelID,
		MessageTS: req.MessageTS,
		Logs:      req.Logs,
		Title:     req.Title,
		Severity:  req.Severity,
	})
	if err != nil {
		a.logger.Error(r.Context(), err, "incident analysis failed")
		writeError(w, http.StatusInternalServerError, "Failed to analyze incident")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"incident": inc,
		"analysis": as,
	})
}
