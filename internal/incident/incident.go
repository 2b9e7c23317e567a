// Package incident holds the incident domain model, the persistence
// interface, and the correlation engine that maps alerts and Slack thread
// messages onto incidents.
package incident

import (
	"encoding/json"
	"time"
)

// Status tracks where an incident is in its lifecycle.
type Status string

const (
	StatusActive        Status = "active"
	StatusInvestigating Status = "investigating"
	StatusMonitoring    Status = "monitoring"
	StatusResolved      Status = "resolved"
)

// Incident groups one or more alerts or messages believed to represent the
// same operational event. The (SlackChannelID, SlackMessageTS) pair is the
// thread key: at most one incident exists per pair.
type Incident struct {
	ID               string          `json:"id"`
	SlackChannelID   string          `json:"slack_channel_id"`
	SlackMessageTS   string          `json:"slack_message_ts"`
	Title            string          `json:"title,omitempty"`
	Severity         string          `json:"severity,omitempty"`
	Status           Status          `json:"status"`
	RawLogs          string          `json:"raw_logs,omitempty"`
	AISummary        string          `json:"ai_summary,omitempty"`
	SuggestedActions json.RawMessage `json:"suggested_actions,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Query is a question asked about an incident (or none) and its answer.
// Response stays empty until the classifier answers, exactly once.
type Query struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id,omitempty"`
	UserID     string    `json:"user_id"`
	Query      string    `json:"query"`
	Response   string    `json:"response,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
