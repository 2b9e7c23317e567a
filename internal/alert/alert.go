// Package alert defines the canonical alert model and the normalization
// of vendor-specific webhook payloads into it.
package alert

import (
	"encoding/json"
	"strings"
	"time"
)

// Severity is the four-level priority scale shared by alerts and incidents.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Source identifies which vendor integration produced an alert.
type Source string

const (
	SourceGeneric    Source = "generic"
	SourcePagerDuty  Source = "pagerduty"
	SourceDatadog    Source = "datadog"
	SourcePrometheus Source = "prometheus"
)

// Status tracks whether an alert is still firing.
type Status string

const (
	StatusActive   Status = "active"
	StatusResolved Status = "resolved"
)

// Alert is one ingested signal from a monitoring source. RawData preserves
// the original payload verbatim for audit regardless of which fields the
// normalizer extracted.
type Alert struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Severity    Severity        `json:"severity"`
	Source      Source          `json:"source"`
	Status      Status          `json:"status"`
	RawData     json.RawMessage `json:"raw_data,omitempty"`
	IncidentID  string          `json:"incident_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ParseSeverity maps vendor severity vocabularies onto the shared scale.
// Unknown or empty values fall back to medium.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "p1", "sev1", "fatal":
		return SeverityCritical
	case "high", "p2", "sev2", "error", "urgent":
		return SeverityHigh
	case "medium", "p3", "warning", "warn", "moderate":
		return SeverityMedium
	case "low", "p4", "p5", "info", "informational":
		return SeverityLow
	default:
		return SeverityMedium
	}
}

// IsValidSeverity reports whether s is one of the four canonical levels.
func IsValidSeverity(s string) bool {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}
