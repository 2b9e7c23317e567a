package alert

import (
	"encoding/json"
	"fmt"
	"strings"
)

// pagerDutyContentType is the vendor media type PagerDuty v2 webhooks send.
const pagerDutyContentType = "application/vnd.pagerduty+json"

const defaultTitle = "Alert from webhook"

// Normalize converts a vendor webhook payload into a canonical Alert.
// Dispatch is checked in order, first match wins: PagerDuty content type,
// a "datadog" key, an "alertmanager" key, then the generic shape. Every
// branch keeps the full original body in RawData. Normalize is pure; it
// never touches the network or storage.
func Normalize(body []byte, contentType string) (*Alert, error) {
	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}

	al := &Alert{
		Status:  StatusActive,
		RawData: json.RawMessage(body),
	}

	switch {
	case strings.Contains(contentType, pagerDutyContentType):
		normalizePagerDuty(doc, al)
	case hasKey(doc, "datadog"):
		normalizeDatadog(doc, al)
	case hasKey(doc, "alertmanager"):
		normalizeAlertmanager(doc, al)
	default:
		normalizeGeneric(doc, al)
	}

	return al, nil
}

func normalizePagerDuty(doc map[string]any, al *Alert) {
	al.Source = SourcePagerDuty
	incident := dig(doc, "messages", "0", "event", "data", "incident")
	al.Title = firstString(incident, "title")
	if al.Title == "" {
		al.Title = "PagerDuty Alert"
	}
	al.Description = firstString(incident, "description")
	al.Severity = ParseSeverity(firstString(incident, "urgency"))
}

func normalizeDatadog(doc map[string]any, al *Alert) {
	al.Source = SourceDatadog
	inner, _ := doc["alert"].(map[string]any)
	al.Title = firstString(inner, "title")
	if al.Title == "" {
		al.Title = "Datadog Alert"
	}
	al.Description = firstString(inner, "message")
	al.Severity = ParseSeverity(firstString(inner, "priority"))
}

func normalizeAlertmanager(doc map[string]any, al *Alert) {
	al.Source = SourcePrometheus
	// Alertmanager groups alerts; only the first entry is normalized.
	first := dig(doc, "alerts", "0")
	labels, _ := first["labels"].(map[string]any)
	annotations, _ := first["annotations"].(map[string]any)
	al.Title = firstString(labels, "alertname")
	if al.Title == "" {
		al.Title = "Prometheus Alert"
	}
	al.Description = firstString(annotations, "description", "summary")
	al.Severity = ParseSeverity(firstString(labels, "severity"))
}

func normalizeGeneric(doc map[string]any, al *Alert) {
	al.Source = SourceGeneric
	al.Title = firstString(doc, "title", "name")
	if al.Title == "" {
		al.Title = defaultTitle
	}
	al.Description = firstString(doc, "description", "message", "summary")
	al.Severity = ParseSeverity(firstString(doc, "severity", "priority"))
}

func hasKey(doc map[string]any, key string) bool {
	_, ok := doc[key]
	return ok
}

// dig walks nested maps and arrays by key ("0" indexes into arrays) and
// returns the map found at the end, or nil if any step is missing.
func dig(doc map[string]any, path ...string) map[string]any {
	var cur any = doc
	for _, p := range path {
		switch v := cur.(type) {
		case map[string]any:
			cur = v[p]
		case []any:
			if p != "0" || len(v) == 0 {
				return nil
			}
			cur = v[0]
		default:
			return nil
		}
	}
	m, _ := cur.(map[string]any)
	return m
}

// firstString returns the first non-empty string value among keys.
func firstString(doc map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := doc[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
