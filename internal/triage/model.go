package triage

import (
	"encoding/json"
	"strings"
)

// Assessment is the classifier's structured judgment about a piece of
// alert or incident text. When the classifier output cannot be parsed,
// the Assessment is unstructured: Summary carries the raw text and
// CreateIncident is always false.
type Assessment struct {
	Summary          string   `json:"summary"`
	Severity         string   `json:"severity"`
	RootCauses       []string `json:"root_causes,omitempty"`
	ImmediateActions []string `json:"immediate_actions,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	CreateIncident   bool     `json:"create_incident"`
	Reasoning        string   `json:"reasoning,omitempty"`

	Structured bool   `json:"-"`
	Raw        string `json:"-"`
}

// ParseAssessment attempts a strict JSON parse of classifier output,
// tolerating markdown code fences. On failure it degrades to an
// unstructured Assessment carrying the raw text and the fallback
// severity, so downstream code always has one shape to handle.
func ParseAssessment(raw, fallbackSeverity string) *Assessment {
	text := stripFences(strings.TrimSpace(raw))

	var as Assessment
	if err := json.Unmarshal([]byte(text), &as); err != nil {
		return &Assessment{
			Summary:  strings.TrimSpace(raw),
			Severity: orDefault(fallbackSeverity),
			Raw:      raw,
		}
	}

	as.Structured = true
	as.Raw = raw
	if as.Severity == "" {
		as.Severity = orDefault(fallbackSeverity)
	}
	return &as
}

// SuggestedActionsJSON packages the actionable parts of a structured
// assessment for persistence. Unstructured assessments have none.
func (a *Assessment) SuggestedActionsJSON() json.RawMessage {
	if !a.Structured {
		return nil
	}
	b, err := json.Marshal(struct {
		ImmediateActions []string `json:"immediate_actions,omitempty"`
		RootCauses       []string `json:"root_causes,omitempty"`
		Recommendations  []string `json:"recommendations,omitempty"`
	}{a.ImmediateActions, a.RootCauses, a.Recommendations})
	if err != nil {
		return nil
	}
	return b
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// drop the language tag line ("json", etc.)
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func orDefault(severity string) string {
	if severity == "" {
		return "medium"
	}
	return severity
}
