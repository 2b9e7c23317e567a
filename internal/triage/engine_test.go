package triage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/incident"
)

// stubClassifier returns canned output, or fails, and records the
// prompts it saw.
type stubClassifier struct {
	completeOut string
	completeErr error
	streamOut   []string
	streamErr   error
	prompts     []*Prompt
}

func (s *stubClassifier) Complete(_ context.Context, p *Prompt) (string, error) {
	s.prompts = append(s.prompts, p)
	return s.completeOut, s.completeErr
}

func (s *stubClassifier) Stream(_ context.Context, p *Prompt, emit func(string) error) (string, error) {
	s.prompts = append(s.prompts, p)
	var b strings.Builder
	for _, d := range s.streamOut {
		b.WriteString(d)
		if err := emit(d); err != nil {
			return b.String(), err
		}
	}
	return b.String(), s.streamErr
}

func TestAssessAlert(t *testing.T) {
	t.Parallel()

	cl := &stubClassifier{completeOut: `{"summary":"disk filling","severity":"critical","create_incident":true}`}
	e := NewEngine(cl, time.Second, nil, nil)

	al := &alert.Alert{ID: "A1", Title: "Disk almost full", Severity: alert.SeverityHigh, Source: alert.SourceGeneric}
	as := e.AssessAlert(context.Background(), al)

	if !as.Structured || as.Severity != "critical" || !as.CreateIncident {
		t.Errorf("assessment = %+v", as)
	}
	if len(cl.prompts) != 1 {
		t.Fatalf("classifier calls = %d, want 1", len(cl.prompts))
	}
	if !strings.Contains(cl.prompts[0].User, "Disk almost full") {
		t.Errorf("prompt missing alert title: %q", cl.prompts[0].User)
	}
	if cl.prompts[0].MaxTokens != ResponseTokens {
		t.Errorf("MaxTokens = %d, want %d", cl.prompts[0].MaxTokens, ResponseTokens)
	}
}

func TestAssessAlert_ClassifierFailureDegrades(t *testing.T) {
	t.Parallel()

	cl := &stubClassifier{completeErr: errors.New("upstream 529")}
	e := NewEngine(cl, time.Second, nil, nil)

	al := &alert.Alert{ID: "A1", Severity: alert.SeverityHigh}
	as := e.AssessAlert(context.Background(), al)

	if as == nil {
		t.Fatal("degraded path must still return an assessment")
	}
	if as.Severity != "high" {
		t.Errorf("Severity = %q, want the alert's own severity", as.Severity)
	}
	if as.CreateIncident || as.Structured {
		t.Error("degraded assessment must be unstructured and never open incidents")
	}
}

func TestAnalyzeLogs_FailureUsesHint(t *testing.T) {
	t.Parallel()

	cl := &stubClassifier{completeErr: errors.New("timeout")}
	e := NewEngine(cl, time.Second, nil, nil)

	if as := e.AnalyzeLogs(context.Background(), "logs", "critical"); as.Severity != "critical" {
		t.Errorf("Severity = %q, want hint", as.Severity)
	}
	if as := e.AnalyzeLogs(context.Background(), "logs", ""); as.Severity != "medium" {
		t.Errorf("Severity = %q, want medium default", as.Severity)
	}
}

func TestStreamLogs(t *testing.T) {
	t.Parallel()

	cl := &stubClassifier{streamOut: []string{"A", "B", "C"}}
	e := NewEngine(cl, time.Second, nil, nil)

	var seen []string
	got, err := e.StreamLogs(context.Background(), "logs", func(d string) error {
		seen = append(seen, d)
		return nil
	})
	if err != nil {
		t.Fatalf("StreamLogs: %v", err)
	}
	if got != "ABC" {
		t.Errorf("accumulated = %q, want ABC", got)
	}
	if len(seen) != 3 {
		t.Errorf("emit calls = %d, want 3", len(seen))
	}
}

func TestStreamLogs_PartialOnError(t *testing.T) {
	t.Parallel()

	cl := &stubClassifier{streamOut: []string{"A", "B"}, streamErr: errors.New("connection reset")}
	e := NewEngine(cl, time.Second, nil, nil)

	got, err := e.StreamLogs(context.Background(), "logs", func(string) error { return nil })
	if err == nil {
		t.Fatal("expected stream error")
	}
	if got != "AB" {
		t.Errorf("partial accumulation = %q, want AB", got)
	}
}

func TestAnswerQuestion_PropagatesError(t *testing.T) {
	t.Parallel()

	cl := &stubClassifier{completeErr: errors.New("overloaded")}
	e := NewEngine(cl, time.Second, nil, nil)

	if _, err := e.AnswerQuestion(context.Background(), "ctx", "why"); err == nil {
		t.Fatal("AnswerQuestion must surface classifier errors to the caller")
	}
}

func TestBuildIncidentContext(t *testing.T) {
	t.Parallel()

	inc := &incident.Incident{
		ID:        "INC1",
		Title:     "db outage",
		Severity:  "high",
		Status:    incident.StatusActive,
		AISummary: "primary down",
		RawLogs:   "FATAL: connection refused",
	}
	history := []incident.Query{
		{Query: "who is on call", Response: "alice"},
	}

	got := BuildIncidentContext(inc, history)
	for _, want := range []string{"INC1", "db outage", "primary down", "FATAL: connection refused", "Q: who is on call", "A: alice"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q:\n%s", want, got)
		}
	}
}

func TestBuildRecentIncidentContext(t *testing.T) {
	t.Parallel()

	if got := BuildRecentIncidentContext(nil); got != "No recent incidents on record." {
		t.Errorf("empty window = %q", got)
	}

	got := BuildRecentIncidentContext([]incident.Incident{
		{Title: "db outage", Severity: "high", Status: incident.StatusActive, AISummary: "primary down\ndetails"},
		{Title: "flaky check", Severity: "low", Status: incident.StatusResolved},
	})
	if !strings.Contains(got, "db outage") || !strings.Contains(got, "flaky check") {
		t.Errorf("context missing incidents:\n%s", got)
	}
	if !strings.Contains(got, "primary down") || strings.Contains(got, "details") {
		t.Errorf("summary must be first line only:\n%s", got)
	}
}
