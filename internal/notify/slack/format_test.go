package slack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/linnemanlabs/alertflow/internal/alert"
	"github.com/linnemanlabs/alertflow/internal/triage"
)

func TestIsHighPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		as   triage.Assessment
		want bool
	}{
		{"incident critical", triage.Assessment{CreateIncident: true, Severity: "critical"}, true},
		{"incident high", triage.Assessment{CreateIncident: true, Severity: "high"}, true},
		{"incident medium", triage.Assessment{CreateIncident: true, Severity: "medium"}, true},
		{"incident mixed case", triage.Assessment{CreateIncident: true, Severity: "High"}, true},
		{"incident low", triage.Assessment{CreateIncident: true, Severity: "low"}, false},
		{"no incident critical", triage.Assessment{CreateIncident: false, Severity: "critical"}, false},
		{"empty", triage.Assessment{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := IsHighPriority(&tt.as); got != tt.want {
				t.Errorf("IsHighPriority() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatHighPriority(t *testing.T) {
	t.Parallel()

	as := &triage.Assessment{
		Summary:          "db pool exhausted",
		Severity:         "high",
		ImmediateActions: []string{"restart app", "bump pool size"},
		RootCauses:       []string{"connection leak"},
	}
	got := FormatHighPriority("DB alarm", as)

	for _, want := range []string{
		"🚨 High-Priority Incident Created",
		"Alert: DB alarm",
		"Severity: HIGH",
		"Summary: db pool exhausted",
		"• restart app\n• bump pool size",
		"• connection leak",
		"Analyzed by AlertFlow AI",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestFormatHighPriority_EmptyLists(t *testing.T) {
	t.Parallel()

	got := FormatHighPriority("t", &triage.Assessment{Severity: "medium"})
	if !strings.Contains(got, "No actions specified") {
		t.Errorf("missing actions placeholder:\n%s", got)
	}
	if !strings.Contains(got, "Analysis in progress") {
		t.Errorf("missing causes placeholder:\n%s", got)
	}
}

func TestFormatLowPriority(t *testing.T) {
	t.Parallel()

	got := FormatLowPriority("Minor blip", &triage.Assessment{Summary: "transient", Severity: "low"})
	for _, want := range []string{"Minor blip", "Summary: transient", "Severity: LOW", "Analyzed by AlertFlow AI"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "High-Priority") {
		t.Error("low-priority template must not escalate")
	}
}

func TestNotifyAssessment(t *testing.T) {
	t.Parallel()

	var got postMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(apiResponse{OK: true, TS: "1.0"})
	}))
	defer srv.Close()

	c := NewClient("token")
	c.postURL = srv.URL
	n := NewNotifier(c, "#alerts", nil)

	al := &alert.Alert{ID: "A1", Title: "Disk full"}
	as := &triage.Assessment{Summary: "disk pressure", Severity: "critical", CreateIncident: true}
	if err := n.NotifyAssessment(context.Background(), al, as); err != nil {
		t.Fatalf("NotifyAssessment: %v", err)
	}
	if got.Channel != "#alerts" {
		t.Errorf("channel = %q", got.Channel)
	}
	if !strings.Contains(got.Text, "High-Priority") {
		t.Errorf("expected high-priority template:\n%s", got.Text)
	}
}

func TestNotifyAssessment_EmptyChannelNoop(t *testing.T) {
	t.Parallel()

	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	defer srv.Close()

	c := NewClient("token")
	c.postURL = srv.URL
	n := NewNotifier(c, "", nil)

	if err := n.NotifyAssessment(context.Background(), &alert.Alert{}, &triage.Assessment{}); err != nil {
		t.Fatalf("NotifyAssessment: %v", err)
	}
	if called {
		t.Error("channel-less notifier must not post")
	}
}
