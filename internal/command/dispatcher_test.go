package command

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/linnemanlabs/alertflow/internal/incident"
	"github.com/linnemanlabs/alertflow/internal/incident/memstore"
	"github.com/linnemanlabs/alertflow/internal/notify/slack"
)

type stubAnswerer struct {
	answer  string
	err     error
	called  chan struct{}
	gotCtx  string
	gotText string
}

func (s *stubAnswerer) AnswerQuestion(_ context.Context, contextText, question string) (string, error) {
	s.gotCtx = contextText
	s.gotText = question
	if s.called != nil {
		close(s.called)
	}
	return s.answer, s.err
}

type stubResponder struct {
	delivered chan *slack.CommandResponse
	urls      []string
}

func newStubResponder() *stubResponder {
	return &stubResponder{delivered: make(chan *slack.CommandResponse, 4)}
}

func (s *stubResponder) Respond(_ context.Context, responseURL string, resp *slack.CommandResponse) error {
	s.urls = append(s.urls, responseURL)
	s.delivered <- resp
	return nil
}

func waitDelivery(t *testing.T, ch chan *slack.CommandResponse) *slack.CommandResponse {
	t.Helper()
	select {
	case resp := <-ch:
		return resp
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery to response_url")
		return nil
	}
}

func TestDispatch_UnknownCommand(t *testing.T) {
	t.Parallel()

	an := &stubAnswerer{called: make(chan struct{})}
	d := NewDispatcher(memstore.New(), an, newStubResponder(), nil, nil)

	ack := d.Dispatch(context.Background(), Command{Command: "/other", Text: "hi"})
	if ack.Err != "Unknown command" {
		t.Errorf("Err = %q, want unknown command", ack.Err)
	}

	select {
	case <-an.called:
		t.Fatal("unknown command must not reach the answerer")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatch_EmptyTextUsage(t *testing.T) {
	t.Parallel()

	an := &stubAnswerer{called: make(chan struct{})}
	d := NewDispatcher(memstore.New(), an, newStubResponder(), nil, nil)

	ack := d.Dispatch(context.Background(), Command{Command: Name, Text: "   "})
	if ack.Err != "" {
		t.Fatalf("Err = %q, usage is a normal ack", ack.Err)
	}
	if ack.ResponseType != "ephemeral" {
		t.Errorf("ResponseType = %q", ack.ResponseType)
	}
	if !strings.Contains(ack.Text, "Usage:") || !strings.Contains(ack.Text, Name) {
		t.Errorf("Text = %q, want usage hint", ack.Text)
	}

	select {
	case <-an.called:
		t.Fatal("empty question must not reach the answerer")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatch_Success(t *testing.T) {
	t.Parallel()

	store := memstore.New()
	if _, err := store.UpsertByThread(context.Background(), incident.ThreadUpsert{
		ChannelID: "C1", ThreadTS: "1.0", Title: "db outage", Severity: "high",
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	an := &stubAnswerer{answer: "the db fell over"}
	resp := newStubResponder()
	d := NewDispatcher(store, an, resp, nil, nil)

	ack := d.Dispatch(context.Background(), Command{
		Command:     Name,
		Text:        "what broke today?",
		UserID:      "U1",
		ResponseURL: "https://hooks.slack.test/T1",
	})
	if ack.Err != "" {
		t.Fatalf("Err = %q", ack.Err)
	}
	if !strings.Contains(ack.Text, "Analyzing your request") {
		t.Errorf("ack Text = %q, want working message", ack.Text)
	}

	delivered := waitDelivery(t, resp.delivered)
	if delivered.ResponseType != "in_channel" {
		t.Errorf("ResponseType = %q, want in_channel", delivered.ResponseType)
	}
	if delivered.Text != "the db fell over" {
		t.Errorf("Text = %q", delivered.Text)
	}
	if len(delivered.Attachments) != 1 {
		t.Fatalf("attachments = %d, want 1", len(delivered.Attachments))
	}
	att := delivered.Attachments[0]
	if att.Color != slack.AttachmentGreen || att.Footer != "AlertFlow AI Assistant" || att.TS == 0 {
		t.Errorf("attachment = %+v", att)
	}

	if !strings.Contains(an.gotCtx, "db outage") {
		t.Errorf("answerer context missing recent incidents: %q", an.gotCtx)
	}
	if an.gotText != "what broke today?" {
		t.Errorf("question = %q", an.gotText)
	}
	if len(resp.urls) != 1 || resp.urls[0] != "https://hooks.slack.test/T1" {
		t.Errorf("delivery urls = %v", resp.urls)
	}

	select {
	case extra := <-resp.delivered:
		t.Fatalf("more than one terminal delivery: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDispatch_AnswerFailure(t *testing.T) {
	t.Parallel()

	an := &stubAnswerer{err: errors.New("overloaded")}
	resp := newStubResponder()
	d := NewDispatcher(memstore.New(), an, resp, nil, nil)

	ack := d.Dispatch(context.Background(), Command{Command: Name, Text: "q", ResponseURL: "u"})
	if ack.Err != "" {
		t.Fatalf("failure must still ack normally, got Err=%q", ack.Err)
	}

	delivered := waitDelivery(t, resp.delivered)
	if delivered.ResponseType != "ephemeral" {
		t.Errorf("ResponseType = %q, want ephemeral failure", delivered.ResponseType)
	}
	if !strings.Contains(delivered.Text, "error generating the response") {
		t.Errorf("Text = %q", delivered.Text)
	}
	if len(delivered.Attachments) != 0 {
		t.Errorf("failure delivery must have no attachments: %+v", delivered.Attachments)
	}
}

func TestDispatch_StoreFailure(t *testing.T) {
	t.Parallel()

	an := &stubAnswerer{called: make(chan struct{})}
	resp := newStubResponder()
	d := NewDispatcher(failingStore{}, an, resp, nil, nil)

	ack := d.Dispatch(context.Background(), Command{Command: Name, Text: "q", ResponseURL: "u"})
	if ack.Err != "" {
		t.Fatalf("store failure is an ephemeral apology, not a 400: Err=%q", ack.Err)
	}
	if !strings.Contains(ack.Text, "error processing your request") {
		t.Errorf("Text = %q", ack.Text)
	}

	select {
	case <-an.called:
		t.Fatal("store failure must not start async analysis")
	case <-time.After(50 * time.Millisecond):
	}
}

// failingStore fails the recent-incident window lookup.
type failingStore struct {
	incident.Store
}

func (failingStore) RecentIncidents(context.Context, int, bool, string) ([]incident.Incident, error) {
	return nil, errors.New("db unavailable")
}
