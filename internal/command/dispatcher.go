// Package command handles the /whisperer slash command: synchronous
// acknowledgment within Slack's timeout budget, asynchronous answer
// delivery to the response_url.
package command

import (
	"context"
	"strings"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/alertflow/internal/incident"
	"github.com/linnemanlabs/alertflow/internal/notify/slack"
	"github.com/linnemanlabs/alertflow/internal/triage"
)

// Name is the only slash command this dispatcher accepts.
const Name = "/whisperer"

// recentWindow bounds the incident context handed to the classifier.
const recentWindow = 10

// Command is a parsed slash command invocation.
type Command struct {
	Command     string
	Text        string
	UserID      string
	ChannelID   string
	ResponseURL string
}

// Ack is the synchronous reply to a command. A non-empty Err marks a
// terminal error ack, surfaced as HTTP 400 by the handler; otherwise
// ResponseType/Text form a normal ephemeral reply.
type Ack struct {
	Err          string
	ResponseType string
	Text         string
}

// Answerer answers a question given incident context.
type Answerer interface {
	AnswerQuestion(ctx context.Context, contextText, question string) (string, error)
}

// Responder delivers a payload to a command response_url.
type Responder interface {
	Respond(ctx context.Context, responseURL string, response *slack.CommandResponse) error
}

// Dispatcher validates commands, acks fast, and answers asynchronously.
type Dispatcher struct {
	store     incident.Store
	answerer  Answerer
	responder Responder
	metrics   *triage.Metrics
	logger    log.Logger
}

// NewDispatcher creates a dispatcher. Metrics may be nil.
func NewDispatcher(store incident.Store, answerer Answerer, responder Responder, metrics *triage.Metrics, logger log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Nop()
	}
	return &Dispatcher{
		store:     store,
		answerer:  answerer,
		responder: responder,
		metrics:   metrics,
		logger:    logger,
	}
}

// Dispatch returns the synchronous ack for a command. Unsupported
// commands and empty questions terminate here; anything else fetches the
// recent-incident window, detaches the analysis, and acks immediately so
// the caller never waits on the classifier.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd Command) *Ack {
	if cmd.Command != Name {
		d.metrics.ObserveCommand("unknown")
		return &Ack{Err: "Unknown command"}
	}
	if strings.TrimSpace(cmd.Text) == "" {
		d.metrics.ObserveCommand("usage")
		return &Ack{
			ResponseType: "ephemeral",
			Text:         "Usage: `/whisperer <your question about incidents>`",
		}
	}

	recent, err := d.store.RecentIncidents(ctx, recentWindow, true, "")
	if err != nil {
		d.metrics.ObserveCommand("error")
		d.logger.Error(ctx, err, "recent incident lookup failed", "user_id", cmd.UserID)
		return &Ack{
			ResponseType: "ephemeral",
			Text:         "Sorry, I encountered an error processing your request.",
		}
	}

	// Detached continuation; outlives the request.
	go d.answer(context.WithoutCancel(ctx), cmd, recent)

	d.metrics.ObserveCommand("accepted")
	return &Ack{
		ResponseType: "ephemeral",
		Text:         "🤖 Analyzing your request... Response coming shortly!",
	}
}

// answer delivers exactly one terminal message to the response_url,
// success or failure.
func (d *Dispatcher) answer(ctx context.Context, cmd Command, recent []incident.Incident) {
	L := d.logger.With("user_id", cmd.UserID, "channel", cmd.ChannelID)

	text, err := d.answerer.AnswerQuestion(ctx, triage.BuildRecentIncidentContext(recent), cmd.Text)
	if err != nil {
		d.metrics.ObserveCommand("failed")
		L.Error(ctx, err, "command analysis failed")
		d.deliver(ctx, cmd.ResponseURL, &slack.CommandResponse{
			ResponseType: "ephemeral",
			Text:         "Sorry, I encountered an error generating the response.",
		})
		return
	}

	d.metrics.ObserveCommand("answered")
	d.deliver(ctx, cmd.ResponseURL, &slack.CommandResponse{
		ResponseType: "in_channel",
		Text:         text,
		Attachments: []slack.Attachment{{
			Color:  slack.AttachmentGreen,
			Footer: "AlertFlow AI Assistant",
			TS:     time.Now().Unix(),
		}},
	})
}

func (d *Dispatcher) deliver(ctx context.Context, responseURL string, resp *slack.CommandResponse) {
	if err := d.responder.Respond(ctx, responseURL, resp); err != nil {
		d.logger.Error(ctx, err, "command response delivery failed")
	}
}
