package slack

import (
	"context"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

// Relay republishes a growing transcript into one Slack thread. Every
// Publish posts the entire accumulated text so far, not the delta; each
// posted message supersedes the previous one in meaning. Delivery
// failures are logged and never propagated, so a flaky Slack API cannot
// break an analysis run.
//
// A Relay belongs to a single analysis run and is not safe for
// concurrent use.
type Relay struct {
	client   *Client
	channel  string
	threadTS string
	logger   log.Logger
	buf      strings.Builder
}

// NewRelay creates a relay bound to one channel/thread.
func NewRelay(client *Client, channel, threadTS string, logger log.Logger) *Relay {
	if logger == nil {
		logger = log.Nop()
	}
	return &Relay{
		client:   client,
		channel:  channel,
		threadTS: threadTS,
		logger:   logger,
	}
}

// Publish appends delta to the transcript and posts the full
// accumulation to the thread.
func (r *Relay) Publish(ctx context.Context, delta string) error {
	r.buf.WriteString(delta)
	if _, err := r.client.PostMessage(ctx, r.channel, r.buf.String(), r.threadTS); err != nil {
		r.logger.Warn(ctx, "stream republish failed",
			"channel", r.channel,
			"thread_ts", r.threadTS,
			"error", err.Error(),
		)
	}
	return nil
}

// Text returns the transcript accumulated so far.
func (r *Relay) Text() string {
	return r.buf.String()
}
