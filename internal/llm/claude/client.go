// Package claude implements the triage classifier on the Anthropic API.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/alertflow/internal/triage"
)

// defaultTemperature keeps assessments deterministic-ish without making
// them robotic.
const defaultTemperature = 0.3

// Client implements triage.Classifier against the Claude Messages API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude client with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Complete sends a single-shot prompt and returns the concatenated text
// content of the response.
func (c *Client) Complete(ctx context.Context, p *triage.Prompt) (string, error) {
	msg, err := c.client.Messages.New(ctx, c.params(p))
	if err != nil {
		return "", fmt.Errorf("claude: %w", err)
	}
	return extractText(msg), nil
}

// Stream sends a prompt with streaming enabled, invoking emit for every
// text delta. The accumulated text so far is returned even on error.
func (c *Client) Stream(ctx context.Context, p *triage.Prompt, emit func(delta string) error) (string, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.params(p))

	var b strings.Builder
	for stream.Next() {
		event := stream.Current()
		ev, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
		if !ok {
			continue
		}
		d, ok := ev.Delta.AsAny().(anthropic.TextDelta)
		if !ok || d.Text == "" {
			continue
		}
		b.WriteString(d.Text)
		if emit != nil {
			if err := emit(d.Text); err != nil {
				return b.String(), fmt.Errorf("emit delta: %w", err)
			}
		}
	}
	if err := stream.Err(); err != nil {
		return b.String(), fmt.Errorf("claude stream: %w", err)
	}
	return b.String(), nil
}

func (c *Client) params(p *triage.Prompt) anthropic.MessageNewParams {
	maxTokens := p.MaxTokens
	if maxTokens <= 0 {
		maxTokens = triage.ResponseTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(defaultTemperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(p.User)),
		},
	}
	if p.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: p.System}}
	}
	return params
}

func extractText(msg *anthropic.Message) string {
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}
