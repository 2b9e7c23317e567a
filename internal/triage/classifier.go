package triage

import "context"

// Prompt is a single-shot classifier request.
type Prompt struct {
	System    string
	User      string
	MaxTokens int
}

// Classifier is the interface for any LLM backend. Stream invokes emit for
// every text delta as it arrives and returns the full accumulated text.
type Classifier interface {
	Complete(ctx context.Context, p *Prompt) (string, error)
	Stream(ctx context.Context, p *Prompt, emit func(delta string) error) (string, error)
}
