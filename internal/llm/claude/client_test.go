package claude

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/linnemanlabs/alertflow/internal/triage"
)

func TestParams_Defaults(t *testing.T) {
	t.Parallel()

	c := New("test-key", "claude-sonnet-4-5")
	params := c.params(&triage.Prompt{User: "what is happening?"})

	if params.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q, want %q", params.Model, "claude-sonnet-4-5")
	}
	if params.MaxTokens != triage.ResponseTokens {
		t.Errorf("max tokens = %d, want %d", params.MaxTokens, triage.ResponseTokens)
	}
	if len(params.System) != 0 {
		t.Errorf("system len = %d, want 0", len(params.System))
	}
	if len(params.Messages) != 1 {
		t.Fatalf("messages len = %d, want 1", len(params.Messages))
	}
	if params.Messages[0].Role != "user" {
		t.Errorf("role = %q, want %q", params.Messages[0].Role, "user")
	}
}

func TestParams_SystemAndMaxTokens(t *testing.T) {
	t.Parallel()

	c := New("test-key", "claude-sonnet-4-5")
	params := c.params(&triage.Prompt{
		System:    "you are a triage bot",
		User:      "assess this",
		MaxTokens: 512,
	})

	if params.MaxTokens != 512 {
		t.Errorf("max tokens = %d, want 512", params.MaxTokens)
	}
	if len(params.System) != 1 {
		t.Fatalf("system len = %d, want 1", len(params.System))
	}
	if params.System[0].Text != "you are a triage bot" {
		t.Errorf("system = %q, want %q", params.System[0].Text, "you are a triage bot")
	}
}

func TestExtractText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  *anthropic.Message
		want string
	}{
		{
			"single text block",
			&anthropic.Message{Content: []anthropic.ContentBlockUnion{
				{Type: "text", Text: "analysis result"},
			}},
			"analysis result",
		},
		{
			"multiple text blocks concatenated",
			&anthropic.Message{Content: []anthropic.ContentBlockUnion{
				{Type: "text", Text: "part one "},
				{Type: "text", Text: "part two"},
			}},
			"part one part two",
		},
		{
			"non-text blocks skipped",
			&anthropic.Message{Content: []anthropic.ContentBlockUnion{
				{Type: "tool_use", ID: "tu-1", Name: "lookup"},
				{Type: "text", Text: "the answer"},
			}},
			"the answer",
		},
		{
			"no content",
			&anthropic.Message{},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := extractText(tt.msg)
			if got != tt.want {
				t.Errorf("extractText = %q, want %q", got, tt.want)
			}
		})
	}
}
