// Package slack delivers triage output to Slack: bot-token channel posts,
// slash command callbacks, and the streaming thread relay.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultPostURL = "https://slack.com/api/chat.postMessage"
	httpTimeout    = 10 * time.Second
)

// Client posts messages via the Slack Web API using a bot token.
type Client struct {
	token      string
	postURL    string
	httpClient *http.Client
}

// NewClient creates a Slack client. If token is empty, PostMessage is a
// no-op so the pipeline can run without a Slack workspace.
func NewClient(token string) *Client {
	return &Client{
		token:      token,
		postURL:    defaultPostURL,
		httpClient: &http.Client{Timeout: httpTimeout},
	}
}

type postMessageRequest struct {
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	TS    string `json:"ts"`
}

// PostMessage posts text to a channel, threading under threadTS when
// non-empty, and returns the posted message timestamp. An {ok:false}
// body is an error even when the HTTP status is 200.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) (string, error) {
	if c.token == "" {
		return "", nil
	}

	body, err := json.Marshal(postMessageRequest{
		Channel:  channel,
		Text:     text,
		ThreadTS: threadTS,
	})
	if err != nil {
		return "", fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.postURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("slack: post message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("slack: api returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("slack: decode response: %w", err)
	}
	if !out.OK {
		return "", fmt.Errorf("slack: api error: %s", out.Error)
	}
	return out.TS, nil
}

// CommandResponse is the payload delivered to a slash command's
// response_url.
type CommandResponse struct {
	ResponseType string       `json:"response_type"`
	Text         string       `json:"text"`
	Attachments  []Attachment `json:"attachments,omitempty"`
}

// Attachment is a legacy Slack message attachment, used for the colored
// footer on command results.
type Attachment struct {
	Color  string `json:"color,omitempty"`
	Text   string `json:"text,omitempty"`
	Footer string `json:"footer,omitempty"`
	TS     int64  `json:"ts,omitempty"`
}

// Respond delivers a one-shot payload to a command's response_url.
func (c *Client) Respond(ctx context.Context, responseURL string, response *CommandResponse) error {
	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("slack: marshal response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack: post response: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: response_url returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
