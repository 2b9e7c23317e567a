package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/linnemanlabs/alertflow/internal/command"
	"github.com/linnemanlabs/alertflow/internal/slacksig"
)

type slackEvent struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	Event     struct {
		Type    string `json:"type"`
		Channel string `json:"channel"`
		Text    string `json:"text"`
		TS      string `json:"ts"`
	} `json:"event"`
}

func (a *API) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	body, ok := slacksig.RawBody(r.Context())
	if !ok {
		body, _ = io.ReadAll(r.Body)
	}

	var ev slackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	if ev.Type == "url_verification" {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(ev.Challenge))
		return
	}

	if ev.Event.Type == "message" && a.isIncidentChannel(ev.Event.Channel) {
		// Analysis outlives the event delivery; Slack retries on slow acks.
		ctx := context.WithoutCancel(r.Context())
		channel, ts, text := ev.Event.Channel, ev.Event.TS, ev.Event.Text
		go func() {
			if err := a.svc.AnalyzeThread(ctx, channel, ts, text); err != nil {
				a.logger.Error(ctx, err, "thread analysis failed",
					"channel", channel,
					"thread_ts", ts,
				)
			}
		}()
	}

	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("OK"))
}

func (a *API) isIncidentChannel(channel string) bool {
	for _, name := range a.incidentChannels {
		if strings.Contains(channel, name) || strings.HasPrefix(channel, name) {
			return true
		}
	}
	return false
}

func (a *API) handleSlackCommand(w http.ResponseWriter, r *http.Request) {
	body, ok := slacksig.RawBody(r.Context())
	if !ok {
		body, _ = io.ReadAll(r.Body)
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	ack := a.dispatcher.Dispatch(r.Context(), command.Command{
		Command:     form.Get("command"),
		Text:        form.Get("text"),
		UserID:      form.Get("user_id"),
		ChannelID:   form.Get("channel_id"),
		ResponseURL: form.Get("response_url"),
	})

	if ack.Err != "" {
		writeError(w, http.StatusBadRequest, ack.Err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"response_type": ack.ResponseType,
		"text":          ack.Text,
	})
}
