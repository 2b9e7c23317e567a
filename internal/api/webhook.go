package api

import (
	"io"
	"net/http"
	"time"
)

// setCORSHeaders makes the webhook callable from third-party monitoring
// vendors; everything else on the API is same-origin.
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
}

func (a *API) handleWebhookOptions(w http.ResponseWriter, _ *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.logger.Error(r.Context(), err, "failed to read webhook body")
		writeError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	res, err := a.svc.IngestWebhook(r.Context(), body, r.Header.Get("Content-Type"))
	if err != nil {
		a.logger.Error(r.Context(), err, "webhook ingest failed")
		writeError(w, http.StatusInternalServerError, "Failed to process webhook")
		return
	}

	resp := map[string]any{
		"success":     true,
		"message":     "Webhook processed with AI analysis",
		"alert":       res.Alert,
		"ai_analysis": res.Assessment,
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}
	if res.Incident != nil {
		resp["incident"] = res.Incident
	}
	writeJSON(w, http.StatusOK, resp)
}
