// Package slacksig verifies Slack request signatures and provides HTTP
// middleware enforcing them on inbound Slack webhooks.
package slacksig

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"io"
	"net/http"
)

// Header names Slack sets on every signed request.
const (
	TimestampHeader = "X-Slack-Request-Timestamp"
	SignatureHeader = "X-Slack-Signature"
)

type rawBodyKey struct{}

// Verify checks a Slack v0 request signature: HMAC-SHA256 over
// "v0:<timestamp>:<body>" keyed with the signing secret, hex encoded and
// prefixed with "v0=". Comparison is constant-time to prevent timing
// side-channels. An unset secret or missing header yields false; Verify
// never returns an error because a failed check is a normal outcome.
func Verify(rawBody []byte, timestamp, signature, secret string) bool {
	if secret == "" || timestamp == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:"))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(":"))
	mac.Write(rawBody)
	expected := "v0=" + hex.EncodeToString(mac.Sum(nil))

	if len(expected) != len(signature) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Middleware returns a handler wrapper that reads the raw request body,
// verifies the Slack signature against it, and rejects failures with
// 401 "Invalid signature". The raw bytes are restored on the request and
// stashed in the context so handlers can parse them after verification;
// re-serialized bodies would never verify, so the raw capture must happen
// here, before any structured parsing.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}
			_ = r.Body.Close()

			ts := r.Header.Get(TimestampHeader)
			sig := r.Header.Get(SignatureHeader)
			if !Verify(body, ts, sig, secret) {
				http.Error(w, "Invalid signature", http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r.WithContext(WithRawBody(r.Context(), body)))
		})
	}
}

// WithRawBody stores the verified raw request body in the context.
func WithRawBody(ctx context.Context, body []byte) context.Context {
	return context.WithValue(ctx, rawBodyKey{}, body)
}

// RawBody returns the verified raw request body, if present.
func RawBody(ctx context.Context) ([]byte, bool) {
	b, ok := ctx.Value(rawBodyKey{}).([]byte)
	return b, ok
}
