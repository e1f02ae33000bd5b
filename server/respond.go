package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jrsteele09/go-edge-gateway/internal/errors"
)

const contentTypeJSON = "application/json; charset=utf-8"

// Envelope is the uniform response body for all gateway-owned endpoints.
type Envelope struct {
	Success   bool           `json:"success"`
	Data      any            `json:"data,omitempty"`
	Message   string         `json:"message,omitempty"`
	Error     *EnvelopeError `json:"error,omitempty"`
	Timestamp string         `json:"timestamp"`
}

// EnvelopeError is the client-visible error body.
type EnvelopeError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeEnvelope(w http.ResponseWriter, status int, envelope Envelope) {
	envelope.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope)
}

// RespondData writes a success envelope with a data payload.
func (s *Server) RespondData(w http.ResponseWriter, status int, data any) {
	writeEnvelope(w, status, Envelope{Success: true, Data: data})
}

// RespondMessage writes a success envelope carrying only a message.
func (s *Server) RespondMessage(w http.ResponseWriter, status int, message string) {
	writeEnvelope(w, status, Envelope{Success: true, Message: message})
}

// RespondError is the terminal error handler: it classifies err into the
// taxonomy, logs it, and writes the uniform envelope. Internals are never
// forwarded to the client outside non-production environments.
func (s *Server) RespondError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindOf(err)
	status := kind.Status()

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error().Stack()
	}
	event.
		Err(err).
		Str("request_id", RequestIDFromContext(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Msg("request failed")

	body := &EnvelopeError{
		Code:    string(kind),
		Message: clientMessage(kind, err),
	}
	if s.env != "production" {
		var typed *errors.Error
		if errors.As(err, &typed) && typed.Details != nil {
			body.Details = typed.Details
		}
	}

	if retryAfter := retryAfterFromError(err); retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	writeEnvelope(w, status, Envelope{Success: false, Error: body})
}

// clientMessage returns the message safe to show the caller. Internal
// errors are masked; typed domain errors carry client-safe messages by
// construction.
func clientMessage(kind errors.Kind, err error) string {
	if kind == errors.KindInternal {
		return "an unexpected error occurred"
	}
	var typed *errors.Error
	if errors.As(err, &typed) {
		return typed.Message
	}
	return err.Error()
}

func retryAfterFromError(err error) int {
	var typed *errors.Error
	if !errors.As(err, &typed) || typed.Kind != errors.KindRateLimit {
		return 0
	}
	if v, ok := typed.Details["retry_after_seconds"].(int); ok {
		return v
	}
	return 0
}
