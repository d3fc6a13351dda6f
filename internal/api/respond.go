package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Priya8975/event-recorder/internal/domain"
)

const (
	codeInvalidRequestBody    = "invalid_request_body"
	codeMissingRequiredField  = "missing_required_field"
	codeUnsupportedMediaType  = "unsupported_media_type"
	codeRequestTooLarge       = "request_body_too_large"
	codeTimeSourceUnavailable = "time_source_unavailable"
	codeInvalidTimestamp      = "invalid_timestamp_payload"
	codeTimeSourceCircuitOpen = "time_source_circuit_open"
	codeTimeSourceTimeout     = "time_source_timeout"
	codeServiceUnavailable    = "service_unavailable"
	codeInternalError         = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, msg string) {
	respondJSON(w, status, errorResponse{Error: msg, Code: code})
}

// respondRecordError maps a failed record to its status and error code. The
// error text is included because it names the failing instance or parse error.
func respondRecordError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCircuitOpen):
		respondError(w, http.StatusServiceUnavailable, codeTimeSourceCircuitOpen, err.Error())
	case errors.Is(err, domain.ErrTimestampDecode):
		respondError(w, http.StatusBadGateway, codeInvalidTimestamp, err.Error())
	case errors.Is(err, domain.ErrTimeSourceUnavailable):
		respondError(w, http.StatusBadGateway, codeTimeSourceUnavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, codeTimeSourceTimeout, "timed out waiting for the time source")
	case errors.Is(err, domain.ErrPoolStopped), errors.Is(err, context.Canceled):
		respondError(w, http.StatusServiceUnavailable, codeServiceUnavailable, "service is shutting down")
	default:
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to record event")
	}
}
