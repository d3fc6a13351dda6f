package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/Priya8975/event-recorder/internal/domain"
	"github.com/Priya8975/event-recorder/internal/engine"
)

type EventHandler struct {
	recorder *engine.Recorder
}

func NewEventHandler(r *engine.Recorder) *EventHandler {
	return &EventHandler{recorder: r}
}

// Get records an event named "GET" and returns the whole store.
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.record(w, r, domain.Event{Name: http.MethodGet})
}

// Create records the caller's event and returns the whole store.
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req domain.CreateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, codeRequestTooLarge, "request body too large")
			return
		}
		respondError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" {
		respondError(w, http.StatusBadRequest, codeMissingRequiredField, "name is required")
		return
	}

	h.record(w, r, domain.Event{Name: req.Name})
}

// List returns the store without recording anything.
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.recorder.Events(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to list events")
		return
	}

	respondJSON(w, http.StatusOK, events)
}

func (h *EventHandler) record(w http.ResponseWriter, r *http.Request, event domain.Event) {
	events, err := h.recorder.Record(r.Context(), event)
	if err != nil {
		respondRecordError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, events)
}
