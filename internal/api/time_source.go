package api

import (
	"context"
	"net/http"

	"github.com/Priya8975/event-recorder/internal/engine"
)

// BreakerStates reports circuit breaker state per time source instance.
type BreakerStates interface {
	GetState(ctx context.Context, instance string) engine.CircuitBreakerState
}

// PoolStats reports the fetch pool's capacity and backlog.
type PoolStats interface {
	Size() int
	Pending() int
}

// ClientCounter reports connected live-feed clients.
type ClientCounter interface {
	ClientCount() int
}

type StatusHandler struct {
	recorder  *engine.Recorder
	instances []string
	breaker   BreakerStates
	pool      PoolStats
	clients   ClientCounter
}

func NewStatusHandler(rec *engine.Recorder, instances []string, breaker BreakerStates, pool PoolStats, clients ClientCounter) *StatusHandler {
	return &StatusHandler{
		recorder:  rec,
		instances: instances,
		breaker:   breaker,
		pool:      pool,
		clients:   clients,
	}
}

// TimeSourceHealth returns the breaker state of every configured instance.
// Without a breaker every instance is reported closed.
func (h *StatusHandler) TimeSourceHealth(w http.ResponseWriter, r *http.Request) {
	result := make([]engine.CircuitBreakerState, 0, len(h.instances))
	for _, instance := range h.instances {
		if h.breaker == nil {
			result = append(result, engine.CircuitBreakerState{Instance: instance, State: engine.StateClosed})
			continue
		}
		result = append(result, h.breaker.GetState(r.Context(), instance))
	}

	respondJSON(w, http.StatusOK, result)
}

type metricsResponse struct {
	EventsRecorded   int `json:"events_recorded"`
	TimeSources      int `json:"time_sources"`
	Workers          int `json:"workers"`
	PendingQueries   int `json:"pending_queries"`
	WebSocketClients int `json:"websocket_clients"`
}

// Metrics returns store size and runtime counters.
func (h *StatusHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	count, err := h.recorder.Count(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, codeInternalError, "failed to get metrics")
		return
	}

	m := metricsResponse{
		EventsRecorded: count,
		TimeSources:    len(h.instances),
	}
	if h.pool != nil {
		m.Workers = h.pool.Size()
		m.PendingQueries = h.pool.Pending()
	}
	if h.clients != nil {
		m.WebSocketClients = h.clients.ClientCount()
	}

	respondJSON(w, http.StatusOK, m)
}
