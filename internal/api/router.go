package api

import (
	"net/http"
	"strings"

	"github.com/Priya8975/event-recorder/internal/engine"
	ws "github.com/Priya8975/event-recorder/internal/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const maxBodyBytes = 1 << 20

// Deps are the collaborators the router wires into handlers. Breaker, Pool
// and Hub are optional.
type Deps struct {
	Recorder    *engine.Recorder
	TimeSources []string
	Breaker     BreakerStates
	Pool        PoolStats
	Hub         *ws.Hub
}

// NewRouter creates and configures the HTTP router.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(corsMiddleware)

	eventHandler := NewEventHandler(d.Recorder)

	var clients ClientCounter
	if d.Hub != nil {
		clients = d.Hub
		r.Get("/ws", d.Hub.HandleWebSocket)
	}
	statusHandler := NewStatusHandler(d.Recorder, d.TimeSources, d.Breaker, d.Pool, clients)

	r.Get("/", eventHandler.Get)
	r.With(
		requireJSON,
		middleware.RequestSize(maxBodyBytes),
	).Post("/", eventHandler.Create)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", HealthHandler())
		r.Get("/events", eventHandler.List)
		r.Get("/time-source/health", statusHandler.TimeSourceHealth)
		r.Get("/metrics", statusHandler.Metrics)
	})

	return r
}

// requireJSON rejects request bodies that are not declared as JSON.
func requireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ct := strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0])
		if !strings.EqualFold(ct, "application/json") {
			respondError(w, http.StatusUnsupportedMediaType, codeUnsupportedMediaType, "expected application/json")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware allows browser clients on other origins.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
