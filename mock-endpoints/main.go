// Command mock-endpoints is a stand-in time service for local runs. Point
// TIME_SOURCE_URLS at one or more copies of it.
package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"
)

var requestCount atomic.Int64

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	port := "9090"
	if p := os.Getenv("PORT"); p != "" {
		port = p
	}

	mux := http.NewServeMux()

	// Current time: {"now": <unix millis>}
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(logger, r, count, http.StatusOK)
		writeNow(w)
	})

	// Same as / after a 3 second delay, for exercising timeouts.
	mux.HandleFunc("GET /slow", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		select {
		case <-time.After(3 * time.Second):
		case <-r.Context().Done():
			return
		}
		logRequest(logger, r, count, http.StatusOK)
		writeNow(w)
	})

	// Always 500, for exercising failover and the circuit breaker.
	mux.HandleFunc("GET /fail", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(logger, r, count, http.StatusInternalServerError)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
	})

	// 200 with a body that is not JSON.
	mux.HandleFunc("GET /garbage", func(w http.ResponseWriter, r *http.Request) {
		count := requestCount.Add(1)
		logRequest(logger, r, count, http.StatusOK)

		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("it is half past something"))
	})

	mux.HandleFunc("GET /stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int64{"total_requests": requestCount.Load()})
	})

	logger.Info("mock time service starting", "port", port)
	logger.Info("routes",
		"/", "current time",
		"/slow", "current time after 3s",
		"/fail", "500",
		"/garbage", "non-JSON body",
		"/stats", "request count",
	)

	if err := http.ListenAndServe(":"+port, mux); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeNow(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int64{"now": time.Now().UnixMilli()})
}

func logRequest(logger *slog.Logger, r *http.Request, count int64, status int) {
	logger.Info("request",
		"n", count,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"remote", r.RemoteAddr,
	)
}
