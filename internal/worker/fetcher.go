package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Priya8975/event-recorder/internal/engine"
)

// Source is the blocking time query the pool runs on its workers.
type Source interface {
	Fetch(ctx context.Context) ([]byte, error)
}

// fetcher runs one query and logs how it went.
type fetcher struct {
	source Source
	logger *slog.Logger
}

func (f *fetcher) fetch(ctx context.Context) engine.TimeResult {
	start := time.Now()

	payload, err := f.source.Fetch(ctx)
	elapsed := time.Since(start).Milliseconds()

	if err != nil {
		f.logger.Warn("time query failed",
			"error", err,
			"elapsed_ms", elapsed,
		)
		return engine.TimeResult{Err: err}
	}

	f.logger.Debug("got time result",
		"payload_bytes", len(payload),
		"elapsed_ms", elapsed,
	)
	return engine.TimeResult{Payload: payload}
}
