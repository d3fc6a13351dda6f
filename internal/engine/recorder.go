package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Priya8975/event-recorder/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("github.com/Priya8975/event-recorder/internal/engine")

// TimeResult is the single outcome of a time source query: the raw payload on
// success, or an error.
type TimeResult struct {
	Payload []byte
	Err     error
}

// AsyncTimeSource starts a time source query and returns immediately. The
// returned channel yields exactly one result and is never closed early.
type AsyncTimeSource interface {
	CurrentTime(ctx context.Context) <-chan TimeResult
}

// EventStore is the append-only event list. Append assigns the event's id and
// returns the store contents as of right after the append, so the appended
// event is always the last element.
type EventStore interface {
	Append(ctx context.Context, event domain.Event) ([]domain.Event, error)
	List(ctx context.Context) ([]domain.Event, error)
	Len(ctx context.Context) (int, error)
}

// Notifier is told about every event that made it into the store.
type Notifier interface {
	EventRecorded(event domain.Event, storeSize int)
}

// Recorder timestamps events with the time source and appends them to the store.
type Recorder struct {
	timeSource AsyncTimeSource
	store      EventStore
	notifier   Notifier
	timeout    time.Duration
	logger     *slog.Logger
}

func NewRecorder(ts AsyncTimeSource, store EventStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		timeSource: ts,
		store:      store,
		logger:     logger,
	}
}

// WithNotifier registers a listener for recorded events.
func (r *Recorder) WithNotifier(n Notifier) *Recorder {
	r.notifier = n
	return r
}

// WithTimeout bounds how long Record waits for the time source. Zero means
// the caller's context is the only bound.
func (r *Recorder) WithTimeout(d time.Duration) *Recorder {
	r.timeout = d
	return r
}

// Record resolves a timestamp for event and appends it. On success it returns
// the whole store; on failure nothing is appended.
func (r *Recorder) Record(ctx context.Context, event domain.Event) ([]domain.Event, error) {
	ctx, span := tracer.Start(ctx, "Recorder.Record")
	defer span.End()
	span.SetAttributes(attribute.String("event.name", event.Name))

	events, err := r.record(ctx, event)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Warn("event not recorded", "event_name", event.Name, "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int("store.size", len(events)))
	return events, nil
}

func (r *Recorder) record(ctx context.Context, event domain.Event) ([]domain.Event, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.logger.Debug("asking for time", "event_name", event.Name)

	var res TimeResult
	select {
	case res = <-r.timeSource.CurrentTime(ctx):
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for time source: %w", ctx.Err())
	}
	if res.Err != nil {
		return nil, res.Err
	}

	ts, err := DecodeTimestamp(res.Payload)
	if err != nil {
		return nil, err
	}

	event.ID = 0
	event.Timestamp = ts

	events, err := r.store.Append(ctx, event)
	if err != nil {
		return nil, fmt.Errorf("appending event: %w", err)
	}

	recorded := events[len(events)-1]

	r.logger.Info("event recorded",
		"event_id", recorded.ID,
		"event_name", recorded.Name,
		"store_size", len(events),
	)

	if r.notifier != nil {
		r.notifier.EventRecorded(recorded, len(events))
	}

	return events, nil
}

// Events returns the store contents without recording anything.
func (r *Recorder) Events(ctx context.Context) ([]domain.Event, error) {
	return r.store.List(ctx)
}

// Count returns the number of recorded events.
func (r *Recorder) Count(ctx context.Context) (int, error) {
	return r.store.Len(ctx)
}

// DecodeTimestamp parses a time source payload as a JSON object. Numbers are
// kept as json.Number so they re-encode exactly as received.
func DecodeTimestamp(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var ts map[string]any
	if err := dec.Decode(&ts); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTimestampDecode, err)
	}
	if ts == nil {
		return nil, fmt.Errorf("%w: payload is null", domain.ErrTimestampDecode)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after JSON object", domain.ErrTimestampDecode)
	}
	return ts, nil
}
