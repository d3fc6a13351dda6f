package telemetry

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
)

func TestInit_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "event-recorder"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("no-op shutdown returned %v", err)
	}
}

func TestNewProvider_TagsSpansWithService(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := NewProvider(exporter, Config{ServiceName: "event-recorder", ServiceVersion: "1.2.3"})

	_, span := tp.Tracer("test").Start(context.Background(), "Recorder.Record")
	span.End()

	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "Recorder.Record" {
		t.Errorf("span name = %q", spans[0].Name)
	}

	var found bool
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == semconv.ServiceNameKey && kv.Value.AsString() == "event-recorder" {
			found = true
		}
	}
	if !found {
		t.Error("span resource is missing service.name")
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}
