package core

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestOTelTracerRecordsServiceSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	jsonTracer := NewJSONTracer(nil)
	svc := newTestService(t, WithTracer(MultiTracer{NewOTelTracer(tp), nil, jsonTracer}))
	ctx := WithRequestID(context.Background(), "req-7")
	mustCreateStation(t, svc, "1509 Culver St", 3)
	if _, err := svc.PhoneAlert(ctx, 9); err == nil {
		t.Fatal("expected not found")
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected two spans, got %d", len(spans))
	}
	if spans[0].Name() != "Service.create_station_assignment" || spans[0].Status().Code == codes.Error {
		t.Fatalf("unexpected first span %s %+v", spans[0].Name(), spans[0].Status())
	}
	failed := spans[1]
	if failed.Name() != "Service.phone_alert" || failed.Status().Code != codes.Error {
		t.Fatalf("unexpected failed span %s %+v", failed.Name(), failed.Status())
	}
	found := false
	for _, kv := range failed.Attributes() {
		if string(kv.Key) == "request.id" && kv.Value.AsString() == "req-7" {
			found = true
		}
	}
	if !found {
		t.Fatalf("request id attribute missing: %+v", failed.Attributes())
	}
	if len(jsonTracer.Entries()) != 2 {
		t.Fatalf("json tracer should see the same spans, got %d", len(jsonTracer.Entries()))
	}
}

func TestMultiSpanEndsInReverseOrder(t *testing.T) {
	var order []string
	m := multiSpan{recordingSpan{"a", &order}, recordingSpan{"b", &order}}
	m.End(errors.New("x"))
	if len(order) != 2 || order[0] != "b" || order[1] != "a" {
		t.Fatalf("order = %v", order)
	}
}

type recordingSpan struct {
	name  string
	order *[]string
}

func (r recordingSpan) End(error) { *r.order = append(*r.order, r.name) }
