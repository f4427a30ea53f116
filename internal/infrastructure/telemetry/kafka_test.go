package telemetry

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestKafkaHeaderTraceRoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), spanCtx)

	var headers []kafka.Header
	InjectKafkaHeaders(ctx, &headers)
	if len(headers) == 0 {
		t.Fatal("expected trace headers to be injected")
	}

	extracted := trace.SpanContextFromContext(ExtractKafkaHeaders(context.Background(), headers))
	if !extracted.IsValid() {
		t.Fatal("extracted span context is invalid")
	}
	if extracted.TraceID() != traceID {
		t.Errorf("trace id lost: %s", extracted.TraceID())
	}
}

func TestExtractWithoutHeadersYieldsNoSpan(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	ctx := ExtractKafkaHeaders(context.Background(), nil)
	if trace.SpanContextFromContext(ctx).IsValid() {
		t.Error("expected no span context without headers")
	}
}
