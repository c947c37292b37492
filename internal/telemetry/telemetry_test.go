package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pedro-hbl/atm-lambda-otel/internal/config"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
)

func newRecorder() (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	sr := tracetest.NewSpanRecorder()
	return sr, sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
}

func attrMap(attrs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(attrs))
	for _, kv := range attrs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestWithSpanSuccess(t *testing.T) {
	sr, tp := newRecorder()

	got, err := WithSpan(context.Background(), tp.Tracer("test"), "ok-op",
		[]attribute.KeyValue{attribute.String("k", "v")},
		func(ctx context.Context) (int, error) { return 42, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 42, got)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "ok-op", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Empty(t, spans[0].Events())
	assert.Equal(t, "v", attrMap(spans[0].Attributes())["k"].AsString())
}

func TestWithSpanErrorIsRecordedAndReturnedUnchanged(t *testing.T) {
	sr, tp := newRecorder()
	boom := errors.New("boom")

	_, err := WithSpan(context.Background(), tp.Tracer("test"), "bad-op", nil,
		func(ctx context.Context) (string, error) { return "", boom },
	)
	require.Same(t, boom, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestWithSpanPanicIsRecorded(t *testing.T) {
	sr, tp := newRecorder()

	assert.Panics(t, func() {
		_, _ = WithSpan(context.Background(), tp.Tracer("test"), "panic-op", nil,
			func(ctx context.Context) (int, error) { panic("kaboom") },
		)
	})

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestWithSpanPassesChildContext(t *testing.T) {
	sr, tp := newRecorder()
	tracer := tp.Tracer("test")

	_, err := WithSpan(context.Background(), tracer, "parent", nil, func(ctx context.Context) (struct{}, error) {
		_, child := tracer.Start(ctx, "child")
		child.End()
		return struct{}{}, nil
	})
	require.NoError(t, err)

	spans := sr.Ended()
	require.Len(t, spans, 2)
	child, parent := spans[0], spans[1]
	assert.Equal(t, parent.SpanContext().SpanID(), child.Parent().SpanID())
}

func TestEnvelopeAttributes(t *testing.T) {
	now := time.Date(2021, 1, 1, 10, 0, 0, 0, time.UTC)
	env := events.SampleEnvelope(events.Approved, now)

	attrs := attrMap(EnvelopeAttributes(env))
	assert.Equal(t, "custom.myATMapp", attrs["eventbridge.source"].AsString())
	assert.Equal(t, "transaction", attrs["eventbridge.detail_type"].AsString())
	assert.Equal(t, string(env.ID), attrs["eventbridge.id"].AsString())
	assert.Equal(t, "2021-01-01T10:00:00Z", attrs["eventbridge.time"].AsString())
	assert.Equal(t, "123456", attrs["transaction.id"].AsString())
	assert.Equal(t, "withdrawal", attrs["transaction.action"].AsString())
	assert.Equal(t, "NY-NYC-001", attrs["transaction.location"].AsString())
	assert.Equal(t, 300.0, attrs["transaction.amount"].AsFloat64())
	assert.Equal(t, "approved", attrs["transaction.result"].AsString())
}

func TestEnvelopeAttributesSkipsMissingFields(t *testing.T) {
	assert.Empty(t, EnvelopeAttributes(&events.Envelope{Source: "x"}))
	assert.Empty(t, EnvelopeAttributes(&events.Envelope{Source: "x", Detail: json.RawMessage(`"not an object"`)}))

	attrs := attrMap(EnvelopeAttributes(&events.Envelope{Detail: json.RawMessage(`{"action":"deposit"}`)}))
	assert.Contains(t, attrs, attribute.Key("transaction.action"))
	assert.NotContains(t, attrs, attribute.Key("transaction.amount"))
	assert.NotContains(t, attrs, attribute.Key("transaction.id"))
	assert.NotContains(t, attrs, attribute.Key("eventbridge.time"))
}

func TestEnvelopeAttributesToleratesFieldTypes(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		key   attribute.Key
		value attribute.Value
	}{
		{
			name:  "numeric transaction id",
			raw:   `{"detail":{"transactionId":123456}}`,
			key:   "transaction.id",
			value: attribute.StringValue("123456"),
		},
		{
			name:  "amount sent as string",
			raw:   `{"detail":{"amount":"300"}}`,
			key:   "transaction.amount",
			value: attribute.Float64Value(300),
		},
		{
			name:  "amount that is not a number",
			raw:   `{"detail":{"amount":"three hundred"}}`,
			key:   "transaction.amount",
			value: attribute.StringValue("three hundred"),
		},
		{
			name:  "time that is not RFC3339",
			raw:   `{"time":"2021-01-01 00:00","detail":{}}`,
			key:   "eventbridge.time",
			value: attribute.StringValue("2021-01-01 00:00"),
		},
		{
			name:  "numeric source",
			raw:   `{"source":7,"detail":{}}`,
			key:   "eventbridge.source",
			value: attribute.StringValue("7"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := events.ParseEnvelope([]byte(tt.raw))
			require.NoError(t, err)

			attrs := attrMap(EnvelopeAttributes(env))
			require.Contains(t, attrs, tt.key)
			assert.Equal(t, tt.value, attrs[tt.key])
		})
	}
}

func TestEntryAttributes(t *testing.T) {
	entries := events.SampleEntries("default", time.Now())
	tx, err := entries[2].Transaction()
	require.NoError(t, err)

	attrs := attrMap(EntryAttributes(2, entries[2], tx))
	assert.Equal(t, "custom.myATMapp", attrs["event.2.source"].AsString())
	assert.Equal(t, "transaction", attrs["event.2.type"].AsString())
	assert.Equal(t, "denied", attrs["event.2.result"].AsString())
	assert.Equal(t, "123458", attrs["event.2.transactionId"].AsString())
	assert.Equal(t, 60.0, attrs["event.2.amount"].AsFloat64())
}

func TestSetupWithoutAPIKeyDoesNotExport(t *testing.T) {
	cfg := config.Config{ServiceName: "atm-producer", ServiceVersion: "1.0.0", FunctionName: "atm-producer-local"}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	p, err := Setup(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	assert.False(t, p.Exporting())
}

func TestSetupWithAPIKeyExports(t *testing.T) {
	cfg := config.Config{
		HoneycombAPIKey:   "key",
		HoneycombDataset:  "atm-events",
		HoneycombEndpoint: "http://127.0.0.1:4318/v1/traces",
		ServiceName:       "atm-producer",
		ServiceVersion:    "1.0.0",
		FunctionName:      "atm-producer-local",
	}
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	p, err := Setup(context.Background(), cfg, logger)
	require.NoError(t, err)
	assert.True(t, p.Exporting())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)
}

func TestHeadersAndResource(t *testing.T) {
	cfg := config.Config{HoneycombAPIKey: "key", HoneycombDataset: "atm-events", ServiceName: "atm-consumer", ServiceVersion: "1.0.0", FunctionName: "fn"}

	assert.Equal(t, map[string]string{HeaderTeam: "key", HeaderDataset: "atm-events"}, Headers(cfg))

	attrs := attrMap(Resource(cfg).Attributes())
	assert.Equal(t, "atm-consumer", attrs["service.name"].AsString())
	assert.Equal(t, "1.0.0", attrs["service.version"].AsString())
	assert.Equal(t, "fn", attrs["aws.lambda.function_name"].AsString())
}
