package producer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/pedro-hbl/atm-lambda-otel/internal/metrics"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/publisher"
)

type fakePublisher struct {
	batches [][]events.Entry
	err     error
}

func (f *fakePublisher) Publish(ctx context.Context, entries []events.Entry) (*publisher.Result, error) {
	f.batches = append(f.batches, entries)
	if f.err != nil {
		return nil, f.err
	}
	result := &publisher.Result{}
	for range entries {
		result.Entries = append(result.Entries, publisher.EntryResult{EventID: "evt"})
	}
	return result, nil
}

func newHandler(p Publisher) (*Handler, *tracetest.SpanRecorder, *metrics.Collector) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	collector := metrics.NewCollector(nil)
	return New(p, tp.Tracer("test"), logger, collector, "default", "atmProducer-local"), sr, collector
}

func spanAttrs(s sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	m := map[attribute.Key]attribute.Value{}
	for _, kv := range s.Attributes() {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestHandlePublishesEveryPreparedEntry(t *testing.T) {
	pub := &fakePublisher{}
	h, sr, collector := newHandler(pub)

	ctx := lambdacontext.NewContext(context.Background(), &lambdacontext.LambdaContext{AwsRequestID: "12345-request"})
	result, err := h.Handle(ctx, nil)
	require.NoError(t, err)

	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], len(events.SampleTransactions))
	assert.Len(t, result.Entries, len(events.SampleTransactions))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, SpanName, spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "atmProducer-local", attrs["lambda.name"].AsString())
	assert.Equal(t, "12345-request", attrs["lambda.request_id"].AsString())
	assert.Equal(t, int64(3), attrs["events.count"].AsInt64())
	assert.Equal(t, "MA-BOS-01", attrs["event.0.location"].AsString())
	assert.Equal(t, "123457", attrs["event.1.transactionId"].AsString())
	assert.Equal(t, "denied", attrs["event.2.result"].AsString())

	assert.Equal(t, int64(3), collector.Summary()["totalItems"])
}

func TestHandleBatchSizeFollowsEntries(t *testing.T) {
	pub := &fakePublisher{}
	h, _, _ := newHandler(pub)
	h.Entries = func(bus string, now time.Time) []events.Entry {
		return events.SampleEntries(bus, now)[:1]
	}

	_, err := h.Handle(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, pub.batches, 1)
	assert.Len(t, pub.batches[0], 1)
}

func TestHandlePublishErrorMarksSpan(t *testing.T) {
	boom := errors.New("access denied")
	h, sr, collector := newHandler(&fakePublisher{err: boom})

	_, err := h.Handle(context.Background(), nil)
	require.Same(t, boom, err)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, int64(1), collector.Summary()["errorCount"])
}

func TestHandleInvalidDetailFails(t *testing.T) {
	pub := &fakePublisher{}
	h, sr, _ := newHandler(pub)
	h.Entries = func(bus string, now time.Time) []events.Entry {
		return []events.Entry{{Source: events.Source, DetailType: events.DetailType, Detail: "{"}}
	}

	_, err := h.Handle(context.Background(), nil)
	require.Error(t, err)
	assert.Empty(t, pub.batches)
	assert.Equal(t, codes.Error, sr.Ended()[0].Status().Code)
}
