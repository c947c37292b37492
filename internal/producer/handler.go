package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pedro-hbl/atm-lambda-otel/internal/logging"
	"github.com/pedro-hbl/atm-lambda-otel/internal/metrics"
	"github.com/pedro-hbl/atm-lambda-otel/internal/telemetry"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/publisher"
)

// SpanName is the name of the span wrapping each invocation
const SpanName = "atmProducer.handler"

// Publisher sends a batch of entries to the bus
type Publisher interface {
	Publish(ctx context.Context, entries []events.Entry) (*publisher.Result, error)
}

// Handler publishes the transaction batch on every invocation
type Handler struct {
	publisher Publisher
	tracer    trace.Tracer
	logger    *slog.Logger
	collector *metrics.Collector
	bus       string
	function  string

	// Entries prepares the batch; the static sample batch by default
	Entries func(bus string, now time.Time) []events.Entry
}

// New creates a producer handler publishing to bus on behalf of function
func New(p Publisher, tracer trace.Tracer, logger *slog.Logger, collector *metrics.Collector, bus, function string) *Handler {
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	return &Handler{
		publisher: p,
		tracer:    tracer,
		logger:    logger,
		collector: collector,
		bus:       bus,
		function:  function,
		Entries:   events.SampleEntries,
	}
}

// Handle is the Lambda entry point. The incoming event is ignored: the batch
// is always the prepared one.
func (h *Handler) Handle(ctx context.Context, _ json.RawMessage) (*publisher.Result, error) {
	return telemetry.WithSpan(ctx, h.tracer, SpanName, lambdaAttributes(ctx, h.function), func(ctx context.Context) (*publisher.Result, error) {
		entries := h.Entries(h.bus, time.Now())

		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.Int("events.count", len(entries)))
		for i, entry := range entries {
			tx, err := entry.Transaction()
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			span.SetAttributes(telemetry.EntryAttributes(i, entry, tx)...)
		}

		h.logger.InfoContext(ctx, "--- Params ---", "params", logging.Pretty(map[string]any{"Entries": entries}))

		var result *publisher.Result
		err := h.collector.MeasureOperation(metrics.PublishOperation, "", func() (int64, error) {
			var err error
			result, err = h.publisher.Publish(ctx, entries)
			return int64(len(entries)), err
		})
		if err != nil {
			return nil, err
		}

		h.logger.InfoContext(ctx, "--- Response ---",
			"response", logging.Pretty(result),
			"failedEntryCount", result.FailedEntryCount,
		)
		return result, nil
	})
}

func lambdaAttributes(ctx context.Context, function string) []attribute.KeyValue {
	if lambdacontext.FunctionName != "" {
		function = lambdacontext.FunctionName
	}
	attrs := []attribute.KeyValue{attribute.String("lambda.name", function)}
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		attrs = append(attrs, attribute.String("lambda.request_id", lc.AwsRequestID))
	}
	return attrs
}
