package telemetry

import (
	"context"
	"fmt"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
)

// WithSpan runs fn inside a new span carrying attrs. The span ends with an OK
// status when fn succeeds; otherwise the error is recorded, the status set to
// ERROR and the error returned unchanged. A panic is recorded the same way
// before it continues.
func WithSpan[T any](ctx context.Context, tracer trace.Tracer, name string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (result T, err error) {
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			perr := fmt.Errorf("panic: %v", r)
			span.SetStatus(codes.Error, perr.Error())
			span.RecordError(perr, trace.WithStackTrace(true))
			panic(r)
		}
	}()

	result, err = fn(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return result, err
	}

	span.SetStatus(codes.Ok, "")
	return result, nil
}

// EnvelopeAttributes copies the delivery metadata and the transaction fields
// that are set onto span attributes. Nothing is copied without a detail object.
// Detail values are copied whatever their JSON type: amounts as numbers when
// they can be read as one, everything else as text.
func EnvelopeAttributes(env *events.Envelope) []attribute.KeyValue {
	if env == nil {
		return nil
	}
	detail := env.DetailFields()
	if detail == nil {
		return nil
	}

	attrs := []attribute.KeyValue{
		attribute.String("eventbridge.source", string(env.Source)),
		attribute.String("eventbridge.detail_type", string(env.DetailType)),
		attribute.String("eventbridge.id", string(env.ID)),
	}
	if env.Time != "" {
		attrs = append(attrs, attribute.String("eventbridge.time", string(env.Time)))
	}

	for _, f := range []struct{ field, key string }{
		{"transactionId", "transaction.id"},
		{"action", "transaction.action"},
		{"location", "transaction.location"},
	} {
		if v := events.FieldText(detail[f.field]); v != "" {
			attrs = append(attrs, attribute.String(f.key, v))
		}
	}
	if v, ok := detail["amount"]; ok && v != nil {
		if amount, ok := events.FieldNumber(v); ok {
			attrs = append(attrs, attribute.Float64("transaction.amount", amount))
		} else {
			attrs = append(attrs, attribute.String("transaction.amount", events.FieldText(v)))
		}
	}
	if v := events.FieldText(detail["result"]); v != "" {
		attrs = append(attrs, attribute.String("transaction.result", v))
	}
	return attrs
}

// EntryAttributes describes the i-th entry of a PutEvents batch
func EntryAttributes(i int, entry events.Entry, tx events.Transaction) []attribute.KeyValue {
	prefix := "event." + strconv.Itoa(i) + "."
	return []attribute.KeyValue{
		attribute.String(prefix+"source", entry.Source),
		attribute.String(prefix+"type", entry.DetailType),
		attribute.String(prefix+"action", tx.Action),
		attribute.String(prefix+"location", tx.Location),
		attribute.Float64(prefix+"amount", tx.Amount),
		attribute.String(prefix+"result", string(tx.Result)),
		attribute.String(prefix+"transactionId", tx.TransactionID),
	}
}
