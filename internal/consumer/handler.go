package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/pedro-hbl/atm-lambda-otel/internal/logging"
	"github.com/pedro-hbl/atm-lambda-otel/internal/metrics"
	"github.com/pedro-hbl/atm-lambda-otel/internal/telemetry"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/ledger"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/routing"
)

// Summary is returned to the invoking platform
type Summary struct {
	Processed        bool   `json:"processed"`
	TransactionCount int    `json:"transactionCount"`
	Type             string `json:"type"`
}

// Ledger stores the transactions a target received
type Ledger interface {
	Record(ctx context.Context, category, eventID string, tx events.Transaction) (*ledger.Entry, error)
}

// HandlerFunc is the shape of the three Lambda targets
type HandlerFunc func(ctx context.Context, raw json.RawMessage) (Summary, error)

type target struct {
	spanName string
	banner   string
}

var targets = map[routing.Category]target{
	routing.ApprovedTransactions:   {spanName: "atmConsumer.approvedTransactions", banner: "--- Approved transactions ---"},
	routing.NYTransactions:         {spanName: "atmConsumer.NYTransactions", banner: "--- NY location transactions ---"},
	routing.UnapprovedTransactions: {spanName: "atmConsumer.unapprovedTransactions", banner: "--- Unapproved transactions ---"},
}

// Handler serves the targets of the three bus rules
type Handler struct {
	tracer    trace.Tracer
	logger    *slog.Logger
	collector *metrics.Collector
	ledger    Ledger
}

// New creates a consumer handler. A nil ledger disables storage.
func New(tracer trace.Tracer, logger *slog.Logger, collector *metrics.Collector, l Ledger) *Handler {
	if collector == nil {
		collector = metrics.NewCollector(nil)
	}
	return &Handler{tracer: tracer, logger: logger, collector: collector, ledger: l}
}

// Approved handles deliveries of the approved transactions rule
func (h *Handler) Approved(ctx context.Context, raw json.RawMessage) (Summary, error) {
	return h.process(ctx, routing.ApprovedTransactions, raw)
}

// NYLocation handles deliveries of the NY location rule
func (h *Handler) NYLocation(ctx context.Context, raw json.RawMessage) (Summary, error) {
	return h.process(ctx, routing.NYTransactions, raw)
}

// Unapproved handles deliveries of the unapproved transactions rule
func (h *Handler) Unapproved(ctx context.Context, raw json.RawMessage) (Summary, error) {
	return h.process(ctx, routing.UnapprovedTransactions, raw)
}

// HandlerFor returns the target serving category
func (h *Handler) HandlerFor(category routing.Category) (HandlerFunc, error) {
	switch category {
	case routing.ApprovedTransactions:
		return h.Approved, nil
	case routing.NYTransactions:
		return h.NYLocation, nil
	case routing.UnapprovedTransactions:
		return h.Unapproved, nil
	default:
		return nil, fmt.Errorf("no handler for category %q", category)
	}
}

func (h *Handler) process(ctx context.Context, category routing.Category, raw json.RawMessage) (Summary, error) {
	t := targets[category]
	return telemetry.WithSpan(ctx, h.tracer, t.spanName, nil, func(ctx context.Context) (Summary, error) {
		env, err := events.ParseEnvelope(raw)
		if err != nil {
			return Summary{}, err
		}
		trace.SpanFromContext(ctx).SetAttributes(telemetry.EnvelopeAttributes(env)...)

		h.logger.InfoContext(ctx, t.banner, "event", logging.Pretty(raw))

		var summary Summary
		err = h.collector.MeasureOperation(metrics.ConsumeOperation, string(category), func() (int64, error) {
			count, err := env.RecordCount()
			if err != nil {
				return 0, err
			}
			if err := h.store(ctx, category, env); err != nil {
				return int64(count), err
			}
			summary = Summary{Processed: true, TransactionCount: count, Type: string(category)}
			return int64(count), nil
		})
		if err != nil {
			return Summary{}, err
		}
		return summary, nil
	})
}

func (h *Handler) store(ctx context.Context, category routing.Category, env *events.Envelope) error {
	if h.ledger == nil {
		return nil
	}
	if !env.Batched() {
		return h.record(ctx, category, env)
	}

	docs, err := env.Transactions()
	if err != nil {
		return err
	}
	for i, doc := range docs {
		rec, err := events.ParseEnvelope(doc)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if err := h.record(ctx, category, rec); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func (h *Handler) record(ctx context.Context, category routing.Category, env *events.Envelope) error {
	tx, ok := env.Transaction()
	if !ok {
		h.logger.WarnContext(ctx, "no transaction detail, not recorded", "eventId", string(env.ID))
		return nil
	}
	entry, err := h.ledger.Record(ctx, string(category), string(env.ID), tx)
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "transaction recorded", "recordId", entry.RecordID, "transactionId", entry.TransactionID)
	return nil
}
