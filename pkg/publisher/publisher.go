package publisher

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/pedro-hbl/atm-lambda-otel/internal/telemetry"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
)

// MaxBatchSize is the PutEvents entry limit
const MaxBatchSize = 10

var (
	// ErrEmptyBatch is returned when there is nothing to publish
	ErrEmptyBatch = errors.New("no entries to publish")
	// ErrBatchTooLarge is returned when a batch exceeds MaxBatchSize
	ErrBatchTooLarge = fmt.Errorf("batch exceeds %d entries", MaxBatchSize)
)

// PutEventsAPI is the part of the EventBridge client used by the publisher
type PutEventsAPI interface {
	PutEvents(ctx context.Context, params *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// EntryResult is the outcome of one entry
type EntryResult struct {
	EventID      string `json:"EventId,omitempty"`
	ErrorCode    string `json:"ErrorCode,omitempty"`
	ErrorMessage string `json:"ErrorMessage,omitempty"`
}

// Result is the PutEvents response, in request order
type Result struct {
	Entries          []EntryResult `json:"Entries"`
	FailedEntryCount int           `json:"FailedEntryCount"`
}

// Publisher sends prepared entries to the event bus in a single call
type Publisher struct {
	client PutEventsAPI
	tracer trace.Tracer
}

// New creates a publisher around an EventBridge client
func New(client PutEventsAPI, tracer trace.Tracer) *Publisher {
	return &Publisher{client: client, tracer: tracer}
}

// NewFromConfig builds the EventBridge client, pointing it at endpoint when set
func NewFromConfig(awsCfg aws.Config, endpoint string, tracer trace.Tracer) *Publisher {
	client := eventbridge.NewFromConfig(awsCfg, func(o *eventbridge.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, tracer)
}

// Publish sends the whole batch in one PutEvents call. Entries the bus could
// not accept are reported in the result, not as an error.
func (p *Publisher) Publish(ctx context.Context, entries []events.Entry) (*Result, error) {
	return telemetry.WithSpan(ctx, p.tracer, "eventbridge.putEvents", nil, func(ctx context.Context) (*Result, error) {
		if len(entries) == 0 {
			return nil, ErrEmptyBatch
		}
		if len(entries) > MaxBatchSize {
			return nil, fmt.Errorf("%w: got %d", ErrBatchTooLarge, len(entries))
		}

		input := &eventbridge.PutEventsInput{Entries: requestEntries(entries)}
		out, err := p.client.PutEvents(ctx, input)
		if err != nil {
			return nil, err
		}

		result := &Result{
			Entries:          make([]EntryResult, 0, len(out.Entries)),
			FailedEntryCount: int(out.FailedEntryCount),
		}
		for _, e := range out.Entries {
			result.Entries = append(result.Entries, EntryResult{
				EventID:      aws.ToString(e.EventId),
				ErrorCode:    aws.ToString(e.ErrorCode),
				ErrorMessage: aws.ToString(e.ErrorMessage),
			})
		}

		trace.SpanFromContext(ctx).SetAttributes(
			attribute.Int("eventbridge.entries_count", len(result.Entries)),
			attribute.Int("eventbridge.failed_entry_count", result.FailedEntryCount),
		)
		return result, nil
	})
}

func requestEntries(entries []events.Entry) []types.PutEventsRequestEntry {
	out := make([]types.PutEventsRequestEntry, 0, len(entries))
	for _, e := range entries {
		entry := types.PutEventsRequestEntry{
			Source:       aws.String(e.Source),
			DetailType:   aws.String(e.DetailType),
			Detail:       aws.String(e.Detail),
			EventBusName: aws.String(e.EventBusName),
		}
		if !e.Time.IsZero() {
			entry.Time = aws.Time(e.Time)
		}
		out = append(out, entry)
	}
	return out
}
