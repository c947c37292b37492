package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	// Source is the event source used by the ATM application
	Source = "custom.myATMapp"
	// DetailType is the detail type of every transaction event
	DetailType = "transaction"
	// DefaultEventBus is the account's default event bus
	DefaultEventBus = "default"
)

// ErrInvalidJSON is returned when a delivery is not a JSON document
var ErrInvalidJSON = errors.New("event is not valid JSON")

// Text is an envelope field kept as text whatever JSON type it was sent as.
// Strings are unquoted, null is empty and anything else keeps its JSON form.
type Text string

// UnmarshalJSON accepts any JSON value
func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*t = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	default:
		*t = Text(data)
	}
	return nil
}

// Envelope is the EventBridge delivery envelope received by the consumer.
// Apart from being valid JSON nothing about a delivery is enforced: Detail and
// Records stay raw and are only interpreted when read.
type Envelope struct {
	Version    Text            `json:"version,omitempty"`
	ID         Text            `json:"id,omitempty"`
	DetailType Text            `json:"detail-type,omitempty"`
	Source     Text            `json:"source,omitempty"`
	Account    Text            `json:"account,omitempty"`
	Time       Text            `json:"time,omitempty"`
	Region     Text            `json:"region,omitempty"`
	Resources  json.RawMessage `json:"resources,omitempty"`
	Detail     json.RawMessage `json:"detail,omitempty"`
	Records    json.RawMessage `json:"Records,omitempty"`
	Raw        json.RawMessage `json:"-"`
}

// ParseEnvelope decodes a raw delivery. Any JSON document is accepted; one
// that is not an object yields an envelope with only Raw set.
func ParseEnvelope(raw []byte) (*Envelope, error) {
	if !json.Valid(raw) {
		return nil, fmt.Errorf("failed to decode event envelope: %w", ErrInvalidJSON)
	}

	env := &Envelope{Raw: append(json.RawMessage(nil), raw...)}
	if !isJSON(raw, '{') {
		return env, nil
	}
	if err := json.Unmarshal(raw, env); err != nil {
		return nil, fmt.Errorf("failed to decode event envelope: %w", err)
	}
	return env, nil
}

// Batched reports whether the delivery carries a Records array
func (e *Envelope) Batched() bool {
	return isJSON(e.Records, '[')
}

// DetailFields returns the detail object, or nil when the delivery has no
// detail or the detail is not an object
func (e *Envelope) DetailFields() map[string]any {
	if !isJSON(e.Detail, '{') {
		return nil
	}
	var fields map[string]any
	if err := json.Unmarshal(e.Detail, &fields); err != nil {
		return nil
	}
	return fields
}

// Transaction reads the detail as a transaction. Fields of an unexpected type
// are converted where possible; ok is false when there is no detail object.
func (e *Envelope) Transaction() (tx Transaction, ok bool) {
	fields := e.DetailFields()
	if fields == nil {
		return Transaction{}, false
	}
	return TransactionFromFields(fields), true
}

// Transactions returns the records carried by the delivery. A batched delivery
// yields one document per record (an empty batch yields none); any other
// delivery is a single record, the envelope itself. A record with a string
// body is replaced by the body when the body is JSON.
func (e *Envelope) Transactions() ([]json.RawMessage, error) {
	if !e.Batched() {
		if len(e.Raw) > 0 {
			return []json.RawMessage{e.Raw}, nil
		}
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, fmt.Errorf("failed to encode envelope: %w", err)
		}
		return []json.RawMessage{raw}, nil
	}

	var records []json.RawMessage
	if err := json.Unmarshal(e.Records, &records); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	docs := make([]json.RawMessage, 0, len(records))
	for _, rec := range records {
		docs = append(docs, recordBody(rec))
	}
	return docs, nil
}

// RecordCount returns the number of records carried by the delivery
func (e *Envelope) RecordCount() (int, error) {
	docs, err := e.Transactions()
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func recordBody(rec json.RawMessage) json.RawMessage {
	if !isJSON(rec, '{') {
		return rec
	}
	var queued struct {
		Body *string `json:"body"`
	}
	if err := json.Unmarshal(rec, &queued); err != nil || queued.Body == nil {
		return rec
	}
	if body := []byte(*queued.Body); json.Valid(body) {
		return json.RawMessage(body)
	}
	return rec
}

func isJSON(data []byte, open byte) bool {
	data = bytes.TrimSpace(data)
	return len(data) > 0 && data[0] == open
}

// SampleEnvelope emulates a delivery of a single NY withdrawal with the given result
func SampleEnvelope(result Result, now time.Time) *Envelope {
	detail, _ := json.Marshal(Transaction{
		TransactionID:  "123456",
		Action:         "withdrawal",
		Location:       "NY-NYC-001",
		Amount:         300,
		Result:         result,
		CardPresent:    true,
		PartnerBank:    "Example Bank",
		RemainingFunds: 722.34,
	})
	return &Envelope{
		Version:    "0",
		ID:         "12345678-1234-1234-1234-123456789012",
		DetailType: DetailType,
		Source:     Source,
		Account:    "123456789012",
		Time:       Text(now.UTC().Format(time.RFC3339)),
		Region:     "us-east-1",
		Resources:  json.RawMessage(`[]`),
		Detail:     detail,
	}
}
