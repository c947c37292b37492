package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a prepared PutEvents request entry
type Entry struct {
	Source       string    `json:"Source"`
	DetailType   string    `json:"DetailType"`
	EventBusName string    `json:"EventBusName"`
	Detail       string    `json:"Detail"`
	Time         time.Time `json:"Time"`
}

// NewEntry encodes a transaction as the detail of a new entry
func NewEntry(bus string, tx Transaction, at time.Time) (Entry, error) {
	detail, err := json.Marshal(tx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to encode transaction %s: %w", tx.TransactionID, err)
	}
	if bus == "" {
		bus = DefaultEventBus
	}
	return Entry{
		Source:       Source,
		DetailType:   DetailType,
		EventBusName: bus,
		Detail:       string(detail),
		Time:         at,
	}, nil
}

// Transaction decodes the entry detail
func (e Entry) Transaction() (Transaction, error) {
	var tx Transaction
	if err := json.Unmarshal([]byte(e.Detail), &tx); err != nil {
		return Transaction{}, fmt.Errorf("failed to decode entry detail: %w", err)
	}
	return tx, nil
}

// SampleTransactions is the static batch published by the producer
var SampleTransactions = []Transaction{
	{
		TransactionID:  "123456",
		Action:         "withdrawal",
		Location:       "MA-BOS-01",
		Amount:         300,
		Result:         Approved,
		CardPresent:    true,
		PartnerBank:    "Example Bank",
		RemainingFunds: 722.34,
	},
	{
		TransactionID:  "123457",
		Action:         "withdrawal",
		Location:       "NY-NYC-001",
		Amount:         20,
		Result:         Approved,
		CardPresent:    true,
		PartnerBank:    "Example Bank",
		RemainingFunds: 212.52,
	},
	{
		TransactionID:  "123458",
		Action:         "withdrawal",
		Location:       "NY-NYC-002",
		Amount:         60,
		Result:         Denied,
		CardPresent:    true,
		RemainingFunds: 5.77,
	},
}

// SampleEntries prepares the static batch for the given bus
func SampleEntries(bus string, now time.Time) []Entry {
	entries := make([]Entry, 0, len(SampleTransactions))
	for _, tx := range SampleTransactions {
		// Transaction only holds plain fields, encoding cannot fail
		entry, _ := NewEntry(bus, tx, now)
		entries = append(entries, entry)
	}
	return entries
}
