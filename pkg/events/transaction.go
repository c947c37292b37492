package events

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Result is the outcome reported by the ATM for a transaction
type Result string

const (
	// Approved marks a transaction the partner bank accepted
	Approved Result = "approved"
	// Denied marks a transaction the partner bank refused
	Denied Result = "denied"
)

// Transaction represents an ATM transaction carried as the detail of an event
type Transaction struct {
	// TransactionID is the identifier assigned by the ATM
	TransactionID string `json:"transactionId"`

	// Action is what the customer did (e.g., withdrawal)
	Action string `json:"action"`

	// Location is the ATM location code, prefixed by state (e.g., NY-NYC-001)
	Location string `json:"location"`

	// Amount of the transaction
	Amount float64 `json:"amount"`

	// Result is approved or denied
	Result Result `json:"result"`

	CardPresent    bool    `json:"cardPresent"`
	PartnerBank    string  `json:"partnerBank,omitempty"`
	RemainingFunds float64 `json:"remainingFunds"`
}

// IsApproved reports whether the transaction was approved
func (t Transaction) IsApproved() bool {
	return t.Result == Approved
}

// TransactionFromFields builds a transaction from a decoded detail object.
// Numbers sent as strings and identifiers sent as numbers are converted;
// values that cannot be converted are left at their zero value.
func TransactionFromFields(fields map[string]any) Transaction {
	tx := Transaction{
		TransactionID: FieldText(fields["transactionId"]),
		Action:        FieldText(fields["action"]),
		Location:      FieldText(fields["location"]),
		Result:        Result(FieldText(fields["result"])),
		PartnerBank:   FieldText(fields["partnerBank"]),
	}
	tx.Amount, _ = FieldNumber(fields["amount"])
	tx.RemainingFunds, _ = FieldNumber(fields["remainingFunds"])
	switch v := fields["cardPresent"].(type) {
	case bool:
		tx.CardPresent = v
	case string:
		tx.CardPresent, _ = strconv.ParseBool(v)
	}
	return tx
}

// FieldText renders a decoded JSON value as text. Missing values are empty.
func FieldText(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	default:
		return fmt.Sprint(v)
	}
}

// FieldNumber reads a decoded JSON value as a number, accepting numeric strings
func FieldNumber(v any) (float64, bool) {
	switch v := v.(type) {
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	default:
		return 0, false
	}
}
