package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
)

// PutItemAPI is the part of the DynamoDB client used by the ledger
type PutItemAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Entry is one routed transaction as stored in the table. The table is keyed
// by TransactionID (partition) and Category (sort) so the same transaction
// routed to two targets yields two items.
type Entry struct {
	TransactionID string    `dynamodbav:"TransactionID"`
	Category      string    `dynamodbav:"Category"`
	RecordID      string    `dynamodbav:"RecordID"`
	EventID       string    `dynamodbav:"EventID,omitempty"`
	ReceivedAt    time.Time `dynamodbav:"ReceivedAt"`

	Action         string  `dynamodbav:"Action"`
	Location       string  `dynamodbav:"Location"`
	Amount         float64 `dynamodbav:"Amount"`
	Result         string  `dynamodbav:"Result"`
	CardPresent    bool    `dynamodbav:"CardPresent"`
	PartnerBank    string  `dynamodbav:"PartnerBank,omitempty"`
	RemainingFunds float64 `dynamodbav:"RemainingFunds"`
}

// Ledger stores routed transactions in a DynamoDB table
type Ledger struct {
	client    PutItemAPI
	tableName string
	now       func() time.Time
}

// New creates a ledger writing to tableName
func New(client PutItemAPI, tableName string) *Ledger {
	return &Ledger{client: client, tableName: tableName, now: time.Now}
}

// NewFromConfig builds the DynamoDB client, pointing it at endpoint when set
// (e.g., for local DynamoDB)
func NewFromConfig(awsCfg aws.Config, tableName, endpoint string) *Ledger {
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return New(client, tableName)
}

// Record stores tx under category and returns the stored entry
func (l *Ledger) Record(ctx context.Context, category, eventID string, tx events.Transaction) (*Entry, error) {
	if tx.TransactionID == "" {
		return nil, errors.New("transaction id cannot be empty")
	}

	entry := &Entry{
		TransactionID:  tx.TransactionID,
		Category:       category,
		RecordID:       uuid.New().String(),
		EventID:        eventID,
		ReceivedAt:     l.now().UTC(),
		Action:         tx.Action,
		Location:       tx.Location,
		Amount:         tx.Amount,
		Result:         string(tx.Result),
		CardPresent:    tx.CardPresent,
		PartnerBank:    tx.PartnerBank,
		RemainingFunds: tx.RemainingFunds,
	}

	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(l.tableName),
		Item:      item,
	})
	if err != nil {
		return nil, fmt.Errorf("PutItem operation failed: %w", err)
	}

	return entry, nil
}
