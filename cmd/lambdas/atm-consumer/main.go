package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"

	"github.com/pedro-hbl/atm-lambda-otel/internal/bootstrap"
	"github.com/pedro-hbl/atm-lambda-otel/internal/consumer"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/ledger"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/routing"
)

// The same binary backs the three rule targets; CONSUMER_CASE selects which
// one this function serves (case1/approved, case2/ny, case3/unapproved).
var (
	rt     *bootstrap.Runtime
	target consumer.HandlerFunc
)

func init() {
	var err error
	rt, err = bootstrap.New(context.Background(), "atm-consumer")
	if err != nil {
		fmt.Printf("Error initializing consumer: %v\n", err)
		os.Exit(1)
	}

	cfg := rt.Config
	category, err := routing.ParseCategory(cfg.ConsumerCase)
	if err != nil {
		rt.Logger.Error("invalid CONSUMER_CASE", "error", err)
		os.Exit(1)
	}

	var store consumer.Ledger
	if cfg.LedgerEnabled() {
		store = ledger.NewFromConfig(rt.AWS, cfg.TransactionsTable, cfg.DynamoDBEndpoint)
		rt.Logger.Info("transaction ledger enabled", "table", cfg.TransactionsTable)
	}

	h := consumer.New(rt.Telemetry.Tracer("atm-consumer-tracer"), rt.Logger, rt.Collector, store)
	target, err = h.HandlerFor(category)
	if err != nil {
		rt.Logger.Error("no handler", "error", err)
		os.Exit(1)
	}
	rt.Logger.Info("consumer ready", "category", category)
}

func handleRequest(ctx context.Context, event json.RawMessage) (consumer.Summary, error) {
	defer rt.FlushMetrics(ctx)
	return target(ctx, event)
}

func main() {
	rt.ShutdownOnSIGTERM()
	lambda.Start(otellambda.InstrumentHandler(handleRequest,
		otellambda.WithTracerProvider(rt.Telemetry.TracerProvider()),
		otellambda.WithFlusher(rt.Telemetry),
	))
}
