package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-lambda-go/otellambda"

	"github.com/pedro-hbl/atm-lambda-otel/internal/bootstrap"
	"github.com/pedro-hbl/atm-lambda-otel/internal/producer"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/publisher"
)

var (
	rt      *bootstrap.Runtime
	handler *producer.Handler
)

func init() {
	var err error
	rt, err = bootstrap.New(context.Background(), "atm-producer")
	if err != nil {
		fmt.Printf("Error initializing producer: %v\n", err)
		os.Exit(1)
	}

	cfg := rt.Config
	pub := publisher.NewFromConfig(rt.AWS, cfg.EventBridgeEndpoint, rt.Telemetry.Tracer("atm-producer-tracer"))
	handler = producer.New(
		pub,
		rt.Telemetry.Tracer("atm-producer-tracer"),
		rt.Logger,
		rt.Collector,
		cfg.EventBusName,
		cfg.FunctionName,
	)
}

func handleRequest(ctx context.Context, event json.RawMessage) (*publisher.Result, error) {
	defer rt.FlushMetrics(ctx)
	return handler.Handle(ctx, event)
}

func main() {
	rt.ShutdownOnSIGTERM()
	lambda.Start(otellambda.InstrumentHandler(handleRequest,
		otellambda.WithTracerProvider(rt.Telemetry.TracerProvider()),
		otellambda.WithFlusher(rt.Telemetry),
	))
}
