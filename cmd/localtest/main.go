// Command localtest runs the producer or one consumer target on this machine
// with tracing enabled, emulating the Lambda environment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/pedro-hbl/atm-lambda-otel/internal/bootstrap"
	"github.com/pedro-hbl/atm-lambda-otel/internal/consumer"
	"github.com/pedro-hbl/atm-lambda-otel/internal/producer"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/events"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/publisher"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/routing"
)

// Command line flags
var (
	function = flag.String("function", "producer", "Function to run: producer or consumer")
	timeout  = flag.Duration("timeout", 30*time.Second, "Emulated Lambda timeout")
)

func main() {
	flag.Parse()

	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime)

	if err := godotenv.Load(); err != nil {
		log.Println("dotenv not loaded, make sure HONEYCOMB_API_KEY is set in the environment")
	}

	if os.Getenv("HONEYCOMB_API_KEY") == "" {
		log.Println("Error: HONEYCOMB_API_KEY environment variable is required")
		log.Println("Please set it in your environment or create a .env file with this variable")
		os.Exit(1)
	}

	switch *function {
	case "producer":
		os.Exit(runProducer())
	case "consumer":
		caseName := flag.Arg(0)
		if caseName == "" {
			caseName = "case1"
		}
		os.Exit(runConsumer(caseName))
	default:
		log.Printf("Unknown function: %s (valid options: producer, consumer)", *function)
		os.Exit(1)
	}
}

func runProducer() int {
	rt, err := bootstrap.New(context.Background(), "atm-producer")
	if err != nil {
		log.Printf("Error initializing producer: %v", err)
		return 1
	}
	defer shutdown(rt)

	log.Println("Starting local test with OpenTelemetry instrumentation...")
	log.Printf("Sending traces to Honeycomb dataset: %s", rt.Config.HoneycombDataset)

	tracer := rt.Telemetry.Tracer("atm-producer-tracer")
	pub := publisher.NewFromConfig(rt.AWS, rt.Config.EventBridgeEndpoint, tracer)
	h := producer.New(pub, tracer, rt.Logger, rt.Collector, rt.Config.EventBusName, rt.Config.FunctionName)

	ctx, cancel := invocationContext(rt.Config.FunctionName)
	defer cancel()

	result, err := h.Handle(ctx, json.RawMessage(`{}`))
	if err != nil {
		log.Printf("Lambda execution failed: %v", err)
		return 1
	}

	log.Println("Lambda executed successfully")
	renderPublishResult(os.Stdout, result)
	return 0
}

func runConsumer(caseName string) int {
	category, err := routing.ParseCategory(caseName)
	if err != nil {
		log.Println(err)
		return 1
	}

	rt, err := bootstrap.New(context.Background(), "atm-consumer")
	if err != nil {
		log.Printf("Error initializing consumer: %v", err)
		return 1
	}
	defer shutdown(rt)

	log.Println("Starting local test with OpenTelemetry instrumentation...")
	log.Printf("Testing %s handler", category)
	log.Printf("Sending traces to Honeycomb dataset: %s", rt.Config.HoneycombDataset)

	result := events.Approved
	if category == routing.UnapprovedTransactions {
		result = events.Denied
	}
	raw, err := json.Marshal(events.SampleEnvelope(result, time.Now()))
	if err != nil {
		log.Printf("Error encoding sample event: %v", err)
		return 1
	}

	h := consumer.New(rt.Telemetry.Tracer("atm-consumer-tracer"), rt.Logger, rt.Collector, nil)
	fn, err := h.HandlerFor(category)
	if err != nil {
		log.Println(err)
		return 1
	}

	ctx, cancel := invocationContext(rt.Config.FunctionName)
	defer cancel()

	summary, err := fn(ctx, raw)
	if err != nil {
		log.Printf("Lambda execution failed: %v", err)
		return 1
	}

	log.Println("Lambda executed successfully")
	renderSummary(os.Stdout, summary)
	return 0
}

// invocationContext emulates the context the Lambda runtime passes to a handler
func invocationContext(functionName string) (context.Context, context.CancelFunc) {
	lc := &lambdacontext.LambdaContext{
		AwsRequestID:       uuid.New().String(),
		InvokedFunctionArn: "arn:aws:lambda:us-east-1:123456789012:function:" + functionName,
	}
	ctx := lambdacontext.NewContext(context.Background(), lc)
	return context.WithTimeout(ctx, *timeout)
}

func shutdown(rt *bootstrap.Runtime) {
	log.Println("Waiting for trace export")
	if err := rt.Shutdown(); err != nil {
		log.Printf("Error shutting down SDK: %v", err)
		return
	}
	log.Println("Exiting after trace export")
}

func renderPublishResult(w io.Writer, result *publisher.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"#", "Event ID", "Error Code", "Error Message"})
	for i, e := range result.Entries {
		table.Append([]string{strconv.Itoa(i), e.EventID, e.ErrorCode, e.ErrorMessage})
	}
	table.SetFooter([]string{"", "", "Failed", strconv.Itoa(result.FailedEntryCount)})
	table.Render()
}

func renderSummary(w io.Writer, summary consumer.Summary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Processed", "Transaction Count", "Type"})
	table.Append([]string{
		strconv.FormatBool(summary.Processed),
		strconv.Itoa(summary.TransactionCount),
		summary.Type,
	})
	table.Render()
	fmt.Fprintln(w)
}
