package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite"

	"github.com/pedro-hbl/atm-lambda-otel/internal/config"
	"github.com/pedro-hbl/atm-lambda-otel/internal/metrics"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/awsclient"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/ledger"
)

// Provisions the optional sinks: the DynamoDB ledger table (TRANSACTIONS_TABLE)
// and the Timestream metrics table (TIMESTREAM_DATABASE/TIMESTREAM_TABLE).
func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime)

	cfg, err := config.Load(".", "atm-setup")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	awsCfg, err := awsclient.Load(ctx, cfg.Region, nil)
	if err != nil {
		log.Fatalf("Unable to load SDK config: %v", err)
	}

	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"all"}
	}

	for _, target := range args {
		switch strings.ToLower(target) {
		case "all":
			setupLedger(ctx, awsCfg, cfg)
			setupTimestream(ctx, awsCfg, cfg)
		case "ledger", "dynamodb":
			setupLedger(ctx, awsCfg, cfg)
		case "timestream":
			setupTimestream(ctx, awsCfg, cfg)
		default:
			log.Fatalf("Unknown setup target: %s", target)
		}
	}
}

func setupLedger(ctx context.Context, awsCfg aws.Config, cfg config.Config) {
	if !cfg.LedgerEnabled() {
		log.Println("TRANSACTIONS_TABLE not set, skipping ledger table")
		return
	}

	log.Printf("Setting up DynamoDB table %s...", cfg.TransactionsTable)
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	})

	created, err := ledger.EnsureTable(ctx, client, cfg.TransactionsTable)
	if err != nil {
		log.Fatalf("Failed to set up ledger table: %v", err)
	}
	if created {
		log.Printf("Table %s created successfully", cfg.TransactionsTable)
	} else {
		log.Printf("Table %s already exists", cfg.TransactionsTable)
	}
}

func setupTimestream(ctx context.Context, awsCfg aws.Config, cfg config.Config) {
	if !cfg.MetricsEnabled() {
		log.Println("TIMESTREAM_DATABASE/TIMESTREAM_TABLE not set, skipping metrics table")
		return
	}

	log.Printf("Setting up Timestream database: %s, table: %s", cfg.TimestreamDatabase, cfg.TimestreamTable)
	client := timestreamwrite.NewFromConfig(awsCfg)
	if err := metrics.EnsureTimestreamTable(ctx, client, cfg.TimestreamDatabase, cfg.TimestreamTable); err != nil {
		log.Fatalf("Failed to set up Timestream: %v", err)
	}
	log.Println("Timestream setup completed successfully")
}
