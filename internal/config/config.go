// Package config loads function settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned by RequireAPIKey when no Honeycomb key is set
var ErrMissingAPIKey = errors.New("HONEYCOMB_API_KEY environment variable is required")

// Config holds the settings shared by the producer and the consumer
type Config struct {
	HoneycombAPIKey   string `mapstructure:"HONEYCOMB_API_KEY"`
	HoneycombDataset  string `mapstructure:"HONEYCOMB_DATASET"`
	HoneycombEndpoint string `mapstructure:"HONEYCOMB_ENDPOINT"`

	ServiceName    string `mapstructure:"SERVICE_NAME"`
	ServiceVersion string `mapstructure:"SERVICE_VERSION"`
	FunctionName   string `mapstructure:"AWS_LAMBDA_FUNCTION_NAME"`

	Region              string `mapstructure:"AWS_REGION"`
	EventBusName        string `mapstructure:"EVENT_BUS_NAME"`
	EventBridgeEndpoint string `mapstructure:"EVENTBRIDGE_ENDPOINT"`

	ConsumerCase string `mapstructure:"CONSUMER_CASE"`

	// Optional sinks, disabled when empty
	TransactionsTable  string `mapstructure:"TRANSACTIONS_TABLE"`
	DynamoDBEndpoint   string `mapstructure:"DYNAMODB_ENDPOINT"`
	TimestreamDatabase string `mapstructure:"TIMESTREAM_DATABASE"`
	TimestreamTable    string `mapstructure:"TIMESTREAM_TABLE"`
}

var keys = []string{
	"HONEYCOMB_API_KEY",
	"HONEYCOMB_DATASET",
	"HONEYCOMB_ENDPOINT",
	"SERVICE_NAME",
	"SERVICE_VERSION",
	"AWS_LAMBDA_FUNCTION_NAME",
	"AWS_REGION",
	"EVENT_BUS_NAME",
	"EVENTBRIDGE_ENDPOINT",
	"CONSUMER_CASE",
	"TRANSACTIONS_TABLE",
	"DYNAMODB_ENDPOINT",
	"TIMESTREAM_DATABASE",
	"TIMESTREAM_TABLE",
}

// Load reads the configuration for serviceName. Values come from the
// environment, falling back to a .env file in path when one exists.
func Load(path, serviceName string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HONEYCOMB_DATASET", "atm-events")
	v.SetDefault("HONEYCOMB_ENDPOINT", "https://api.honeycomb.io/v1/traces")
	v.SetDefault("SERVICE_NAME", serviceName)
	v.SetDefault("SERVICE_VERSION", "1.0.0")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("EVENT_BUS_NAME", "default")
	v.SetDefault("CONSUMER_CASE", "approved")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("failed to read config file; using environment values", "component", "config", "error", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.HoneycombAPIKey = strings.TrimSpace(cfg.HoneycombAPIKey)
	if strings.TrimSpace(cfg.FunctionName) == "" {
		cfg.FunctionName = cfg.ServiceName + "-local"
	}

	return cfg, nil
}

// RequireAPIKey fails when traces cannot be exported
func (c Config) RequireAPIKey() error {
	if c.HoneycombAPIKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// LedgerEnabled reports whether routed transactions are stored in DynamoDB
func (c Config) LedgerEnabled() bool {
	return c.TransactionsTable != ""
}

// MetricsEnabled reports whether invocation metrics are written to Timestream
func (c Config) MetricsEnabled() bool {
	return c.TimestreamDatabase != "" && c.TimestreamTable != ""
}
