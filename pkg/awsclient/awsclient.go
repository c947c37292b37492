package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"go.opentelemetry.io/contrib/instrumentation/github.com/aws/aws-sdk-go-v2/otelaws"
	"go.opentelemetry.io/otel/trace"
)

// Load resolves credentials and region the default way and instruments every
// client built from the returned config, so each AWS call gets its own span.
// A nil provider uses the global one.
func Load(ctx context.Context, region string, tp trace.TracerProvider) (aws.Config, error) {
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("unable to load SDK config: %w", err)
	}

	var opts []otelaws.Option
	if tp != nil {
		opts = append(opts, otelaws.WithTracerProvider(tp))
	}
	otelaws.AppendMiddlewares(&awsCfg.APIOptions, opts...)

	return awsCfg, nil
}
