// Package bootstrap wires the pieces every function needs at cold start:
// configuration, logging, tracing, AWS clients and the metrics collector.
package bootstrap

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"

	"github.com/pedro-hbl/atm-lambda-otel/internal/config"
	"github.com/pedro-hbl/atm-lambda-otel/internal/logging"
	"github.com/pedro-hbl/atm-lambda-otel/internal/metrics"
	"github.com/pedro-hbl/atm-lambda-otel/internal/telemetry"
	"github.com/pedro-hbl/atm-lambda-otel/pkg/awsclient"
)

// shutdownTimeout bounds the final span export
const shutdownTimeout = 5 * time.Second

// Runtime holds the initialized dependencies of a function
type Runtime struct {
	Config    config.Config
	Logger    *slog.Logger
	Telemetry *telemetry.Provider
	AWS       aws.Config
	Collector *metrics.Collector
}

// New initializes the runtime of serviceName
func New(ctx context.Context, serviceName string) (*Runtime, error) {
	cfg, err := config.Load(".", serviceName)
	if err != nil {
		return nil, err
	}

	logger := logging.New(os.Stdout, cfg.ServiceName, cfg.FunctionName)
	slog.SetDefault(logger)

	tp, err := telemetry.Setup(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	awsCfg, err := awsclient.Load(ctx, cfg.Region, tp.TracerProvider())
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}

	var sink metrics.Sink
	if cfg.MetricsEnabled() {
		sink = metrics.NewTimestreamSinkFromConfig(awsCfg, cfg.TimestreamDatabase, cfg.TimestreamTable, cfg.FunctionName)
		logger.Info("invocation metrics enabled", "database", cfg.TimestreamDatabase, "table", cfg.TimestreamTable)
	}

	return &Runtime{
		Config:    cfg,
		Logger:    logger,
		Telemetry: tp,
		AWS:       awsCfg,
		Collector: metrics.NewCollector(sink),
	}, nil
}

// FlushMetrics hands the metrics of the last invocation to the sink. Failures
// are logged: metrics never fail an invocation.
func (r *Runtime) FlushMetrics(ctx context.Context) {
	if err := r.Collector.Flush(ctx); err != nil {
		r.Logger.WarnContext(ctx, "failed to flush invocation metrics", "error", err)
	}
}

// Shutdown exports remaining spans and stops the tracer provider
func (r *Runtime) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	r.FlushMetrics(ctx)
	return r.Telemetry.Shutdown(ctx)
}

// ShutdownOnSIGTERM shuts the runtime down when the platform stops the
// execution environment
func (r *Runtime) ShutdownOnSIGTERM() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM)

	go func() {
		<-sigs
		if err := r.Shutdown(); err != nil {
			r.Logger.Error("Error shutting down SDK", "error", err)
		} else {
			r.Logger.Info("SDK shut down successfully")
		}
		os.Exit(0)
	}()
}
