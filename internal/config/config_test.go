package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range keys {
		unsetEnvWithCleanup(t, key)
	}

	cfg, err := Load(t.TempDir(), "atm-consumer")
	require.NoError(t, err)

	assert.Equal(t, "atm-events", cfg.HoneycombDataset)
	assert.Equal(t, "https://api.honeycomb.io/v1/traces", cfg.HoneycombEndpoint)
	assert.Equal(t, "atm-consumer", cfg.ServiceName)
	assert.Equal(t, "1.0.0", cfg.ServiceVersion)
	assert.Equal(t, "atm-consumer-local", cfg.FunctionName)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "default", cfg.EventBusName)
	assert.False(t, cfg.LedgerEnabled())
	assert.False(t, cfg.MetricsEnabled())
	assert.ErrorIs(t, cfg.RequireAPIKey(), ErrMissingAPIKey)
}

func TestLoadFromEnvironment(t *testing.T) {
	setEnvWithCleanup(t, "HONEYCOMB_API_KEY", " secret ")
	setEnvWithCleanup(t, "HONEYCOMB_DATASET", "atm-test")
	setEnvWithCleanup(t, "AWS_LAMBDA_FUNCTION_NAME", "atmProducer")
	setEnvWithCleanup(t, "TRANSACTIONS_TABLE", "AtmTransactions")
	setEnvWithCleanup(t, "TIMESTREAM_DATABASE", "atm")
	setEnvWithCleanup(t, "TIMESTREAM_TABLE", "invocations")

	cfg, err := Load(t.TempDir(), "atm-producer")
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.HoneycombAPIKey)
	assert.Equal(t, "atm-test", cfg.HoneycombDataset)
	assert.Equal(t, "atmProducer", cfg.FunctionName)
	assert.NoError(t, cfg.RequireAPIKey())
	assert.True(t, cfg.LedgerEnabled())
	assert.True(t, cfg.MetricsEnabled())
}

func TestLoadReadsDotEnv(t *testing.T) {
	unsetEnvWithCleanup(t, "HONEYCOMB_API_KEY")
	unsetEnvWithCleanup(t, "EVENT_BUS_NAME")

	dir := t.TempDir()
	content := "HONEYCOMB_API_KEY=from-file\nEVENT_BUS_NAME=atm-bus\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600))

	cfg, err := Load(dir, "atm-producer")
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.HoneycombAPIKey)
	assert.Equal(t, "atm-bus", cfg.EventBusName)
}

func setEnvWithCleanup(t *testing.T, key string, value string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("failed to set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}

func unsetEnvWithCleanup(t *testing.T, key string) {
	t.Helper()
	prev, hadPrev := os.LookupEnv(key)
	if err := os.Unsetenv(key); err != nil {
		t.Fatalf("failed to unset env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if hadPrev {
			_ = os.Setenv(key, prev)
			return
		}
		_ = os.Unsetenv(key)
	})
}
