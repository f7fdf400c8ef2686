package models

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 60*time.Second, config.Dispatch.OfferTTL)
	assert.Equal(t, 30*time.Second, config.Dispatch.ScanInterval)
	assert.Equal(t, 10, config.Dispatch.ScanBatchSize)
	assert.Equal(t, 5.0, config.Dispatch.InitialRadiusKm)
	assert.Equal(t, 20.0, config.Dispatch.MaxRadiusKm)
	assert.Equal(t, 4, config.Dispatch.MaxAttempts)
	assert.Equal(t, 1.2, config.Dispatch.OnTimeTolerance)
	assert.Equal(t, 15, config.Dispatch.DefaultETAMinutes)
	assert.Equal(t, 1.5, config.Pricing.PerKmRate)
	assert.Equal(t, 5.0, config.Pricing.MinimumFee)
	assert.Equal(t, 0.8, config.Pricing.PartnerShare)
	assert.Equal(t, "memory", config.Store.Driver)
	assert.Equal(t, []string{"localhost:9092"}, config.Kafka.Brokers)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "foodispatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dispatch:
  offer_ttl: 90s
  max_attempts: 6
kafka:
  brokers: "a:9092,b:9092"
store:
  driver: postgres
`), 0o600))
	t.Setenv("FOODISPATCH_PRICING_MINIMUM_FEE", "7.5")

	config, err := LoadConfig(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, config.Dispatch.OfferTTL)
	assert.Equal(t, 6, config.Dispatch.MaxAttempts)
	assert.Equal(t, 30*time.Second, config.Dispatch.ScanInterval)
	assert.Equal(t, []string{"a:9092", "b:9092"}, config.Kafka.Brokers)
	assert.Equal(t, "postgres", config.Store.Driver)
	assert.Equal(t, 7.5, config.Pricing.MinimumFee)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(viper.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
