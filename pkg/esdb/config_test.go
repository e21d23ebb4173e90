package esdb

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{Address: "esdb:2113", PersistentBufferSize: 64}.WithDefaults()
	assert.Equal(t, "esdb:2113", cfg.Address)
	assert.EqualValues(t, 64, cfg.PersistentBufferSize)
	assert.Equal(t, DefaultConfig.ControlQueueSize, cfg.ControlQueueSize)
	assert.Equal(t, DefaultConfig.ServerVersion, cfg.ServerVersion)
	assert.NotNil(t, cfg.Logger)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "esdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("address: db:2113\nserverVersion: 20.10.2\ntracing: true\n"), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "db:2113", cfg.Address)
	assert.True(t, cfg.Tracing)
	assert.Equal(t, DefaultConfig.UnaryMaxRetries, cfg.UnaryMaxRetries)
	assert.True(t, cfg.legacySettings())

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestWireSettings(t *testing.T) {
	settings := DefaultPersistentSubscriptionSettings()
	settings.ConsumerStrategy = Pinned

	legacy := NewClient(nil, Config{ServerVersion: "20.10.0"}).wireSettings(&settings)
	require.NotNil(t, legacy.MessageTimeoutTicks)
	assert.EqualValues(t, 300000000, *legacy.MessageTimeoutTicks)
	assert.Nil(t, legacy.MessageTimeoutMs)
	assert.Empty(t, legacy.ConsumerStrategy)

	current := NewClient(nil, Config{ServerVersion: "v23.10.1"}).wireSettings(&settings)
	require.NotNil(t, current.MessageTimeoutMs)
	assert.EqualValues(t, 30*time.Second/time.Millisecond, *current.MessageTimeoutMs)
	require.NotNil(t, current.CheckpointAfterMs)
	assert.EqualValues(t, 2000, *current.CheckpointAfterMs)
	assert.Nil(t, current.MessageTimeoutTicks)
	assert.Equal(t, "Pinned", current.ConsumerStrategy)

	// Both encodings carry the strategy enum.
	assert.Equal(t, legacy.NamedConsumerStrategy, current.NamedConsumerStrategy)
}
