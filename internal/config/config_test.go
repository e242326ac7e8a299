package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
env: development
instruments:
  - BTC-USDT
  - ETH-USDT
event_log:
  path: /tmp/events.db
http_server:
  address: ":9090"
kafka:
  enabled: true
  brokers:
    - localhost:9092
  topic: venue.events
database:
  enabled: true
  host: db.internal
  port: 3307
  user: venue
  password: secret
  name: venuedb
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, []string{"BTC-USDT", "ETH-USDT"}, cfg.Instruments)
	assert.Equal(t, "/tmp/events.db", cfg.EventLog.Path)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "venue:secret@tcp(db.internal:3307)/venuedb?parseTime=true", cfg.DatabaseURL())
}

func TestLoadDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
instruments:
  - BTC-USDT
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "venue-events.db", cfg.EventLog.Path)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "snapshots", cfg.Snapshot.Dir)
}

func TestLoadMissingInstruments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("env: test\n"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}
