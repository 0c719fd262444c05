package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BojanKomazec/IpSec/common"
)

func TestLoadFrom_CreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, common.FileExists(path), "defaults should be written")

	again, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadFrom_Values(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `phonebook_scope: all-users
dial_timeout: 90s
default_entry: Office
default_server: vpn.example.com
history:
  enabled: false
metrics_addr: 127.0.0.1:9310
mqtt:
  broker: tcp://localhost:1883
  qos: 1
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, common.ScopeAllUsers, cfg.PhonebookScope)
	assert.Equal(t, 90*time.Second, cfg.DialTimeout)
	assert.Equal(t, common.HangUpTimeout, cfg.HangUpTimeout, "unset fields keep defaults")
	assert.Equal(t, "Office", cfg.DefaultEntry)
	assert.False(t, cfg.History.Enabled)
	assert.Equal(t, "127.0.0.1:9310", cfg.MetricsAddr)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTT.Broker)
	assert.Equal(t, byte(1), cfg.MQTT.QoS)
	assert.Equal(t, common.DefaultMQTTPrefix, cfg.MQTT.TopicPrefix)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFrom_InvalidValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `phonebook_scope: machine
dial_timeout: -5s
stun_server: ""
mqtt:
  qos: 7
logging:
  level: chatty
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	def := DefaultConfig()
	assert.Equal(t, def.PhonebookScope, cfg.PhonebookScope)
	assert.Equal(t, def.DialTimeout, cfg.DialTimeout)
	assert.Equal(t, def.STUNServer, cfg.STUNServer)
	assert.Equal(t, byte(0), cfg.MQTT.QoS)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFrom_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\n"), 0600))

	_, err := LoadFrom(path)
	assert.ErrorIs(t, err, common.ErrConfigLoad)
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.DefaultUsername = "alice"
	cfg.HealthCheckHosts = []string{"10.0.0.1:443"}
	require.NoError(t, cfg.SaveTo(path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestHistoryPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.History.Path = "/tmp/custom.db"
	p, err := cfg.HistoryPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.db", p)
}
