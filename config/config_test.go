package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadBrokerConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
service:
  id: broker-1
`)
	cfg, err := LoadBrokerConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "broker-1", cfg.Service.ID)
	assert.Equal(t, "tcp://*:5555", cfg.ClientAddr)
	assert.Equal(t, "tcp://*:5556", cfg.WorkerControlAddr)
	assert.Equal(t, "tcp://*:5557", cfg.WorkerResponseAddr)
	assert.Equal(t, 5, cfg.Control.SecondsBeforeContactCheck)
}

func TestLoadBrokerConfigOverrides(t *testing.T) {
	path := writeConfigFile(t, `
service:
  id: broker-1
client_addr: tcp://*:9000
control:
  seconds_before_contact_check: 10
  seconds_before_unregister: 20
redis:
  addr: localhost:6379
  db: 2
`)
	cfg, err := LoadBrokerConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "tcp://*:9000", cfg.ClientAddr)
	assert.Equal(t, 10*1000000000, int(cfg.Control.TProbe()))
	assert.Equal(t, 20*1000000000, int(cfg.Control.TDisconnect()))
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
}

func TestLoadWorkerConfigDefaults(t *testing.T) {
	path := writeConfigFile(t, `
service:
  id: worker-1
`)
	cfg, err := LoadWorkerConfig(path)
	assert.NoError(t, err)
	assert.Equal(t, "worker-1", cfg.Service.ID)
	assert.Equal(t, "tcp://127.0.0.1:5556", cfg.ControlAddr)
	assert.Equal(t, "tcp://127.0.0.1:5557", cfg.ResponseAddr)
}

func TestLoadBrokerConfigMissingFile(t *testing.T) {
	_, err := LoadBrokerConfig("/nonexistent/broker.yaml")
	assert.Error(t, err)
}
