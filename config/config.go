// Package config loads the configuration consumed by the broker and
// worker binaries (§6): the three bind/connect addresses, the liveness
// timers, durable-store connection parameters, and optional key-material
// paths. Grounded on the teacher's (geoffjay/plantd) convention of a
// top-level config package read by viper, generalized from plantd's
// per-service YAML files to Nimbus's BrokerConfig/WorkerConfig.
package config

import (
	"fmt"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// ServiceConfig identifies the running service, mirroring core/config's
// surviving test file (ServiceConfig{ID}).
type ServiceConfig struct {
	ID string `mapstructure:"id"`
}

// LokiConfig points the logger at a Loki push endpoint with a fixed label
// set, mirroring core/config's surviving test file.
type LokiConfig struct {
	Address string            `mapstructure:"address"`
	Labels  map[string]string `mapstructure:"labels"`
}

// LogConfig configures the logrus formatter/level and optional Loki hook,
// mirroring core/config's surviving test file (LogConfig{Level,
// Formatter, Loki}).
type LogConfig struct {
	Level     string     `mapstructure:"level"`
	Formatter string     `mapstructure:"formatter"`
	Loki      LokiConfig `mapstructure:"loki"`
}

// RedisConfig carries the durable-store connection parameters when
// RedisStore is selected (§6 "optional durable-store connection
// parameters").
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ControlConfig carries the liveness timers named verbatim in §6:
// control.seconds_before_contact_check (T_probe) and
// control.seconds_before_unregister (T_disconnect). The alternative key
// control.seconds_before_disconnect is not read.
type ControlConfig struct {
	SecondsBeforeContactCheck int `mapstructure:"seconds_before_contact_check"`
	SecondsBeforeUnregister   int `mapstructure:"seconds_before_unregister"`
}

// TProbe returns the contact-check interval as a time.Duration.
func (c ControlConfig) TProbe() time.Duration {
	return time.Duration(c.SecondsBeforeContactCheck) * time.Second
}

// TDisconnect returns the post-probe grace period as a time.Duration.
func (c ControlConfig) TDisconnect() time.Duration {
	return time.Duration(c.SecondsBeforeUnregister) * time.Second
}

// BrokerConfig is everything the broker binary needs to bind its three
// sockets and wire a durable store (§6).
type BrokerConfig struct {
	Service ServiceConfig `mapstructure:"service"`
	Log     LogConfig     `mapstructure:"log"`
	Control ControlConfig `mapstructure:"control"`

	ClientAddr         string `mapstructure:"client_addr"`
	WorkerControlAddr  string `mapstructure:"worker_control_addr"`
	WorkerResponseAddr string `mapstructure:"worker_response_addr"`

	Redis  RedisConfig `mapstructure:"redis"`
	KeyDir string      `mapstructure:"key_dir"`
}

// WorkerConfig is everything a worker binary needs to connect to the
// broker's two worker-facing sockets (§6).
type WorkerConfig struct {
	Service ServiceConfig `mapstructure:"service"`
	Log     LogConfig     `mapstructure:"log"`
	Control ControlConfig `mapstructure:"control"`

	ControlAddr  string `mapstructure:"control_addr"`
	ResponseAddr string `mapstructure:"response_addr"`

	KeyDir string `mapstructure:"key_dir"`
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("nimbus")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("control.seconds_before_contact_check", 5)
	v.SetDefault("control.seconds_before_unregister", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.formatter", "text")
	return v
}

// LoadBrokerConfig reads a broker configuration file (YAML, TOML or JSON,
// per viper's auto-detection) with environment overrides, matching the
// teacher's convention of viper-backed service configuration.
func LoadBrokerConfig(path string) (*BrokerConfig, error) {
	v := newViper(path)
	v.SetDefault("client_addr", "tcp://*:5555")
	v.SetDefault("worker_control_addr", "tcp://*:5556")
	v.SetDefault("worker_response_addr", "tcp://*:5557")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read broker config %s: %w", path, err)
	}

	var cfg BrokerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal broker config: %w", err)
	}
	expanded, err := homedir.Expand(cfg.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("config: expand key_dir %q: %w", cfg.KeyDir, err)
	}
	cfg.KeyDir = expanded
	return &cfg, nil
}

// LoadWorkerConfig reads a worker configuration file the same way.
func LoadWorkerConfig(path string) (*WorkerConfig, error) {
	v := newViper(path)
	v.SetDefault("control_addr", "tcp://127.0.0.1:5556")
	v.SetDefault("response_addr", "tcp://127.0.0.1:5557")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read worker config %s: %w", path, err)
	}

	var cfg WorkerConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal worker config: %w", err)
	}
	expanded, err := homedir.Expand(cfg.KeyDir)
	if err != nil {
		return nil, fmt.Errorf("config: expand key_dir %q: %w", cfg.KeyDir, err)
	}
	cfg.KeyDir = expanded
	return &cfg, nil
}
