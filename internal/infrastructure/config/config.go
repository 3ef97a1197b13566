package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for wearsync.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Sync     SyncConfig     `yaml:"sync"`
	Capture  CaptureConfig  `yaml:"capture"`
	Journal  JournalConfig  `yaml:"journal"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies this device and the device it is paired with.
type DeviceConfig struct {
	// ID is this device's identifier (used for capture topics).
	ID string `yaml:"id"`

	// PairID names the sync namespace shared by both paired devices.
	// Payload topics are wearsync/{pair_id}/sensors/{category} and wearsync/{pair_id}/fall.
	PairID string `yaml:"pair_id"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	UrgentQoS int                 `yaml:"urgent_qos"`
	Retain    bool                `yaml:"retain"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// SyncConfig tunes the delivery pipeline.
type SyncConfig struct {
	// ActiveWindowMS is the minimum spacing between admitted samples of the
	// active category.
	ActiveWindowMS int `yaml:"active_window_ms"`

	// IdleWindowMS is the minimum spacing for every other category.
	IdleWindowMS int `yaml:"idle_window_ms"`

	// ConnectTimeoutMS bounds the wait for an in-flight handshake before a send.
	ConnectTimeoutMS int `yaml:"connect_timeout_ms"`

	// Workers is the number of background send workers.
	Workers int `yaml:"workers"`

	// QueueSize is the number of sends that may wait for a worker.
	// Sends beyond this are dropped, never blocked on.
	QueueSize int `yaml:"queue_size"`

	// ReconnectWhenDisconnected makes a fully disconnected channel wait for a
	// fresh handshake before sending. Off by default: only a handshake that
	// is already in progress is waited for.
	ReconnectWhenDisconnected bool `yaml:"reconnect_when_disconnected"`

	// InitialFilter is the active category at startup.
	InitialFilter int32 `yaml:"initial_filter"`

	// DrainTimeoutMS bounds the shutdown drain of queued sends.
	DrainTimeoutMS int `yaml:"drain_timeout_ms"`
}

// CaptureConfig controls the local ingress of raw samples.
type CaptureConfig struct {
	Enabled bool `yaml:"enabled"`
	QoS     int  `yaml:"qos"`
}

// JournalConfig contains the SQLite delivery journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// RetentionDays prunes older outcomes at startup; 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: WEARSYNC_SECTION_KEY
// For example: WEARSYNC_MQTT_HOST, WEARSYNC_JOURNAL_PATH
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with the stock pipeline settings.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:     "wear-001",
			PairID: "pair-001",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "wearsync-wear-001",
			},
			QoS:       1,
			UrgentQoS: 0,
			Retain:    true,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Sync: SyncConfig{
			ActiveWindowMS:   100,
			IdleWindowMS:     3000,
			ConnectTimeoutMS: 15000,
			Workers:          4,
			QueueSize:        256,
			DrainTimeoutMS:   5000,
		},
		Capture: CaptureConfig{
			Enabled: true,
			QoS:     0,
		},
		Journal: JournalConfig{
			Enabled:       false,
			Path:          "./data/wearsync.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("WEARSYNC_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("WEARSYNC_PAIR_ID"); v != "" {
		cfg.Device.PairID = v
	}

	// MQTT
	if v := os.Getenv("WEARSYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("WEARSYNC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("WEARSYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("WEARSYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("WEARSYNC_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}

	if v := os.Getenv("WEARSYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("WEARSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	}
	if c.Device.PairID == "" {
		errs = append(errs, "device.pair_id is required")
	}
	if strings.ContainsAny(c.Device.ID+c.Device.PairID, "+#/") {
		errs = append(errs, "device.id and device.pair_id must not contain MQTT topic characters (+ # /)")
	}

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.UrgentQoS < 0 || c.MQTT.UrgentQoS > 2 {
		errs = append(errs, "mqtt.urgent_qos must be 0, 1, or 2")
	}

	if c.Sync.ActiveWindowMS <= 0 {
		errs = append(errs, "sync.active_window_ms must be positive")
	}
	if c.Sync.IdleWindowMS <= 0 {
		errs = append(errs, "sync.idle_window_ms must be positive")
	}
	if c.Sync.DrainTimeoutMS <= 0 {
		errs = append(errs, "sync.drain_timeout_ms must be positive")
	}
	if c.Sync.ConnectTimeoutMS <= 0 {
		errs = append(errs, "sync.connect_timeout_ms must be positive")
	}
	if c.Sync.Workers < 1 {
		errs = append(errs, "sync.workers must be at least 1")
	}
	if c.Sync.QueueSize < 1 {
		errs = append(errs, "sync.queue_size must be at least 1")
	}

	if c.Capture.QoS < 0 || c.Capture.QoS > 2 {
		errs = append(errs, "capture.qos must be 0, 1, or 2")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.Journal.RetentionDays < 0 {
		errs = append(errs, "journal.retention_days must not be negative")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ActiveWindow returns the admission window of the active category.
func (s SyncConfig) ActiveWindow() time.Duration {
	return time.Duration(s.ActiveWindowMS) * time.Millisecond
}

// IdleWindow returns the admission window of all other categories.
func (s SyncConfig) IdleWindow() time.Duration {
	return time.Duration(s.IdleWindowMS) * time.Millisecond
}

// ConnectTimeout returns the handshake wait as a Duration.
func (s SyncConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutMS) * time.Millisecond
}

// DrainTimeout returns the shutdown drain bound as a Duration.
func (s SyncConfig) DrainTimeout() time.Duration {
	return time.Duration(s.DrainTimeoutMS) * time.Millisecond
}
