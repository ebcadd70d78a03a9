// Package config loads the gateway's configuration from YAML with
// environment variable overrides, following the same load order the
// teacher stack uses: defaults, then file, then environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the sensor gateway.
type Config struct {
	Ingest      IngestConfig      `yaml:"ingest"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Durable     DurableConfig     `yaml:"durable"`
	Subscribers SubscribersConfig `yaml:"subscribers"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Security    SecurityConfig    `yaml:"security"`
	Registry    RegistryConfig    `yaml:"registry"`
	Database    DatabaseConfig    `yaml:"database"`
	Logging     LoggingConfig     `yaml:"logging"`
	Shutdown    ShutdownConfig    `yaml:"shutdown"`
}

// IngestConfig groups the two ingest front-ends.
type IngestConfig struct {
	MQTT MQTTConfig `yaml:"mqtt"`
	HTTP HTTPConfig `yaml:"http"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Brokers   []string         `yaml:"brokers"`
	ClientID  string           `yaml:"client_id"`
	TopicRoot string           `yaml:"topic_root"`
	QoS       int              `yaml:"qos"`
	Username  string           `yaml:"username"`
	Password  string           `yaml:"password"`
	TLS       bool             `yaml:"tls"`
	Workers   int              `yaml:"workers"`
	Reconnect ReconnectConfig  `yaml:"reconnect"`
}

// ReconnectConfig bounds the exponential backoff used when the broker
// connection drops.
type ReconnectConfig struct {
	InitialDelaySeconds int `yaml:"initial_delay_seconds"`
	MaxDelaySeconds     int `yaml:"max_delay_seconds"`
}

// HTTPConfig contains the ingest HTTP listener settings.
type HTTPConfig struct {
	Bind             string `yaml:"bind"`
	MaxBatchSize     int    `yaml:"max_batch_size"`
	PerDeviceRateMin int    `yaml:"per_device_rate_per_minute"`
	PerIPRateMin     int    `yaml:"per_ip_rate_per_minute"`
}

// PipelineConfig configures the sharded ingestion pipeline.
type PipelineConfig struct {
	Shards      int `yaml:"shards"`
	DeviceQueue int `yaml:"device_queue"`
	SessionIdle int `yaml:"session_idle_seconds"`
}

// DurableConfig configures the durable sink adapter.
type DurableConfig struct {
	Driver           string `yaml:"driver"` // "sql", "lineprotocol", "composite", "noop"
	BatchSize        int    `yaml:"batch_size"`
	BatchAgeMS       int    `yaml:"batch_age_ms"`
	WABCapacity      int    `yaml:"wab_capacity"`
	RetryBackoffMin  int    `yaml:"retry_backoff_min_ms"`
	RetryBackoffMax  int    `yaml:"retry_backoff_max_ms"`
	LineProtocolURL  string `yaml:"line_protocol_url"`
}

// SubscribersConfig configures the WebSocket subscriber hub.
type SubscribersConfig struct {
	Bind                string `yaml:"bind"`
	Path                string `yaml:"path"`
	OutboxCapacity      int    `yaml:"outbox_capacity"`
	DropPolicy          string `yaml:"drop_policy"` // "slow_drop" | "disconnect"
	HeartbeatIntervalS  int    `yaml:"heartbeat_interval_seconds"`
	PongTimeoutS        int    `yaml:"pong_timeout_seconds"`
}

// AlertsConfig configures the alert engine.
type AlertsConfig struct {
	RulesPath           string `yaml:"rules_path"`
	HoldDownDefaultS    int    `yaml:"hold_down_default_seconds"`
	MaxReminderInterval int    `yaml:"max_reminder_interval_seconds"`
	SinkWebhookURL      string `yaml:"sink_webhook_url"`
}

// SecurityConfig contains authn settings for the HTTP ingest/admin surface.
type SecurityConfig struct {
	HTTPAuth HTTPAuthConfig `yaml:"http_auth"`
}

// HTTPAuthConfig contains bearer-token issuer settings.
type HTTPAuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	AdminTokenTTLM int    `yaml:"admin_token_ttl_minutes"`
}

// RegistryConfig configures Device Registry behavior.
type RegistryConfig struct {
	UnknownDevicePolicy string `yaml:"unknown_device_policy"` // reject|auto_provision|quarantine
	IdleEvictionMinutes int    `yaml:"idle_eviction_minutes"`
	Shards              int    `yaml:"shards"`
}

// DatabaseConfig contains SQLite database settings, reused verbatim from
// the teacher's database-layer config shape.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// ShutdownConfig controls the graceful drain deadline.
type ShutdownConfig struct {
	DrainDeadlineSeconds int `yaml:"drain_deadline_seconds"`
}

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// Order: hardcoded defaults, then YAML file, then environment variables
// (prefixed SENSORGW_).
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

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

func defaultConfig() *Config {
	return &Config{
		Ingest: IngestConfig{
			MQTT: MQTTConfig{
				ClientID:  "sensorgw",
				TopicRoot: "telemetry",
				QoS:       1,
				Workers:   8,
				Reconnect: ReconnectConfig{InitialDelaySeconds: 1, MaxDelaySeconds: 60},
			},
			HTTP: HTTPConfig{
				Bind:             "0.0.0.0:8080",
				MaxBatchSize:     500,
				PerDeviceRateMin: 120,
				PerIPRateMin:     1200,
			},
		},
		Pipeline: PipelineConfig{
			Shards:      64,
			DeviceQueue: 256,
			SessionIdle: 900,
		},
		Durable: DurableConfig{
			Driver:          "sql",
			BatchSize:       1000,
			BatchAgeMS:      500,
			WABCapacity:     1_000_000,
			RetryBackoffMin: 100,
			RetryBackoffMax: 30_000,
		},
		Subscribers: SubscribersConfig{
			Bind:               "0.0.0.0:8081",
			Path:               "/v1/stream",
			OutboxCapacity:     1024,
			DropPolicy:         "slow_drop",
			HeartbeatIntervalS: 15,
			PongTimeoutS:       30,
		},
		Alerts: AlertsConfig{
			HoldDownDefaultS:    60,
			MaxReminderInterval: 3600,
		},
		Registry: RegistryConfig{
			UnknownDevicePolicy: "reject",
			IdleEvictionMinutes: 1440,
			Shards:              32,
		},
		Database: DatabaseConfig{
			Path:        "./data/sensorgw.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Shutdown: ShutdownConfig{
			DrainDeadlineSeconds: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern SENSORGW_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SENSORGW_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SENSORGW_MQTT_BROKERS"); v != "" {
		cfg.Ingest.MQTT.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SENSORGW_MQTT_USERNAME"); v != "" {
		cfg.Ingest.MQTT.Username = v
	}
	if v := os.Getenv("SENSORGW_MQTT_PASSWORD"); v != "" {
		cfg.Ingest.MQTT.Password = v
	}
	if v := os.Getenv("SENSORGW_HTTP_BIND"); v != "" {
		cfg.Ingest.HTTP.Bind = v
	}
	if v := os.Getenv("SENSORGW_JWT_SECRET"); v != "" {
		cfg.Security.HTTPAuth.JWTSecret = v
	}
	if v := os.Getenv("SENSORGW_DURABLE_LINE_PROTOCOL_URL"); v != "" {
		cfg.Durable.LineProtocolURL = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if len(c.Ingest.MQTT.Brokers) == 0 {
		errs = append(errs, "ingest.mqtt.brokers must have at least one entry")
	}
	if c.Ingest.MQTT.QoS < 0 || c.Ingest.MQTT.QoS > 2 {
		errs = append(errs, "ingest.mqtt.qos must be 0, 1, or 2")
	}
	if c.Ingest.MQTT.QoS < 1 {
		errs = append(errs, "ingest.mqtt.qos must be at least 1 (at-least-once)")
	}
	if c.Pipeline.Shards <= 0 || c.Pipeline.Shards&(c.Pipeline.Shards-1) != 0 {
		errs = append(errs, "pipeline.shards must be a power of two")
	}
	if c.Registry.Shards <= 0 || c.Registry.Shards&(c.Registry.Shards-1) != 0 {
		errs = append(errs, "registry.shards must be a power of two")
	}
	switch c.Registry.UnknownDevicePolicy {
	case "reject", "auto_provision", "quarantine":
	default:
		errs = append(errs, "registry.unknown_device_policy must be reject, auto_provision, or quarantine")
	}
	switch c.Subscribers.DropPolicy {
	case "slow_drop", "disconnect":
	default:
		errs = append(errs, "subscribers.drop_policy must be slow_drop or disconnect")
	}
	if c.Security.HTTPAuth.JWTSecret == "" {
		errs = append(errs, "security.http_auth.jwt_secret is required (set SENSORGW_JWT_SECRET)")
	} else if len(c.Security.HTTPAuth.JWTSecret) < 32 {
		errs = append(errs, "security.http_auth.jwt_secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MaxClockSkew is the maximum allowed difference between a device's
// reported timestamp and server time before a frame is rejected.
func MaxClockSkew() time.Duration { return 24 * time.Hour }
