package config

import (
	"os"
	"path/filepath"
	"testing"
)

const validYAML = `
ingest:
  mqtt:
    brokers:
      - "tcp://localhost:1883"
    qos: 1
  http:
    bind: "0.0.0.0:8080"
pipeline:
  shards: 64
registry:
  unknown_device_policy: reject
subscribers:
  drop_policy: slow_drop
security:
  http_auth:
    jwt_secret: "0123456789abcdef0123456789abcdef"
`

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Ingest.MQTT.Brokers) != 1 {
		t.Errorf("expected one broker, got %d", len(cfg.Ingest.MQTT.Brokers))
	}
	if cfg.Pipeline.Shards != 64 {
		t.Errorf("expected shards=64, got %d", cfg.Pipeline.Shards)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate_RejectsNonPowerOfTwoShards(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ingest.MQTT.Brokers = []string{"tcp://localhost:1883"}
	cfg.Security.HTTPAuth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Pipeline.Shards = 100

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-power-of-two shard count")
	}
}

func TestValidate_RejectsShortJWTSecret(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ingest.MQTT.Brokers = []string{"tcp://localhost:1883"}
	cfg.Security.HTTPAuth.JWTSecret = "short"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short jwt secret")
	}
}

func TestValidate_RejectsUnknownDevicePolicy(t *testing.T) {
	cfg := defaultConfig()
	cfg.Ingest.MQTT.Brokers = []string{"tcp://localhost:1883"}
	cfg.Security.HTTPAuth.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Registry.UnknownDevicePolicy = "bogus"

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown device policy")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, validYAML)

	t.Setenv("SENSORGW_DATABASE_PATH", "/tmp/override.db")
	t.Setenv("SENSORGW_MQTT_BROKERS", "tcp://a:1883,tcp://b:1883")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("expected database path override, got %q", cfg.Database.Path)
	}
	if len(cfg.Ingest.MQTT.Brokers) != 2 {
		t.Errorf("expected 2 brokers from override, got %d", len(cfg.Ingest.MQTT.Brokers))
	}
}
