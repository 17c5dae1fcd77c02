package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "desksync.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const minimalConfig = `
instance:
  id: desk-test-01
stream:
  url: wss://stream.test.local/v1/updates
api:
  base_url: https://api.test.local
`

func TestLoadAndValidate_Minimal(t *testing.T) {
	path := writeConfig(t, minimalConfig)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}

	if cfg.Instance.ID != "desk-test-01" {
		t.Errorf("instance id = %q", cfg.Instance.ID)
	}
	if cfg.Stream.HeartbeatInterval != DefaultHeartbeatInterval {
		t.Errorf("heartbeat = %v, want default", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Stream.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("max attempts = %d, want default", cfg.Stream.MaxAttempts)
	}
	if cfg.Poller.Interval != DefaultPollInterval {
		t.Errorf("poll interval = %v, want default", cfg.Poller.Interval)
	}
	if cfg.Throttle.Window != DefaultThrottleWindow {
		t.Errorf("throttle window = %v, want default", cfg.Throttle.Window)
	}
	if cfg.Health.Port != DefaultHealthPort {
		t.Errorf("health port = %d, want default", cfg.Health.Port)
	}
	if cfg.Preferences.Path != DefaultPreferencesPath {
		t.Errorf("preferences path = %q, want default", cfg.Preferences.Path)
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("TEST_STREAM_KEY", "sekrit")
	path := writeConfig(t, `
instance:
  id: desk-test-01
stream:
  url: wss://stream.test.local/v1/updates
  api_key: ${TEST_STREAM_KEY}
api:
  base_url: https://api.test.local
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}
	if cfg.Stream.APIKey != "sekrit" {
		t.Errorf("api key = %q, want expanded env value", cfg.Stream.APIKey)
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
instance:
  id: desk-test-01
stream:
  url: wss://stream.test.local/v1/updates
  heartbeat_interval: 5s
  reconnect_base_delay: 500ms
  reconnect_max_delay: 10s
  max_attempts: 4
api:
  base_url: https://api.test.local
poller:
  interval: 30s
throttle:
  window: 250ms
`)

	cfg, err := LoadAndValidate(path)
	if err != nil {
		t.Fatalf("LoadAndValidate: %v", err)
	}
	if cfg.Stream.HeartbeatInterval != 5*time.Second {
		t.Errorf("heartbeat = %v", cfg.Stream.HeartbeatInterval)
	}
	if cfg.Stream.ReconnectBaseDelay != 500*time.Millisecond {
		t.Errorf("base delay = %v", cfg.Stream.ReconnectBaseDelay)
	}
	if cfg.Stream.MaxAttempts != 4 {
		t.Errorf("max attempts = %d", cfg.Stream.MaxAttempts)
	}
	if cfg.Poller.Interval != 30*time.Second {
		t.Errorf("poll interval = %v", cfg.Poller.Interval)
	}
	if cfg.Throttle.Window != 250*time.Millisecond {
		t.Errorf("throttle window = %v", cfg.Throttle.Window)
	}
}

func TestValidate_Errors(t *testing.T) {
	valid := func() *SessionConfig {
		cfg := &SessionConfig{}
		cfg.Instance.ID = "desk-test-01"
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*SessionConfig)
	}{
		{"missing instance id", func(c *SessionConfig) { c.Instance.ID = "" }},
		{"bad stream url", func(c *SessionConfig) { c.Stream.URL = "https://not-a-ws" }},
		{"max delay below base", func(c *SessionConfig) {
			c.Stream.ReconnectBaseDelay = 10 * time.Second
			c.Stream.ReconnectMaxDelay = time.Second
		}},
		{"zero max attempts", func(c *SessionConfig) { c.Stream.MaxAttempts = -1 }},
		{"bad api url", func(c *SessionConfig) { c.API.BaseURL = "ftp://api" }},
		{"negative throttle window", func(c *SessionConfig) { c.Throttle.Window = -time.Second }},
		{"bad health port", func(c *SessionConfig) { c.Health.Port = 70000 }},
		{"db enabled without host", func(c *SessionConfig) {
			c.Database.Enabled = true
			c.Database.Postgres = DBConfig{Port: 5432, Name: "x", User: "u", Password: "p", MaxConns: 5}
			c.Database.Writer.BatchSize = 10
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted invalid config")
			}
		})
	}
}

func TestValidate_DatabaseEnabled(t *testing.T) {
	cfg := &SessionConfig{}
	cfg.Instance.ID = "desk-test-01"
	cfg.Database.Enabled = true
	cfg.Database.Postgres = DBConfig{
		Host:     "localhost",
		Name:     "desksync",
		User:     "desksync",
		Password: "pw",
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Database.Postgres.Port != DefaultDBPort {
		t.Errorf("db port = %d, want default", cfg.Database.Postgres.Port)
	}
	if cfg.Database.Writer.BatchSize != DefaultBatchSize {
		t.Errorf("batch size = %d, want default", cfg.Database.Writer.BatchSize)
	}
}

func TestLoad_FileMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
