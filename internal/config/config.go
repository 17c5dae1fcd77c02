package config

import "time"

// SessionConfig is the root configuration for a desksync instance.
type SessionConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Stream      StreamConfig      `yaml:"stream"`
	API         APIConfig         `yaml:"api"`
	Poller      PollerConfig      `yaml:"poller"`
	Throttle    ThrottleConfig    `yaml:"throttle"`
	Database    DatabaseConfig    `yaml:"database"`
	Preferences PreferencesConfig `yaml:"preferences"`
	Health      HealthConfig      `yaml:"health"`
}

// InstanceConfig identifies this session.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Desk string `yaml:"desk"`
}

// StreamConfig holds the push stream connection settings.
type StreamConfig struct {
	URL                string        `yaml:"url"`
	APIKey             string        `yaml:"api_key"`
	HeartbeatInterval  time.Duration `yaml:"heartbeat_interval"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	MaxAttempts        int           `yaml:"max_attempts"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"`
}

// APIConfig holds the REST snapshot API settings.
type APIConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

// PollerConfig holds fallback polling settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	GracePeriod time.Duration `yaml:"grace_period"`
	Timeout     time.Duration `yaml:"timeout"`
	Forced      bool          `yaml:"forced"`
}

// ThrottleConfig holds per-entity update coalescing settings.
type ThrottleConfig struct {
	Window time.Duration `yaml:"window"`
}

// DatabaseConfig holds the optional notification log database. When
// Enabled is false the session keeps its notification log in memory.
type DatabaseConfig struct {
	Enabled  bool         `yaml:"enabled"`
	Postgres DBConfig     `yaml:"postgres"`
	Writer   WriterConfig `yaml:"writer"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds notification log batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// PreferencesConfig locates the persisted notification preferences.
type PreferencesConfig struct {
	Path string `yaml:"path"`
}

// HealthConfig holds the health endpoint settings.
type HealthConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
