package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultStreamURL          = "wss://stream.tradeops.internal/v1/updates"
	DefaultHeartbeatInterval  = 15 * time.Second
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultMaxAttempts        = 10
	DefaultWriteTimeout       = 10 * time.Second
	DefaultBufferSize         = 1024

	DefaultAPIBaseURL = "https://api.tradeops.internal"
	DefaultAPITimeout = 30 * time.Second
	DefaultMaxRetries = 3

	DefaultPollInterval = 15 * time.Second
	DefaultGracePeriod  = 5 * time.Second
	DefaultPollTimeout  = 10 * time.Second

	DefaultThrottleWindow = 1 * time.Second

	DefaultDBPort        = 5432
	DefaultDBSSLMode     = "prefer"
	DefaultMaxConns      = 10
	DefaultMinConns      = 2
	DefaultBatchSize     = 64
	DefaultFlushInterval = 2 * time.Second

	DefaultPreferencesPath = "preferences.yaml"

	DefaultHealthPort = 8086
	DefaultHealthPath = "/health"
)

func (c *SessionConfig) applyDefaults() {
	// Stream defaults
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultStreamURL
	}
	if c.Stream.HeartbeatInterval == 0 {
		c.Stream.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.MaxAttempts == 0 {
		c.Stream.MaxAttempts = DefaultMaxAttempts
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultBufferSize
	}

	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultAPIBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.GracePeriod == 0 {
		c.Poller.GracePeriod = DefaultGracePeriod
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Throttle defaults
	if c.Throttle.Window == 0 {
		c.Throttle.Window = DefaultThrottleWindow
	}

	// Database defaults
	if c.Database.Enabled {
		applyDBDefaults(&c.Database.Postgres)
		if c.Database.Writer.BatchSize == 0 {
			c.Database.Writer.BatchSize = DefaultBatchSize
		}
		if c.Database.Writer.FlushInterval == 0 {
			c.Database.Writer.FlushInterval = DefaultFlushInterval
		}
	}

	// Preferences defaults
	if c.Preferences.Path == "" {
		c.Preferences.Path = DefaultPreferencesPath
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
	if c.Health.Path == "" {
		c.Health.Path = DefaultHealthPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
