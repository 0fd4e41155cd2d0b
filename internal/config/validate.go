package config

import (
	"fmt"
	"os"

	"github.com/zsiec/mediatime/pkg/mediatime"
)

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	// Redis is only dialled by the redis timeline store.
	if c.Timeline.Store == StoreRedis {
		if err := c.Redis.Validate(); err != nil {
			return fmt.Errorf("redis config: %w", err)
		}
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics config: %w", err)
	}

	if err := c.Timeline.Validate(); err != nil {
		return fmt.Errorf("timeline config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("ratelimit config: %w", err)
	}

	if c.Metrics.Enabled && c.Metrics.Port == c.Server.HTTPPort {
		return fmt.Errorf("metrics port %d conflicts with HTTP port", c.Metrics.Port)
	}

	return nil
}

func (s *ServerConfig) Validate() error {
	if s.HTTPPort < 1 || s.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", s.HTTPPort)
	}

	if (s.TLSCertFile == "") != (s.TLSKeyFile == "") {
		return fmt.Errorf("TLS certificate and key files must be set together")
	}

	if s.HTTP3Enabled() {
		if s.HTTP3Port < 1 || s.HTTP3Port > 65535 {
			return fmt.Errorf("invalid HTTP3 port: %d", s.HTTP3Port)
		}

		if _, err := os.Stat(s.TLSCertFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS certificate file not found: %s", s.TLSCertFile)
		}

		if _, err := os.Stat(s.TLSKeyFile); os.IsNotExist(err) {
			return fmt.Errorf("TLS key file not found: %s", s.TLSKeyFile)
		}

		if s.MaxIncomingStreams <= 0 {
			return fmt.Errorf("max_incoming_streams must be positive")
		}

		if s.MaxIncomingUniStreams <= 0 {
			return fmt.Errorf("max_incoming_uni_streams must be positive")
		}
	}

	if s.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive")
	}

	if s.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}

	return nil
}

func (r *RedisConfig) Validate() error {
	if len(r.Addresses) == 0 {
		return fmt.Errorf("at least one Redis address is required")
	}

	if r.DB < 0 {
		return fmt.Errorf("invalid Redis database number: %d", r.DB)
	}

	if r.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}

	if r.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}

	if r.MinIdleConns < 0 {
		return fmt.Errorf("min_idle_conns cannot be negative")
	}

	if r.MinIdleConns > r.PoolSize {
		return fmt.Errorf("min_idle_conns cannot be greater than pool_size")
	}

	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"panic": true,
		"fatal": true,
		"error": true,
		"warn":  true,
		"info":  true,
		"debug": true,
		"trace": true,
	}

	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s", l.Level)
	}

	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be 'json' or 'text'")
	}

	if l.Output != "stdout" && l.Output != "stderr" {
		if l.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive for file output")
		}
		if l.MaxBackups < 0 {
			return fmt.Errorf("max_backups cannot be negative")
		}
		if l.MaxAge < 0 {
			return fmt.Errorf("max_age cannot be negative")
		}
	}

	return nil
}

func (m *MetricsConfig) Validate() error {
	if m.Enabled {
		if m.Port < 1 || m.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", m.Port)
		}

		if m.Path == "" {
			return fmt.Errorf("metrics path cannot be empty")
		}
	}

	return nil
}

func (t *TimelineConfig) Validate() error {
	switch t.Store {
	case StoreMemory:
	case StoreRedis:
		if t.KeyPrefix == "" {
			return fmt.Errorf("key_prefix cannot be empty for the redis store")
		}
	default:
		return fmt.Errorf("store must be '%s' or '%s', got %q", StoreMemory, StoreRedis, t.Store)
	}

	if t.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative")
	}

	if t.DefaultScale == 0 || t.DefaultScale > mediatime.MaxScale {
		return fmt.Errorf("default_scale must be between 1 and %d", mediatime.MaxScale)
	}

	if _, err := mediatime.ParseRoundingMode(t.DefaultRounding); err != nil {
		return fmt.Errorf("default_rounding: %w", err)
	}

	if t.MaxBufferedRanges <= 0 {
		return fmt.Errorf("max_buffered_ranges must be positive")
	}

	return nil
}

func (r *RateLimitConfig) Validate() error {
	if !r.Enabled {
		return nil
	}

	if r.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive")
	}

	if r.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}

	return nil
}
