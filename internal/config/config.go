package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Timeline  TimelineConfig  `mapstructure:"timeline"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type ServerConfig struct {
	// HTTP/1.1 listener, always on
	HTTPPort int `mapstructure:"http_port"`

	// HTTP/3 listener, started when both TLS files are set
	HTTP3Port   int    `mapstructure:"http3_port"`
	TLSCertFile string `mapstructure:"tls_cert_file"`
	TLSKeyFile  string `mapstructure:"tls_key_file"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// QUIC specific
	MaxIncomingStreams    int64         `mapstructure:"max_incoming_streams"`
	MaxIncomingUniStreams int64         `mapstructure:"max_incoming_uni_streams"`
	MaxIdleTimeout        time.Duration `mapstructure:"max_idle_timeout"`

	MaxBodyBytes   int64    `mapstructure:"max_body_bytes"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	DebugEndpoints bool     `mapstructure:"debug_endpoints"`
}

// HTTP3Enabled reports whether TLS material for the HTTP/3 listener is configured.
func (s *ServerConfig) HTTP3Enabled() bool {
	return s.TLSCertFile != "" && s.TLSKeyFile != ""
}

type RedisConfig struct {
	Addresses    []string      `mapstructure:"addresses"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	MaxRetries   int           `mapstructure:"max_retries"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`   // json or text
	Output     string `mapstructure:"output"`   // stdout, stderr, or file path
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// Timeline store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type TimelineConfig struct {
	Store           string        `mapstructure:"store"` // memory or redis
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"` // memory store only
	KeyPrefix       string        `mapstructure:"key_prefix"`       // redis store only

	DefaultScale      uint32 `mapstructure:"default_scale"`
	DefaultRounding   string `mapstructure:"default_rounding"`
	MaxBufferedRanges int    `mapstructure:"max_buffered_ranges"`
}

type RateLimitConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Load reads configPath, applies MEDIATIME_ environment overrides and
// validates the result. An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("MEDIATIME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.http3_port", 8443)
	v.SetDefault("server.tls_cert_file", "")
	v.SetDefault("server.tls_key_file", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.max_incoming_streams", 1000)
	v.SetDefault("server.max_incoming_uni_streams", 100)
	v.SetDefault("server.max_idle_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.debug_endpoints", false)

	// Redis defaults
	v.SetDefault("redis.addresses", []string{"localhost:6379"})
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.dial_timeout", "5s")
	v.SetDefault("redis.read_timeout", "3s")
	v.SetDefault("redis.write_timeout", "3s")
	v.SetDefault("redis.pool_size", 20)
	v.SetDefault("redis.min_idle_conns", 2)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 30)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)

	// Timeline defaults
	v.SetDefault("timeline.store", StoreMemory)
	v.SetDefault("timeline.ttl", "1h")
	v.SetDefault("timeline.cleanup_interval", "5m")
	v.SetDefault("timeline.key_prefix", "mediatime:timeline:")
	v.SetDefault("timeline.default_scale", 90000)
	v.SetDefault("timeline.default_rounding", "half-away-from-zero")
	v.SetDefault("timeline.max_buffered_ranges", 256)

	// Rate limit defaults
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.requests_per_second", 200)
	v.SetDefault("ratelimit.burst", 400)
}
