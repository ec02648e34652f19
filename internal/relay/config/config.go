package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	errspkg "github.com/visiona/vlmrelay/internal/relay/errors"
)

// Defaults applied by New and FromEnv when the corresponding value is unset.
const (
	DefaultRedisHost  = "localhost"
	DefaultRedisPort  = 6379
	DefaultStreamName = "vlm:results:stream"
	DefaultHTTPPort   = 8000
)

// Config groups the settings required to run the relay. Values are read from
// the environment once at startup; components receive the populated struct and
// never consult the environment themselves.
type Config struct {
	// Redis (upstream log) configuration.
	RedisHost     string
	RedisPort     int
	RedisPassword string

	// StreamName is the upstream stream the relay tails.
	StreamName string

	// ReadBlock bounds how long a single stream read may wait for new
	// entries. ReadCount caps the batch size per read.
	ReadBlock time.Duration
	ReadCount int64

	// ReconnectWait is the backoff after a lost upstream connection.
	// RetryWait is the backoff after a transient read error.
	ReconnectWait time.Duration
	RetryWait     time.Duration

	// HTTPPort serves the WebSocket endpoint and the read-only status API.
	HTTPPort int

	// CORSAllowedOrigins specifies allowed origins for the status API. Use
	// "*" for development or specific origins for production. Empty disables
	// CORS headers.
	CORSAllowedOrigins []string

	// Metrics configuration.
	MetricsEnabled bool
	// MetricsPort is the port where Prometheus metrics will be exposed.
	MetricsPort int
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		RedisHost:          DefaultRedisHost,
		RedisPort:          DefaultRedisPort,
		StreamName:         DefaultStreamName,
		ReadBlock:          time.Second,
		ReadCount:          10,
		ReconnectWait:      5 * time.Second,
		RetryWait:          time.Second,
		HTTPPort:           DefaultHTTPPort,
		CORSAllowedOrigins: []string{"*"},
	}
}

// FromEnv builds a Config from environment variables, falling back to
// defaults for anything unset. Unparseable numeric values are returned as a
// ConfigValidationError rather than silently ignored.
func FromEnv() (*Config, error) {
	cfg := New()

	if host := os.Getenv("REDIS_HOST"); host != "" {
		cfg.RedisHost = host
	}
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	if stream := os.Getenv("STREAM_NAME"); stream != "" {
		cfg.StreamName = stream
	}

	var errs []error
	if err := intFromEnv("REDIS_PORT", &cfg.RedisPort); err != nil {
		errs = append(errs, err)
	}
	if err := intFromEnv("HTTP_PORT", &cfg.HTTPPort); err != nil {
		errs = append(errs, err)
	}
	if err := intFromEnv("METRICS_PORT", &cfg.MetricsPort); err != nil {
		errs = append(errs, err)
	}
	if raw := os.Getenv("METRICS_ENABLED"); raw != "" {
		enabled, err := strconv.ParseBool(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("METRICS_ENABLED: %w", err))
		} else {
			cfg.MetricsEnabled = enabled
		}
	}

	if len(errs) > 0 {
		return nil, errspkg.NewConfigValidationError(errors.Join(errs...))
	}
	return cfg, nil
}

func intFromEnv(key string, dst *int) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = value
	return nil
}

// RedisAddr returns the host:port pair for the upstream Redis instance.
func (c *Config) RedisAddr() string {
	return net.JoinHostPort(c.RedisHost, strconv.Itoa(c.RedisPort))
}

// Validate checks that the configuration is runnable. Returns an error
// describing every missing or invalid field.
func (c *Config) Validate() error {
	var errs []error

	if c.RedisHost == "" {
		errs = append(errs, errors.New("redis: host is required"))
	}
	if c.StreamName == "" {
		errs = append(errs, errspkg.ErrStreamNameRequired)
	}
	if c.ReadCount <= 0 {
		errs = append(errs, errors.New("stream: read count must be positive"))
	}
	if c.ReadBlock <= 0 {
		errs = append(errs, errors.New("stream: read block must be positive"))
	}
	errs = append(errs, c.validatePorts()...)

	return errspkg.NewConfigValidationError(errors.Join(errs...))
}

func (c *Config) validatePorts() []error {
	var errs []error
	if c.RedisPort <= 0 || c.RedisPort > 65535 {
		errs = append(errs, fmt.Errorf("redis: invalid port %d", c.RedisPort))
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("http: invalid port %d", c.HTTPPort))
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		errs = append(errs, fmt.Errorf("metrics: invalid port %d", c.MetricsPort))
	}
	return errs
}

func (c Config) String() string {
	// Create a copy to avoid modifying the original
	copy := c
	if copy.RedisPassword != "" {
		copy.RedisPassword = "***REDACTED***"
	}
	// Use a type alias to avoid infinite recursion when printing
	type configAlias Config
	return fmt.Sprintf("%+v", configAlias(copy))
}
