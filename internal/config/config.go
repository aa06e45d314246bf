package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
	StoreBackend           string `env:"STORE_BACKEND" envDefault:"memory"`
	RedisURL               string `env:"REDIS_URL"`
	RedisKeyPrefix         string `env:"REDIS_KEY_PREFIX" envDefault:"matchmaker:"`
	DatabaseURL            string `env:"DATABASE_URL"`
	PresenceTimeoutSeconds int    `env:"PRESENCE_TIMEOUT_SECONDS" envDefault:"30"`
	WaitingTimeoutSeconds  int    `env:"WAITING_TIMEOUT_SECONDS" envDefault:"30"`
	SweepIntervalSeconds   int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"10"`
	RateLimitPerMin        int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	CORSAllowedOrigin      string `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
}

func (c *Config) PresenceTimeout() time.Duration {
	return time.Duration(c.PresenceTimeoutSeconds) * time.Second
}

func (c *Config) WaitingTimeout() time.Duration {
	return time.Duration(c.WaitingTimeoutSeconds) * time.Second
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate rejects configurations under which a participant could be matched
// after the registry already considers it gone.
func (c *Config) Validate() error {
	if c.PresenceTimeoutSeconds <= 0 {
		return fmt.Errorf("PRESENCE_TIMEOUT_SECONDS must be positive")
	}
	if c.WaitingTimeoutSeconds <= 0 {
		return fmt.Errorf("WAITING_TIMEOUT_SECONDS must be positive")
	}
	if c.WaitingTimeoutSeconds > c.PresenceTimeoutSeconds {
		return fmt.Errorf("WAITING_TIMEOUT_SECONDS (%d) must not exceed PRESENCE_TIMEOUT_SECONDS (%d)",
			c.WaitingTimeoutSeconds, c.PresenceTimeoutSeconds)
	}
	if c.SweepIntervalSeconds < 0 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must not be negative")
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative (0 disables)")
	}

	switch c.StoreBackend {
	case BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when STORE_BACKEND=redis")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q (want memory, redis or postgres)", c.StoreBackend)
	}

	if 2*ClientHeartbeatInterval > c.PresenceTimeout() {
		log.Warn().
			Dur("presenceTimeout", c.PresenceTimeout()).
			Dur("clientHeartbeat", ClientHeartbeatInterval).
			Msg("presence timeout is less than twice the client heartbeat interval: expect false expiry")
	}
	if strings.HasPrefix(c.RedisURL, "redis://") && c.StoreBackend == BackendRedis {
		log.Warn().Msg("REDIS_URL uses redis:// (not TLS): consider using rediss://")
	}

	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
