package config

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// MaxReconnectRetriesUnlimited disables the reconnect ceiling.
const MaxReconnectRetriesUnlimited = -1

type Config struct {
	Port                int    `env:"PORT" envDefault:"3000"`
	DatabaseURL         string `env:"DATABASE_URL,required"`
	RedisURL            string `env:"REDIS_URL,required"`
	APIKey              string `env:"API_KEY"`
	LogLevel            string `env:"LOG_LEVEL" envDefault:"info"`
	ReconnectIntervalMS int    `env:"RECONNECT_INTERVAL_MS" envDefault:"5000"`
	MaxReconnectRetries int    `env:"MAX_RECONNECT_RETRIES" envDefault:"5"`
	MaxQRGeneration     int    `env:"MAX_QR_GENERATION" envDefault:"5"`
	WebhookEnabled      bool   `env:"WEBHOOK_ENABLED" envDefault:"false"`
	WebhookURL          string `env:"WEBHOOK_URL"`
	EncryptionKey       string `env:"ENCRYPTION_KEY"`
	PurgeCredsOnDestroy bool   `env:"PURGE_CREDS_ON_DESTROY" envDefault:"true"`
	RateLimitPerMin     int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	QRTimeoutSeconds    int    `env:"QR_TIMEOUT_SECONDS" envDefault:"60"`
	WebhookTimeoutMS    int    `env:"WEBHOOK_TIMEOUT_MS" envDefault:"10000"`
	WebhookRetryDelayMS int    `env:"WEBHOOK_RETRY_DELAY_MS" envDefault:"1000"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalMS) * time.Millisecond
}

func (c *Config) QRTimeout() time.Duration {
	return time.Duration(c.QRTimeoutSeconds) * time.Second
}

func (c *Config) WebhookTimeout() time.Duration {
	return time.Duration(c.WebhookTimeoutMS) * time.Millisecond
}

func (c *Config) WebhookRetryDelay() time.Duration {
	return time.Duration(c.WebhookRetryDelayMS) * time.Millisecond
}

// UnlimitedReconnects reports whether the reconnect ceiling is disabled.
func (c *Config) UnlimitedReconnects() bool {
	return c.MaxReconnectRetries == MaxReconnectRetriesUnlimited
}

func (c *Config) Validate() error {
	if c.EncryptionKey != "" {
		key, err := hex.DecodeString(c.EncryptionKey)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("ENCRYPTION_KEY must be 32 bytes hex-encoded (64 hex chars)")
		}
	}
	if c.MaxReconnectRetries < MaxReconnectRetriesUnlimited {
		return fmt.Errorf("MAX_RECONNECT_RETRIES must be >= -1 (-1 means unlimited)")
	}
	if c.MaxQRGeneration < 1 {
		return fmt.Errorf("MAX_QR_GENERATION must be >= 1")
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
