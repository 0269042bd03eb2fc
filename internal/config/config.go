package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. TRANSFER_DATABASE_URL.
const EnvPrefix = "transfer"

// Config is the engine configuration.
type Config struct {
	DatabaseURL string         `yaml:"database_url" envconfig:"database_url"`
	HTTPAddr    string         `yaml:"http_addr" envconfig:"http_addr"`
	Wallet      WalletConfig   `yaml:"wallet" envconfig:"wallet"`
	Transfer    TransferConfig `yaml:"transfer" envconfig:"transfer"`
	Requests    RequestsConfig `yaml:"requests" envconfig:"requests"`
	Redis       RedisConfig    `yaml:"redis" envconfig:"redis"`
	NATS        NATSConfig     `yaml:"nats" envconfig:"nats"`
}

// WalletConfig configures the wallet service client.
type WalletConfig struct {
	BaseURL   string        `yaml:"base_url" envconfig:"base_url"`
	JWTSecret string        `yaml:"jwt_secret" envconfig:"jwt_secret"`
	JWTIssuer string        `yaml:"jwt_issuer" envconfig:"jwt_issuer"`
	TokenTTL  time.Duration `yaml:"token_ttl" envconfig:"token_ttl"`
	Timeout   time.Duration `yaml:"timeout" envconfig:"timeout"`
}

// TransferConfig configures the dispatcher.
type TransferConfig struct {
	IsTrial             bool          `yaml:"is_trial" envconfig:"is_trial"`
	BatchSize           int           `yaml:"batch_size" envconfig:"batch_size"`
	RunInterval         time.Duration `yaml:"run_interval" envconfig:"run_interval"`
	Concurrency         int           `yaml:"concurrency" envconfig:"concurrency"`
	MaxTransferAttempts int           `yaml:"max_transfer_attempts" envconfig:"max_transfer_attempts"`
	AttemptWindow       time.Duration `yaml:"attempt_window" envconfig:"attempt_window"`
	AttemptCapacity     int           `yaml:"attempt_capacity" envconfig:"attempt_capacity"`
	AgreementLookback   time.Duration `yaml:"agreement_lookback" envconfig:"agreement_lookback"`
}

// RequestsConfig holds the request status aging thresholds.
type RequestsConfig struct {
	CheckInterval time.Duration `yaml:"check_interval" envconfig:"check_interval"`
	TimeoutAfter  time.Duration `yaml:"timeout_after" envconfig:"timeout_after"`
	DeleteAfter   time.Duration `yaml:"delete_after" envconfig:"delete_after"`
}

// RedisConfig enables the distributed organization lock when URL is set.
type RedisConfig struct {
	URL     string        `yaml:"url" envconfig:"url"`
	LockTTL time.Duration `yaml:"lock_ttl" envconfig:"lock_ttl"`
}

// NATSConfig enables event publishing when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url" envconfig:"url"`
	Subject string `yaml:"subject" envconfig:"subject"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Wallet: WalletConfig{
			JWTIssuer: "certificate-transfer",
			TokenTTL:  5 * time.Minute,
			Timeout:   30 * time.Second,
		},
		Transfer: TransferConfig{
			BatchSize:           1000,
			RunInterval:         time.Minute,
			Concurrency:         4,
			MaxTransferAttempts: 5,
			AttemptWindow:       24 * time.Hour,
			AttemptCapacity:     100_000,
		},
		Requests: RequestsConfig{
			CheckInterval: time.Minute,
			TimeoutAfter:  120 * time.Minute,
			DeleteAfter:   1440 * time.Minute,
		},
		Redis: RedisConfig{
			LockTTL: 10 * time.Minute,
		},
		NATS: NATSConfig{
			Subject: "certificate-transfer",
		},
	}
}

// Load applies defaults, then the YAML file at path (if any), then
// TRANSFER_* environment overrides, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("TRANSFER_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("config: env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("config: database url required")
	}
	if c.Wallet.BaseURL == "" {
		return errors.New("config: wallet base url required")
	}
	if c.Wallet.JWTSecret == "" {
		return errors.New("config: wallet jwt secret required")
	}
	if c.Transfer.BatchSize <= 0 {
		return errors.New("config: batch size must be positive")
	}
	if c.Transfer.Concurrency <= 0 {
		return errors.New("config: concurrency must be positive")
	}
	if c.Transfer.MaxTransferAttempts < 0 {
		return errors.New("config: max transfer attempts must not be negative")
	}
	if c.Transfer.AgreementLookback < 0 {
		return errors.New("config: agreement lookback must not be negative")
	}
	for name, d := range map[string]time.Duration{
		"run interval":   c.Transfer.RunInterval,
		"check interval": c.Requests.CheckInterval,
		"timeout after":  c.Requests.TimeoutAfter,
		"delete after":   c.Requests.DeleteAfter,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	if c.Requests.CheckInterval >= c.Requests.TimeoutAfter || c.Requests.TimeoutAfter >= c.Requests.DeleteAfter {
		return errors.New("config: request thresholds must satisfy check < timeout < delete")
	}
	return nil
}
