package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	pkgconfig "github.com/utafrali/stripe-gateway/pkg/config"
	"github.com/utafrali/stripe-gateway/pkg/tracing"
	"github.com/utafrali/stripe-gateway/pkg/validator"
)

// Deployment environments.
const (
	EnvProduction  = "production"
	EnvSandbox     = "sandbox"
	EnvDevelopment = "development"
)

// Provider backends.
const (
	ProviderStripe = "stripe"
	ProviderMock   = "mock"
)

// StripeSettings is the provider block of a settings file.
type StripeSettings struct {
	BaseURL      string `yaml:"base_url" validate:"required,url"`
	SecretAPIKey string `yaml:"secret_api_key"`
	PublicAPIKey string `yaml:"public_api_key"`
}

// Config holds all configuration for the gateway service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development" validate:"oneof=production sandbox development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`

	// HTTP server
	HTTPPort int `env:"HTTP_PORT" envDefault:"8080" validate:"gte=1,lte=65535"`

	// Payment provider
	Provider               string `env:"PROVIDER" envDefault:"stripe" validate:"oneof=stripe mock"`
	SettingsDir            string `env:"SETTINGS_DIR" envDefault:"settings"`
	ProviderTimeoutSeconds int    `env:"PROVIDER_TIMEOUT_SECONDS" envDefault:"30" validate:"gte=1"`

	// Overrides applied on top of the settings file.
	StripeBaseURL   string `env:"STRIPE_BASE_URL"`
	StripeSecretKey string `env:"STRIPE_SECRET_KEY"`
	StripePublicKey string `env:"STRIPE_PUBLIC_KEY"`

	// Circuit breaker around provider calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5" validate:"gt=0,lte=1"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Kafka audit events
	KafkaEnabled bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"gateway.transactions"`

	// OpenTelemetry
	Tracing tracing.Config

	// Provider settings, from the settings file plus overrides.
	Stripe StripeSettings
}

// Load reads the environment, then the settings file for the selected
// environment, then applies STRIPE_* overrides and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load gateway config: %w", err)
	}

	cfg.Stripe = StripeSettings{BaseURL: "https://api.stripe.com"}
	if err := pkgconfig.LoadFile(cfg.SettingsFile(), &cfg.Stripe); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load gateway settings: %w", err)
	}
	cfg.applyOverrides()

	cfg.Tracing.Environment = cfg.Environment
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = "stripe-gateway"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SettingsFile returns the provider settings file for the environment.
// Only production reads production settings.
func (c *Config) SettingsFile() string {
	name := EnvSandbox
	if c.Environment == EnvProduction {
		name = EnvProduction
	}
	return filepath.Join(c.SettingsDir, name+".yaml")
}

// ProviderTimeout returns the per-call provider timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSeconds) * time.Second
}

func (c *Config) applyOverrides() {
	if c.StripeBaseURL != "" {
		c.Stripe.BaseURL = c.StripeBaseURL
	}
	if c.StripeSecretKey != "" {
		c.Stripe.SecretAPIKey = c.StripeSecretKey
	}
	if c.StripePublicKey != "" {
		c.Stripe.PublicAPIKey = c.StripePublicKey
	}
}

func (c *Config) validate() error {
	if err := validator.Validate(c); err != nil {
		return fmt.Errorf("invalid gateway config: %w", err)
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("invalid gateway config: KAFKA_BROKERS is required when KAFKA_ENABLED is set")
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1.0 {
		return fmt.Errorf("invalid gateway config: OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.Tracing.SampleRate)
	}
	return nil
}
