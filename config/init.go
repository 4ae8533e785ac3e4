package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/customeros/mailresponder/internal/logger"
	"github.com/customeros/mailresponder/internal/retry"
	"github.com/customeros/mailresponder/internal/tracing"
)

type Config struct {
	AppConfig    *AppConfig
	MailConfig   *MailConfig
	RetryConfig  *RetryConfig
	PollerConfig *PollerConfig
	AIConfig     *AIConfig
	Logger       *logger.Config
	Tracing      *tracing.JaegerConfig
}

func InitConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	return Parse()
}

// Parse reads the configuration from the process environment only.
func Parse() (*Config, error) {
	config := &Config{
		AppConfig:    &AppConfig{},
		MailConfig:   &MailConfig{},
		RetryConfig:  &RetryConfig{},
		PollerConfig: &PollerConfig{},
		AIConfig:     &AIConfig{},
		Logger:       &logger.Config{},
		Tracing:      &tracing.JaegerConfig{},
	}

	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(err, "error loading mailresponder config")
	}
	if config.PollerConfig.Interval <= 0 {
		return nil, errors.Errorf("POLL_INTERVAL must be positive, got %s", config.PollerConfig.Interval)
	}

	return config, nil
}

func (c *Config) RetryPolicy() retry.Policy {
	policy := retry.DefaultPolicy()
	if c.RetryConfig == nil {
		return policy
	}
	if c.RetryConfig.MaxAttempts > 0 {
		policy.MaxAttempts = c.RetryConfig.MaxAttempts
	}
	if c.RetryConfig.Delay >= 0 {
		policy.Delay = c.RetryConfig.Delay
	}
	return policy
}
