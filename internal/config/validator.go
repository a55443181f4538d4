package config

import (
	"fmt"
	"strings"

	"github.com/harun/relay/pkg/orchestrator"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates an AI provider name
func (v *Validator) ValidateProvider(provider string) error {
	switch provider {
	case "anthropic", "openai":
		return nil
	default:
		return fmt.Errorf("invalid provider %q (must be: anthropic, openai)", provider)
	}
}

// ValidateLogLevel validates a log level
func (v *Validator) ValidateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s (must be: debug, info, warn, error)", level)
	}
}

// ValidateStrategy validates a parallel aggregation strategy
func (v *Validator) ValidateStrategy(strategy string) error {
	_, err := orchestrator.AggregatorByName(strategy)
	return err
}

// ValidateStoreDriver validates a run store driver
func (v *Validator) ValidateStoreDriver(driver string) error {
	switch driver {
	case "file", "sqlite":
		return nil
	default:
		return fmt.Errorf("invalid store driver: %s (must be: file, sqlite)", driver)
	}
}

// ValidatePort validates a TCP port
func (v *Validator) ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// ValidateSampleRate validates a trace sampling ratio
func (v *Validator) ValidateSampleRate(rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("sample rate must be between 0 and 1, got %f", rate)
	}
	return nil
}

// ValidateConfig validates the entire configuration and returns every problem found
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg.Router.MaxDepth < 1 {
		errs = append(errs, fmt.Errorf("router.max_depth must be at least 1, got %d", cfg.Router.MaxDepth))
	}
	for name, d := range map[string]int64{
		"router.hop_timeout":       int64(cfg.Router.HopTimeout),
		"router.overall_timeout":   int64(cfg.Router.OverallTimeout),
		"sequential.timeout":       int64(cfg.Sequential.Timeout),
		"sequential.agent_timeout": int64(cfg.Sequential.AgentTimeout),
		"parallel.timeout":         int64(cfg.Parallel.Timeout),
		"parallel.agent_timeout":   int64(cfg.Parallel.AgentTimeout),
		"store.max_age":            int64(cfg.Store.MaxAge),
		"store.prune_interval":     int64(cfg.Store.PruneInterval),
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	if err := v.ValidateStrategy(cfg.Parallel.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("parallel.strategy: %w", err))
	}
	if cfg.Parallel.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("parallel.max_concurrency must not be negative, got %d", cfg.Parallel.MaxConcurrency))
	}

	if err := v.ValidateStoreDriver(cfg.Store.Driver); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
	}
	if cfg.Store.MaxRuns < 0 {
		errs = append(errs, fmt.Errorf("store.max_runs must not be negative, got %d", cfg.Store.MaxRuns))
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}
	if err := v.ValidatePort(cfg.Server.Port); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("server.max_body_bytes must be positive, got %d", cfg.Server.MaxBodyBytes))
	}
	if cfg.Server.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit_per_minute must not be negative, got %d", cfg.Server.RateLimit))
	}
	if err := v.ValidateSampleRate(cfg.Tracing.SampleRate); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}

	seen := make(map[string]bool)
	for i, profile := range cfg.AI.Profiles {
		if profile.ID == "" {
			errs = append(errs, fmt.Errorf("AI profile %d: ID is required", i))
			continue
		}
		if seen[profile.ID] {
			errs = append(errs, fmt.Errorf("AI profile %s: duplicate ID", profile.ID))
		}
		seen[profile.ID] = true

		if err := v.ValidateProvider(profile.Provider); err != nil {
			errs = append(errs, fmt.Errorf("AI profile %s: %w", profile.ID, err))
			continue
		}
		if err := v.ValidateAPIKey(profile.APIKey, profile.Provider); err != nil {
			errs = append(errs, fmt.Errorf("AI profile %s: %w", profile.ID, err))
		}
	}

	return errs
}
