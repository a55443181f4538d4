package config

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/relay/internal/logger"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, 10, cfg.Router.MaxDepth)
	assert.Equal(t, 60*time.Second, cfg.Router.HopTimeout)
	assert.Equal(t, 5*time.Minute, cfg.Router.OverallTimeout)
	assert.Equal(t, "first_success", cfg.Parallel.Strategy)
	assert.Equal(t, 0, cfg.Parallel.MaxConcurrency)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, 7*24*time.Hour, cfg.Store.MaxAge)
	assert.Equal(t, 500, cfg.Store.MaxRuns)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, logger.DefaultConfig().MaxSize, cfg.Logging.MaxSize)
	assert.Equal(t, logger.DefaultConfig().Redaction, cfg.Logging.Redaction)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.False(t, cfg.Server.TrustProxy)
	assert.Equal(t, "relay", cfg.Tracing.ServiceName)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.AI.Profiles)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	t.Run("valid config with profiles", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AI.Profiles = []AIProfile{
			{ID: "claude", Provider: "anthropic", APIKey: "sk-ant-test123"},
			{ID: "gpt", Provider: "openai", APIKey: "sk-test456"},
		}
		assert.NoError(t, cfg.Validate())
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero max depth", func(c *Config) { c.Router.MaxDepth = 0 }, "router.max_depth"},
		{"negative hop timeout", func(c *Config) { c.Router.HopTimeout = -time.Second }, "router.hop_timeout"},
		{"negative agent timeout", func(c *Config) { c.Parallel.AgentTimeout = -time.Second }, "parallel.agent_timeout"},
		{"unknown strategy", func(c *Config) { c.Parallel.Strategy = "majority" }, "parallel.strategy"},
		{"negative concurrency", func(c *Config) { c.Parallel.MaxConcurrency = -1 }, "parallel.max_concurrency"},
		{"unknown store driver", func(c *Config) { c.Store.Driver = "redis" }, "invalid store driver"},
		{"negative max runs", func(c *Config) { c.Store.MaxRuns = -1 }, "store.max_runs"},
		{"negative max age", func(c *Config) { c.Store.MaxAge = -time.Hour }, "store.max_age"},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }, "invalid log level"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "port must be between"},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyBytes = 0 }, "server.max_body_bytes"},
		{"sample rate above one", func(c *Config) { c.Tracing.SampleRate = 1.5 }, "sample rate"},
		{"profile without id", func(c *Config) {
			c.AI.Profiles = []AIProfile{{Provider: "anthropic", APIKey: "sk-ant-x"}}
		}, "ID is required"},
		{"duplicate profile id", func(c *Config) {
			c.AI.Profiles = []AIProfile{
				{ID: "a", Provider: "openai", APIKey: "sk-1"},
				{ID: "a", Provider: "openai", APIKey: "sk-2"},
			}
		}, "duplicate ID"},
		{"unknown provider", func(c *Config) {
			c.AI.Profiles = []AIProfile{{ID: "g", Provider: "gemini", APIKey: "key"}}
		}, "invalid provider"},
		{"bad anthropic key", func(c *Config) {
			c.AI.Profiles = []AIProfile{{ID: "c", Provider: "anthropic", APIKey: "sk-wrong"}}
		}, "sk-ant-"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("reports every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Router.MaxDepth = 0
		cfg.Store.Driver = "redis"
		errs := NewValidator().ValidateConfig(cfg)
		assert.Len(t, errs, 2)
		assert.Contains(t, errors.Join(errs...).Error(), "redis")
	})
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{{ID: "claude", Provider: "anthropic", APIKey: "sk-ant-secret"}}

	out := cfg.String()
	assert.Contains(t, out, `"max_depth": 10`)
	assert.Contains(t, out, "********")
	assert.NotContains(t, out, "sk-ant-secret")
	// the original is untouched
	assert.Equal(t, "sk-ant-secret", cfg.AI.Profiles[0].APIKey)
}

func TestConfigProfile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AI.Profiles = []AIProfile{{ID: "claude", Provider: "anthropic", APIKey: "sk-ant-x"}}

	p, ok := cfg.Profile("claude")
	assert.True(t, ok)
	assert.Equal(t, "anthropic", p.Provider)

	_, ok = cfg.Profile("missing")
	assert.False(t, ok)
}
