package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const envPrefix = "RELAY"

// Loader handles configuration loading
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the config file, if present, then applies RELAY_* environment overrides.
// A missing file yields the defaults.
func (l *Loader) Load() (*Config, error) {
	configPath := l.GetConfigPath()

	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType(configType(configPath))
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		} else if l.configPath != "" {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths fills file locations derived from the data directory
func (c *Config) resolvePaths() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		c.DataDir = filepath.Join(home, ".relay")
	}

	if c.Store.Path == "" {
		if c.Store.Driver == "sqlite" {
			c.Store.Path = filepath.Join(c.DataDir, "relay.db")
		} else {
			c.Store.Path = filepath.Join(c.DataDir, "runs")
		}
	}
	if c.Logging.File == "" {
		c.Logging.File = filepath.Join(c.DataDir, "relay.log")
	}
	if c.Audit.File == "" {
		c.Audit.File = filepath.Join(c.DataDir, "audit.log")
	}
	return nil
}

// Save writes the configuration to the config path
func (l *Loader) Save(cfg *Config) error {
	configPath := l.GetConfigPath()
	if configPath == "" {
		return errors.New("no config path available")
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType(configType(configPath))

	v.Set("router", map[string]interface{}{
		"max_depth":       cfg.Router.MaxDepth,
		"hop_timeout":     cfg.Router.HopTimeout.String(),
		"overall_timeout": cfg.Router.OverallTimeout.String(),
	})
	v.Set("sequential", map[string]interface{}{
		"timeout":       cfg.Sequential.Timeout.String(),
		"agent_timeout": cfg.Sequential.AgentTimeout.String(),
	})
	v.Set("parallel", map[string]interface{}{
		"timeout":         cfg.Parallel.Timeout.String(),
		"agent_timeout":   cfg.Parallel.AgentTimeout.String(),
		"strategy":        cfg.Parallel.Strategy,
		"max_concurrency": cfg.Parallel.MaxConcurrency,
	})
	v.Set("agents_file", cfg.AgentsFile)
	v.Set("store", map[string]interface{}{
		"driver":         cfg.Store.Driver,
		"path":           cfg.Store.Path,
		"max_age":        cfg.Store.MaxAge.String(),
		"max_runs":       cfg.Store.MaxRuns,
		"prune_interval": cfg.Store.PruneInterval.String(),
	})
	if err := setSection(v, "logging", cfg.Logging); err != nil {
		return err
	}
	v.Set("server", map[string]interface{}{
		"host":                  cfg.Server.Host,
		"port":                  cfg.Server.Port,
		"read_timeout":          cfg.Server.ReadTimeout.String(),
		"write_timeout":         cfg.Server.WriteTimeout.String(),
		"shutdown_timeout":      cfg.Server.ShutdownTimeout.String(),
		"max_body_bytes":        cfg.Server.MaxBodyBytes,
		"rate_limit_per_minute": cfg.Server.RateLimit,
		"trust_proxy":           cfg.Server.TrustProxy,
	})
	if err := setSection(v, "tracing", cfg.Tracing); err != nil {
		return err
	}
	if err := setSection(v, "audit", cfg.Audit); err != nil {
		return err
	}
	if err := setSection(v, "ai", cfg.AI); err != nil {
		return err
	}
	v.Set("data_dir", cfg.DataDir)

	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the config file path
func (l *Loader) GetConfigPath() string {
	if l.configPath != "" {
		return l.configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".relay", "relay.json")
}

// Load is a convenience function that creates a loader and loads the config
func Load(configPath string) (*Config, error) {
	return NewLoader(configPath).Load()
}

// setSection stores a struct under key using its json field names, so YAML output
// uses the same keys as JSON.
func setSection(v *viper.Viper, key string, section interface{}) error {
	data, err := json.Marshal(section)
	if err != nil {
		return fmt.Errorf("failed to encode %s section: %w", key, err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("failed to encode %s section: %w", key, err)
	}
	v.Set(key, m)
	return nil
}

func configType(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// setDefaults registers every scalar key so environment variables can override
// settings that the config file does not mention.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("router.max_depth", d.Router.MaxDepth)
	v.SetDefault("router.hop_timeout", d.Router.HopTimeout)
	v.SetDefault("router.overall_timeout", d.Router.OverallTimeout)
	v.SetDefault("sequential.timeout", d.Sequential.Timeout)
	v.SetDefault("sequential.agent_timeout", d.Sequential.AgentTimeout)
	v.SetDefault("parallel.timeout", d.Parallel.Timeout)
	v.SetDefault("parallel.agent_timeout", d.Parallel.AgentTimeout)
	v.SetDefault("parallel.strategy", d.Parallel.Strategy)
	v.SetDefault("parallel.max_concurrency", d.Parallel.MaxConcurrency)
	v.SetDefault("agents_file", d.AgentsFile)
	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)
	v.SetDefault("store.max_age", d.Store.MaxAge)
	v.SetDefault("store.max_runs", d.Store.MaxRuns)
	v.SetDefault("store.prune_interval", d.Store.PruneInterval)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.console", d.Logging.Console)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
	v.SetDefault("logging.max_size", d.Logging.MaxSize)
	v.SetDefault("logging.max_age", d.Logging.MaxAge)
	v.SetDefault("logging.compress", d.Logging.Compress)
	v.SetDefault("logging.redaction", d.Logging.Redaction)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.max_body_bytes", d.Server.MaxBodyBytes)
	v.SetDefault("server.rate_limit_per_minute", d.Server.RateLimit)
	v.SetDefault("server.trust_proxy", d.Server.TrustProxy)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("audit.enabled", d.Audit.Enabled)
	v.SetDefault("audit.file", d.Audit.File)
	v.SetDefault("data_dir", d.DataDir)
}
