package config

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/harun/relay/internal/logger"
)

// Config represents the main relay configuration
type Config struct {
	// Orchestration
	Router     RouterConfig     `json:"router" mapstructure:"router"`
	Sequential SequentialConfig `json:"sequential" mapstructure:"sequential"`
	Parallel   ParallelConfig   `json:"parallel" mapstructure:"parallel"`

	// AgentsFile is the default agent set definition (YAML or JSON)
	AgentsFile string `json:"agents_file" mapstructure:"agents_file"`

	// Run history
	Store StoreConfig `json:"store" mapstructure:"store"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// HTTP API
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Observability
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
	Audit   AuditConfig   `json:"audit" mapstructure:"audit"`

	// AI configuration
	AI AIConfig `json:"ai" mapstructure:"ai"`

	// Data directory
	DataDir string `json:"data_dir" mapstructure:"data_dir"`
}

// RouterConfig holds handoff router limits
type RouterConfig struct {
	MaxDepth       int           `json:"max_depth" mapstructure:"max_depth"`
	HopTimeout     time.Duration `json:"hop_timeout" mapstructure:"hop_timeout"`
	OverallTimeout time.Duration `json:"overall_timeout" mapstructure:"overall_timeout"`
}

// SequentialConfig holds pipeline limits
type SequentialConfig struct {
	Timeout      time.Duration `json:"timeout" mapstructure:"timeout"`
	AgentTimeout time.Duration `json:"agent_timeout" mapstructure:"agent_timeout"`
}

// ParallelConfig holds fan-out settings
type ParallelConfig struct {
	Timeout        time.Duration `json:"timeout" mapstructure:"timeout"`
	AgentTimeout   time.Duration `json:"agent_timeout" mapstructure:"agent_timeout"`
	Strategy       string        `json:"strategy" mapstructure:"strategy"` // last, first_success, merge, vote
	MaxConcurrency int           `json:"max_concurrency" mapstructure:"max_concurrency"`
}

// StoreConfig selects where finished runs are kept
type StoreConfig struct {
	Driver string `json:"driver" mapstructure:"driver"` // file, sqlite
	Path   string `json:"path" mapstructure:"path"`
	// Retention; zero disables the bound
	MaxAge        time.Duration `json:"max_age" mapstructure:"max_age"`
	MaxRuns       int           `json:"max_runs" mapstructure:"max_runs"`
	PruneInterval time.Duration `json:"prune_interval" mapstructure:"prune_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	MaxSize   int    `json:"max_size" mapstructure:"max_size"` // MB
	MaxAge    int    `json:"max_age" mapstructure:"max_age"`   // days
	Compress  bool   `json:"compress" mapstructure:"compress"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
	// RedactPatterns are extra regexps masked in log output
	RedactPatterns []string `json:"redact_patterns,omitempty" mapstructure:"redact_patterns"`
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Host            string        `json:"host" mapstructure:"host"`
	Port            int           `json:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `json:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `json:"max_body_bytes" mapstructure:"max_body_bytes"`
	RateLimit       int           `json:"rate_limit_per_minute" mapstructure:"rate_limit_per_minute"` // 0 disables
	// TrustProxy takes client addresses from forwarding headers; enable only behind a proxy
	TrustProxy bool `json:"trust_proxy" mapstructure:"trust_proxy"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool    `json:"enabled" mapstructure:"enabled"`
	ServiceName  string  `json:"service_name" mapstructure:"service_name"`
	OTLPEndpoint string  `json:"otlp_endpoint" mapstructure:"otlp_endpoint"`
	SampleRate   float64 `json:"sample_rate" mapstructure:"sample_rate"`
}

// AuditConfig holds audit log settings
type AuditConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	File    string `json:"file" mapstructure:"file"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Profiles []AIProfile `json:"profiles" mapstructure:"profiles"`
}

// AIProfile represents an AI provider profile
type AIProfile struct {
	ID       string `json:"id" mapstructure:"id"`
	Provider string `json:"provider" mapstructure:"provider"` // anthropic, openai
	APIKey   string `json:"api_key" mapstructure:"api_key"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	logDefaults := logger.DefaultConfig()
	return &Config{
		Router: RouterConfig{
			MaxDepth:       10,
			HopTimeout:     60 * time.Second,
			OverallTimeout: 5 * time.Minute,
		},
		Sequential: SequentialConfig{
			Timeout: 5 * time.Minute,
		},
		Parallel: ParallelConfig{
			Timeout:  5 * time.Minute,
			Strategy: "first_success",
		},
		Store: StoreConfig{
			Driver:        "file",
			MaxAge:        7 * 24 * time.Hour,
			MaxRuns:       500,
			PruneInterval: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:     logDefaults.Level,
			Console:   logDefaults.Console,
			Pretty:    logDefaults.Pretty,
			MaxSize:   logDefaults.MaxSize,
			MaxAge:    logDefaults.MaxAge,
			Compress:  logDefaults.Compress,
			Redaction: logDefaults.Redaction,
		},
		Server: ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    10 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Tracing: TracingConfig{
			ServiceName: "relay",
			SampleRate:  1,
		},
		AI: AIConfig{
			Profiles: []AIProfile{},
		},
	}
}

// String returns a JSON representation of the config with API keys masked
func (c *Config) String() string {
	masked := *c
	masked.AI.Profiles = make([]AIProfile, len(c.AI.Profiles))
	for i, p := range c.AI.Profiles {
		if p.APIKey != "" {
			p.APIKey = "********"
		}
		masked.AI.Profiles[i] = p
	}
	data, _ := json.MarshalIndent(masked, "", "  ")
	return string(data)
}

// Profile looks up an AI profile by ID
func (c *Config) Profile(id string) (AIProfile, bool) {
	for _, p := range c.AI.Profiles {
		if p.ID == id {
			return p, true
		}
	}
	return AIProfile{}, false
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	return errors.Join(NewValidator().ValidateConfig(c)...)
}
