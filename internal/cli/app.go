package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/harun/relay/internal/config"
	"github.com/harun/relay/internal/logger"
	"github.com/harun/relay/internal/metrics"
	"github.com/harun/relay/internal/observability"
	"github.com/harun/relay/internal/tracing"
	"github.com/harun/relay/pkg/agent"
	"github.com/harun/relay/pkg/agentset"
	"github.com/harun/relay/pkg/orchestrator"
	"github.com/harun/relay/pkg/runstore"
)

// app holds the process-wide components a command needs
type app struct {
	opts    *globalOptions
	cfg     *config.Config
	log     *logger.Logger
	audit   *observability.AuditLogger
	metrics *metrics.Metrics
	store   runstore.Store
	tracing bool
}

// newApp loads and validates configuration and starts logging, auditing and tracing
func newApp(opts *globalOptions) (*app, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.agentsFile != "" {
		cfg.AgentsFile = opts.agentsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   cfg.Logging.Console,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		Patterns:  cfg.Logging.RedactPatterns,
		Secrets:   profileKeys(cfg),
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
		Output:    os.Stderr,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{opts: opts, cfg: cfg, log: log}

	if cfg.Audit.Enabled {
		a.audit, err = observability.OpenAuditLogger(cfg.Audit.File)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
	}

	if cfg.Tracing.Enabled {
		if err := tracing.InitOpenTelemetry(tracing.OTelConfig{
			ServiceName:  cfg.Tracing.ServiceName,
			OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
			SampleRate:   cfg.Tracing.SampleRate,
		}); err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.tracing = true
	}

	return a, nil
}

// enableMetrics creates the Prometheus registry; only long-running commands need it
func (a *app) enableMetrics() {
	if a.metrics == nil {
		a.metrics = metrics.NewMetrics()
	}
}

// openStore opens the run store, or returns nil when history is disabled
func (a *app) openStore() (runstore.Store, error) {
	if a.opts.noHistory {
		return nil, nil
	}
	if a.store != nil {
		return a.store, nil
	}
	store, err := runstore.Open(a.cfg.Store.Driver, a.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	a.store = store
	return store, nil
}

// retention returns the configured history bounds
func (a *app) retention() runstore.Retention {
	return runstore.Retention{
		MaxAge:  a.cfg.Store.MaxAge,
		MaxRuns: a.cfg.Store.MaxRuns,
	}
}

// loadDefinition reads and validates the configured agent set file
func (a *app) loadDefinition() (*agentset.Definition, error) {
	if a.cfg.AgentsFile == "" {
		return nil, errors.New("no agent set file: pass --agents or set agents_file in the config")
	}
	loader, err := agentset.NewLoader(a.log.KV("agentset"))
	if err != nil {
		return nil, err
	}
	return loader.LoadFile(a.cfg.AgentsFile)
}

// agentSet loads and builds the agent set. strategy, when set, overrides the fan-out strategy.
func (a *app) agentSet(strategy string) (*agentset.AgentSet, error) {
	def, err := a.loadDefinition()
	if err != nil {
		return nil, err
	}
	return agentset.Build(def, agentset.BuildOptions{
		Providers: a.providers(),
		Defaults:  a.defaults(),
		Strategy:  strategy,
		Logger:    a.log.KV("orchestrator"),
		Observer:  a.observer(),
	})
}

func (a *app) defaults() agentset.Defaults {
	c := a.cfg
	return agentset.Defaults{
		MaxDepth:               c.Router.MaxDepth,
		HopTimeout:             c.Router.HopTimeout,
		OverallTimeout:         c.Router.OverallTimeout,
		SequentialTimeout:      c.Sequential.Timeout,
		SequentialAgentTimeout: c.Sequential.AgentTimeout,
		ParallelTimeout:        c.Parallel.Timeout,
		ParallelAgentTimeout:   c.Parallel.AgentTimeout,
		Strategy:               c.Parallel.Strategy,
		MaxConcurrency:         c.Parallel.MaxConcurrency,
	}
}

// providers resolves LLM auth profiles from the config
func (a *app) providers() agentset.ProviderResolver {
	factory := &agent.ProviderFactory{}
	return func(id string) (agent.LLMProvider, error) {
		profile, ok := a.cfg.Profile(id)
		if !ok {
			return nil, fmt.Errorf("unknown AI profile: %s", id)
		}
		return factory.NewProvider(agent.AuthProfile{
			ID:       profile.ID,
			Provider: profile.Provider,
			APIKey:   profile.APIKey,
		})
	}
}

func (a *app) observer() orchestrator.Observer {
	var observers []orchestrator.Observer
	if a.metrics != nil {
		observers = append(observers, a.metrics.Observer())
	}
	if a.audit != nil {
		observers = append(observers, a.audit)
	}
	if len(observers) == 0 {
		return nil
	}
	return orchestrator.Observers(observers...)
}

// Close releases everything newApp and openStore acquired
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error().Err(err).Msg("Failed to close run store")
		}
	}
	if a.audit != nil {
		_ = a.audit.Close()
	}
	if a.tracing {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.ShutdownOpenTelemetry(ctx); err != nil {
			a.log.Error().Err(err).Msg("Failed to flush traces")
		}
	}
	_ = a.log.Close()
}

// profileKeys lists the configured provider keys so logs never carry them
func profileKeys(cfg *config.Config) []string {
	keys := make([]string, 0, len(cfg.AI.Profiles))
	for _, p := range cfg.AI.Profiles {
		if p.APIKey != "" {
			keys = append(keys, p.APIKey)
		}
	}
	return keys
}
