package agentset

import (
	"fmt"
	"time"

	"github.com/harun/relay/pkg/agent"
	"github.com/harun/relay/pkg/orchestrator"
)

// ProviderResolver returns the LLM provider for an auth profile ID
type ProviderResolver func(profile string) (agent.LLMProvider, error)

// Defaults fill settings an agent set file leaves unset
type Defaults struct {
	MaxDepth               int
	HopTimeout             time.Duration
	OverallTimeout         time.Duration
	SequentialTimeout      time.Duration
	SequentialAgentTimeout time.Duration
	ParallelTimeout        time.Duration
	ParallelAgentTimeout   time.Duration
	Strategy               string
	MaxConcurrency         int
}

// BuildOptions controls how a definition is turned into runnable components
type BuildOptions struct {
	Providers ProviderResolver
	Defaults  Defaults
	// Strategy overrides both the file and the defaults when set
	Strategy string
	Logger   orchestrator.Logger
	Observer orchestrator.Observer
}

// AgentSet is a definition turned into a registry and ready-to-run orchestrators
type AgentSet struct {
	Definition *Definition
	Registry   *orchestrator.Registry
	Router     *orchestrator.Router
	Sequential *orchestrator.Sequential
	Parallel   *orchestrator.Parallel
	// StartAgent is handoff.start, or the first agent when unset
	StartAgent string

	opts BuildOptions
}

// Build constructs every agent of def and the router and orchestrators over them
func Build(def *Definition, opts BuildOptions) (*AgentSet, error) {
	if def == nil {
		return nil, fmt.Errorf("agent set definition is required")
	}
	if err := def.Validate(); err != nil {
		return nil, err
	}

	registry := orchestrator.NewRegistry()
	for _, d := range def.Agents {
		a, err := buildAgent(d, opts.Providers)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", d.Name, err)
		}
		if err := registry.Register(a); err != nil {
			return nil, err
		}
	}

	set := &AgentSet{
		Definition: def,
		Registry:   registry,
		StartAgent: def.Handoff.Start,
		opts:       opts,
	}
	if set.StartAgent == "" {
		set.StartAgent = def.Agents[0].Name
	}

	set.Router = orchestrator.NewRouter(registry, routerOptions(def.Handoff, opts)...)

	sequential := orchestrator.NewSequential(
		orchestrator.WithTimeout(durationOr(def.Sequential.Timeout, opts.Defaults.SequentialTimeout)),
		orchestrator.WithAgentTimeout(durationOr(def.Sequential.AgentTimeout, opts.Defaults.SequentialAgentTimeout)),
		orchestrator.WithLogger(opts.Logger),
		orchestrator.WithObserver(opts.Observer),
	)
	set.Sequential = sequential.Add(pick(registry, def.Sequential.Agents)...)

	parallelOpts, err := parallelOptions(def.Parallel, opts)
	if err != nil {
		return nil, err
	}
	set.Parallel = orchestrator.NewParallel(parallelOpts...).Add(pick(registry, def.Parallel.Agents)...)

	if opts.Logger != nil {
		opts.Logger.Info("Built agent set",
			"agents", registry.Len(),
			"start_agent", set.StartAgent,
			"strategy", set.Parallel.Strategy())
	}
	return set, nil
}

// ParallelWith returns a fan-out over the same agents and limits as Parallel that
// aggregates with strategy instead. An empty strategy returns Parallel itself.
func (s *AgentSet) ParallelWith(strategy string) (*orchestrator.Parallel, error) {
	if strategy == "" || strategy == s.Parallel.Strategy() {
		return s.Parallel, nil
	}
	opts := s.opts
	opts.Strategy = strategy
	parallelOpts, err := parallelOptions(s.Definition.Parallel, opts)
	if err != nil {
		return nil, err
	}
	return orchestrator.NewParallel(parallelOpts...).Add(s.Parallel.Agents()...), nil
}

func buildAgent(d AgentDefinition, providers ProviderResolver) (agent.Agent, error) {
	switch d.AgentType() {
	case TypeLLM:
		if providers == nil {
			return nil, fmt.Errorf("no LLM providers configured for profile %s", d.Profile)
		}
		provider, err := providers(d.Profile)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve profile %s: %w", d.Profile, err)
		}
		return agent.NewLLMAgent(agent.LLMConfig{
			Name:           d.Name,
			Model:          d.Model,
			SystemPrompt:   d.SystemPrompt,
			Temperature:    d.Temperature,
			MaxTokens:      d.MaxTokens,
			MaxRetries:     d.MaxRetries,
			HandoffTargets: d.HandoffTargets,
		}, provider)
	default:
		delay, err := parseDuration(d.Delay)
		if err != nil {
			return nil, err
		}
		return agent.NewScripted(agent.ScriptedConfig{
			Name:       d.Name,
			Answer:     d.Answer,
			DelegateTo: d.DelegateTo,
			Reason:     d.Reason,
			Payload:    d.Payload,
			Fail:       d.Fail,
			Delay:      delay,
		}), nil
	}
}

func routerOptions(h HandoffDefinition, opts BuildOptions) []orchestrator.RouterOption {
	depth := h.MaxDepth
	if depth == 0 {
		depth = opts.Defaults.MaxDepth
	}
	return []orchestrator.RouterOption{
		orchestrator.WithMaxDepth(depth),
		orchestrator.WithHopTimeout(durationOr(h.HopTimeout, opts.Defaults.HopTimeout)),
		orchestrator.WithOverallTimeout(durationOr(h.OverallTimeout, opts.Defaults.OverallTimeout)),
		orchestrator.WithRouterLogger(opts.Logger),
		orchestrator.WithRouterObserver(opts.Observer),
	}
}

func parallelOptions(p ParallelDefinition, opts BuildOptions) ([]orchestrator.Option, error) {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = p.Strategy
	}
	if strategy == "" {
		strategy = opts.Defaults.Strategy
	}
	if strategy == "" {
		strategy = orchestrator.StrategyFirstSuccess
	}
	agg, err := orchestrator.AggregatorByName(strategy)
	if err != nil {
		return nil, err
	}

	concurrency := p.MaxConcurrency
	if concurrency == 0 {
		concurrency = opts.Defaults.MaxConcurrency
	}

	return []orchestrator.Option{
		orchestrator.WithTimeout(durationOr(p.Timeout, opts.Defaults.ParallelTimeout)),
		orchestrator.WithAgentTimeout(durationOr(p.AgentTimeout, opts.Defaults.ParallelAgentTimeout)),
		orchestrator.WithAggregator(strategy, agg),
		orchestrator.WithMaxConcurrency(concurrency),
		orchestrator.WithLogger(opts.Logger),
		orchestrator.WithObserver(opts.Observer),
	}, nil
}

// pick resolves names against the registry; no names selects every agent in registration order
func pick(registry *orchestrator.Registry, names []string) []agent.Agent {
	if len(names) == 0 {
		return registry.All()
	}
	out := make([]agent.Agent, 0, len(names))
	for _, name := range names {
		if a, ok := registry.Get(name); ok {
			out = append(out, a)
		}
	}
	return out
}

// durationOr parses s, falling back when s is empty. Definitions are validated before this runs.
func durationOr(s string, fallback time.Duration) time.Duration {
	d, err := parseDuration(s)
	if err != nil || s == "" {
		return fallback
	}
	return d
}
