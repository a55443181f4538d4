package agentset

import (
	"errors"
	"fmt"
	"time"

	"github.com/harun/relay/pkg/orchestrator"
)

// Agent types
const (
	TypeScripted = "scripted"
	TypeLLM      = "llm"
)

// Definition is the contents of an agent set file
type Definition struct {
	Agents     []AgentDefinition    `json:"agents" yaml:"agents"`
	Handoff    HandoffDefinition    `json:"handoff,omitempty" yaml:"handoff,omitempty"`
	Sequential SequentialDefinition `json:"sequential,omitempty" yaml:"sequential,omitempty"`
	Parallel   ParallelDefinition   `json:"parallel,omitempty" yaml:"parallel,omitempty"`
}

// AgentDefinition describes one agent. Scripted fields and LLM fields are mutually exclusive by Type.
type AgentDefinition struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type,omitempty" yaml:"type,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	Answer     string  `json:"answer,omitempty" yaml:"answer,omitempty"`
	DelegateTo string  `json:"delegate_to,omitempty" yaml:"delegate_to,omitempty"`
	Reason     string  `json:"reason,omitempty" yaml:"reason,omitempty"`
	Payload    *string `json:"payload,omitempty" yaml:"payload,omitempty"`
	Fail       string  `json:"fail,omitempty" yaml:"fail,omitempty"`
	Delay      string  `json:"delay,omitempty" yaml:"delay,omitempty"`

	Profile        string   `json:"profile,omitempty" yaml:"profile,omitempty"`
	Model          string   `json:"model,omitempty" yaml:"model,omitempty"`
	SystemPrompt   string   `json:"system_prompt,omitempty" yaml:"system_prompt,omitempty"`
	Temperature    float64  `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	MaxTokens      int      `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	MaxRetries     int      `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	HandoffTargets []string `json:"handoff_targets,omitempty" yaml:"handoff_targets,omitempty"`
}

// HandoffDefinition configures the router
type HandoffDefinition struct {
	Start          string `json:"start,omitempty" yaml:"start,omitempty"`
	MaxDepth       int    `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	HopTimeout     string `json:"hop_timeout,omitempty" yaml:"hop_timeout,omitempty"`
	OverallTimeout string `json:"overall_timeout,omitempty" yaml:"overall_timeout,omitempty"`
}

// SequentialDefinition configures the default pipeline. No agents means all agents in file order.
type SequentialDefinition struct {
	Agents       []string `json:"agents,omitempty" yaml:"agents,omitempty"`
	Timeout      string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	AgentTimeout string   `json:"agent_timeout,omitempty" yaml:"agent_timeout,omitempty"`
}

// ParallelDefinition configures the default fan-out. No agents means all agents in file order.
type ParallelDefinition struct {
	Agents         []string `json:"agents,omitempty" yaml:"agents,omitempty"`
	Strategy       string   `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Timeout        string   `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	AgentTimeout   string   `json:"agent_timeout,omitempty" yaml:"agent_timeout,omitempty"`
	MaxConcurrency int      `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
}

// AgentType returns the type, defaulting to scripted
func (a AgentDefinition) AgentType() string {
	if a.Type == "" {
		return TypeScripted
	}
	return a.Type
}

// Names returns the agent names in file order
func (d *Definition) Names() []string {
	names := make([]string, 0, len(d.Agents))
	for _, a := range d.Agents {
		names = append(names, a.Name)
	}
	return names
}

// Validate checks cross-references and values the schema cannot express
func (d *Definition) Validate() error {
	if len(d.Agents) == 0 {
		return errors.New("agent set has no agents")
	}

	known := make(map[string]bool, len(d.Agents))
	for i, a := range d.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent at index %d: name is required", i)
		}
		if known[a.Name] {
			return fmt.Errorf("agent at index %d: %w", i, &orchestrator.RunError{
				Kind:    orchestrator.KindDuplicateAgentName,
				Message: "agent defined twice: " + a.Name,
			})
		}
		known[a.Name] = true
	}

	for _, a := range d.Agents {
		if err := a.validate(known); err != nil {
			return fmt.Errorf("agent %s: %w", a.Name, err)
		}
	}

	if d.Handoff.Start != "" && !known[d.Handoff.Start] {
		return fmt.Errorf("handoff.start references unknown agent: %s", d.Handoff.Start)
	}
	if d.Handoff.MaxDepth < 0 {
		return fmt.Errorf("handoff.max_depth must be positive: %d", d.Handoff.MaxDepth)
	}
	if err := checkDurations(map[string]string{
		"handoff.hop_timeout":      d.Handoff.HopTimeout,
		"handoff.overall_timeout":  d.Handoff.OverallTimeout,
		"sequential.timeout":       d.Sequential.Timeout,
		"sequential.agent_timeout": d.Sequential.AgentTimeout,
		"parallel.timeout":         d.Parallel.Timeout,
		"parallel.agent_timeout":   d.Parallel.AgentTimeout,
	}); err != nil {
		return err
	}

	if err := checkRefs("sequential.agents", d.Sequential.Agents, known); err != nil {
		return err
	}
	if err := checkRefs("parallel.agents", d.Parallel.Agents, known); err != nil {
		return err
	}
	if d.Parallel.Strategy != "" {
		if _, err := orchestrator.AggregatorByName(d.Parallel.Strategy); err != nil {
			return fmt.Errorf("parallel.strategy: %w", err)
		}
	}
	if d.Parallel.MaxConcurrency < 0 {
		return fmt.Errorf("parallel.max_concurrency must not be negative: %d", d.Parallel.MaxConcurrency)
	}

	return nil
}

func (a AgentDefinition) validate(known map[string]bool) error {
	switch a.AgentType() {
	case TypeScripted:
		if a.Model != "" || a.Profile != "" || len(a.HandoffTargets) > 0 {
			return errors.New("scripted agents take no model, profile or handoff_targets")
		}
		if _, err := parseDuration(a.Delay); err != nil {
			return fmt.Errorf("invalid delay: %w", err)
		}
	case TypeLLM:
		if a.Model == "" {
			return errors.New("model is required for llm agents")
		}
		if a.Profile == "" {
			return errors.New("profile is required for llm agents")
		}
		if a.Answer != "" || a.DelegateTo != "" || a.Fail != "" || a.Delay != "" {
			return errors.New("llm agents take no scripted fields")
		}
		for _, target := range a.HandoffTargets {
			if !known[target] {
				return fmt.Errorf("handoff target references unknown agent: %s", target)
			}
			if target == a.Name {
				return errors.New("an agent cannot list itself as a handoff target")
			}
		}
	default:
		return fmt.Errorf("unknown agent type: %s", a.Type)
	}
	return nil
}

func checkRefs(field string, names []string, known map[string]bool) error {
	for _, name := range names {
		if !known[name] {
			return fmt.Errorf("%s references unknown agent: %s", field, name)
		}
	}
	return nil
}

func checkDurations(fields map[string]string) error {
	for field, value := range fields {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}
	return d, nil
}
