package agent

import (
	"context"
	"fmt"
	"strings"
	"time"
)

const inputPlaceholder = "{{input}}"

// ScriptedConfig describes a deterministic agent.
// At most one of Answer, DelegateTo or Fail should be set; DelegateTo wins over Answer.
type ScriptedConfig struct {
	Name       string        `json:"name" yaml:"name"`
	Answer     string        `json:"answer,omitempty" yaml:"answer,omitempty"`
	DelegateTo string        `json:"delegate_to,omitempty" yaml:"delegate_to,omitempty"`
	Reason     string        `json:"reason,omitempty" yaml:"reason,omitempty"`
	Payload    *string       `json:"payload,omitempty" yaml:"payload,omitempty"`
	Fail       string        `json:"fail,omitempty" yaml:"fail,omitempty"`
	Delay      time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// Scripted is an Agent whose behavior is fixed by its config.
// Answer and Payload may reference the incoming input as {{input}}.
type Scripted struct {
	cfg ScriptedConfig
}

// NewScripted creates a scripted agent
func NewScripted(cfg ScriptedConfig) *Scripted {
	return &Scripted{cfg: cfg}
}

// Name returns the agent name
func (s *Scripted) Name() string {
	return s.cfg.Name
}

// Run waits for the configured delay, then returns the scripted response
func (s *Scripted) Run(ctx context.Context, input string) (Response, error) {
	if s.cfg.Delay > 0 {
		timer := time.NewTimer(s.cfg.Delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return Response{}, fmt.Errorf("agent %s interrupted: %w", s.cfg.Name, ctx.Err())
		}
	}

	if s.cfg.Fail != "" {
		return Failure(expand(s.cfg.Fail, input)), nil
	}

	if s.cfg.DelegateTo != "" {
		if s.cfg.Payload != nil {
			return DelegateWithPayload(s.cfg.DelegateTo, s.cfg.Reason, expand(*s.cfg.Payload, input)), nil
		}
		return Delegate(s.cfg.DelegateTo, s.cfg.Reason), nil
	}

	if s.cfg.Answer == "" {
		return Answer(input), nil
	}
	return Answer(expand(s.cfg.Answer, input)), nil
}

func expand(template, input string) string {
	return strings.ReplaceAll(template, inputPlaceholder, input)
}
