package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TransferToolName is the tool an LLM agent calls to hand the request to another agent
const TransferToolName = "transfer_to_agent"

// LLMConfig configures an LLM-backed agent
type LLMConfig struct {
	Name         string
	Model        string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
	MaxRetries   int
	// HandoffTargets lists the agents this one may transfer to. Empty disables the transfer tool.
	HandoffTargets []string
}

// LLMAgent answers with a single model call and signals delegation through a tool call
type LLMAgent struct {
	cfg      LLMConfig
	provider LLMProvider
	backoff  time.Duration
}

// NewLLMAgent creates an LLM-backed agent
func NewLLMAgent(cfg LLMConfig, provider LLMProvider) (*LLMAgent, error) {
	if cfg.Name == "" {
		return nil, errors.New("agent name is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("agent %s: model is required", cfg.Name)
	}
	if provider == nil {
		return nil, fmt.Errorf("agent %s: provider is required", cfg.Name)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &LLMAgent{
		cfg:      cfg,
		provider: provider,
		backoff:  500 * time.Millisecond,
	}, nil
}

// Name returns the agent name
func (a *LLMAgent) Name() string {
	return a.cfg.Name
}

// Run sends input to the model and maps the reply to an answer or a delegation
func (a *LLMAgent) Run(ctx context.Context, input string) (Response, error) {
	request := LLMRequest{
		Model:        a.cfg.Model,
		SystemPrompt: a.cfg.SystemPrompt,
		Temperature:  a.cfg.Temperature,
		MaxTokens:    a.cfg.MaxTokens,
		Messages:     []Message{{Role: "user", Content: input}},
	}
	if len(a.cfg.HandoffTargets) > 0 {
		request.Tools = []ToolSpec{TransferTool(a.cfg.HandoffTargets)}
	}

	resp, err := a.call(ctx, request)
	if err != nil {
		return Response{}, fmt.Errorf("%s call failed: %w", a.provider.Provider(), err)
	}

	for _, tc := range resp.ToolCalls {
		if tc.Name != TransferToolName {
			continue
		}
		return delegationFromToolCall(tc)
	}

	return Answer(strings.TrimSpace(resp.Content)), nil
}

func (a *LLMAgent) call(ctx context.Context, request LLMRequest) (*LLMResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := a.backoff * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := a.provider.Call(ctx, request)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsRetryableError(err) {
			break
		}
	}
	return nil, lastErr
}

// TransferTool returns the tool spec offered to a model that may delegate to targets
func TransferTool(targets []string) ToolSpec {
	enum := make([]interface{}, len(targets))
	for i, t := range targets {
		enum[i] = t
	}

	return ToolSpec{
		Name:        TransferToolName,
		Description: "Hand the request to another agent that is better suited to answer it.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"agent": map[string]interface{}{
					"type":        "string",
					"description": "Target agent name",
					"enum":        enum,
				},
				"reason": map[string]interface{}{
					"type":        "string",
					"description": "Why the target agent should handle the request",
				},
				"payload": map[string]interface{}{
					"type":        "string",
					"description": "Optional rewritten request for the target agent",
				},
			},
			"required": []string{"agent"},
		},
	}
}

func delegationFromToolCall(tc ToolCall) (Response, error) {
	target, _ := tc.Parameters["agent"].(string)
	if strings.TrimSpace(target) == "" {
		return Response{}, fmt.Errorf("%s call is missing the agent argument", TransferToolName)
	}
	reason, _ := tc.Parameters["reason"].(string)

	if payload, ok := tc.Parameters["payload"].(string); ok && payload != "" {
		return DelegateWithPayload(target, reason, payload), nil
	}
	return Delegate(target, reason), nil
}
