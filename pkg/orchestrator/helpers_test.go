package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/harun/relay/pkg/agent"
)

// mockLogger records messages; safe for concurrent use by parallel runs
type mockLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
	debugs []string
}

func (m *mockLogger) Info(msg string, fields ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockLogger) Error(msg string, err error, fields ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, msg)
}

func (m *mockLogger) Debug(msg string, fields ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugs = append(m.debugs, msg)
}

func (m *mockLogger) errorMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errors...)
}

// recordingObserver captures every notification
type recordingObserver struct {
	mu            sync.Mutex
	invoked       []string
	handoffs      []HandoffResult
	orchestration []OrchestratorResult
}

func (o *recordingObserver) AgentInvoked(_ context.Context, _ Mode, agentName string, _ agent.Response, _ ErrorKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.invoked = append(o.invoked, agentName)
}

func (o *recordingObserver) HandoffFinished(_ context.Context, result HandoffResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handoffs = append(o.handoffs, result)
}

func (o *recordingObserver) OrchestrationFinished(_ context.Context, result OrchestratorResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.orchestration = append(o.orchestration, result)
}

// countingAgent wraps an agent and counts invocations
type countingAgent struct {
	agent.Agent
	calls atomic.Int32
}

func (c *countingAgent) Run(ctx context.Context, input string) (agent.Response, error) {
	c.calls.Add(1)
	return c.Agent.Run(ctx, input)
}

func answering(name, text string) agent.Agent {
	return agent.Func(name, func(context.Context, string) (agent.Response, error) {
		return agent.Answer(text), nil
	})
}

func echoing(name string) agent.Agent {
	return agent.Func(name, func(_ context.Context, input string) (agent.Response, error) {
		return agent.Answer(input), nil
	})
}

func delegating(name, target, reason string) agent.Agent {
	return agent.Func(name, func(context.Context, string) (agent.Response, error) {
		return agent.Delegate(target, reason), nil
	})
}

func failing(name, msg string) agent.Agent {
	return agent.Func(name, func(context.Context, string) (agent.Response, error) {
		return agent.Response{}, errors.New(msg)
	})
}

// sleeping answers after d unless ctx ends first
func sleeping(name string, d time.Duration, text string) agent.Agent {
	return agent.Func(name, func(ctx context.Context, _ string) (agent.Response, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return agent.Answer(text), nil
		case <-ctx.Done():
			return agent.Response{}, ctx.Err()
		}
	})
}

// stubborn ignores cancellation entirely
func stubborn(name string, d time.Duration) agent.Agent {
	return agent.Func(name, func(context.Context, string) (agent.Response, error) {
		time.Sleep(d)
		return agent.Answer("too late"), nil
	})
}

// linearChain builds n agents a0..a(n-1); each delegates to the next and the last answers "done"
func linearChain(n int) *Registry {
	reg := NewRegistry()
	for i := 0; i < n-1; i++ {
		reg.MustRegister(delegating(fmt.Sprintf("a%d", i), fmt.Sprintf("a%d", i+1), "next"))
	}
	reg.MustRegister(answering(fmt.Sprintf("a%d", n-1), "done"))
	return reg
}
