package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/relay/pkg/agent"
)

func TestParallel_RegistrationOrder(t *testing.T) {
	build := func(delays []time.Duration) *Parallel {
		p := NewParallel(WithAggregator(StrategyMerge, Merge))
		for i, d := range delays {
			p.Add(sleeping(fmt.Sprintf("agent-%d", i), d, fmt.Sprintf("answer-%d", i)))
		}
		return p
	}

	descending := []time.Duration{60 * time.Millisecond, 40 * time.Millisecond, 20 * time.Millisecond, 0}
	ascending := []time.Duration{0, 20 * time.Millisecond, 40 * time.Millisecond, 60 * time.Millisecond}

	first := build(descending).Run(context.Background(), "q")
	second := build(ascending).Run(context.Background(), "q")

	for _, result := range []OrchestratorResult{first, second} {
		require.True(t, result.Success, result.Error)
		require.Len(t, result.AgentResults, 4)
		for i, r := range result.AgentResults {
			assert.Equal(t, fmt.Sprintf("agent-%d", i), r.AgentName)
			assert.Equal(t, i, r.ExecutionOrder)
			assert.Equal(t, "q", r.Input)
		}
	}
	assert.Equal(t, first.FinalOutput, second.FinalOutput)
}

func TestParallel_RunsConcurrently(t *testing.T) {
	p := NewParallel()
	for i := 0; i < 5; i++ {
		p.Add(sleeping(fmt.Sprintf("a%d", i), 100*time.Millisecond, "ok"))
	}

	start := time.Now()
	result := p.Run(context.Background(), "q")

	require.True(t, result.Success)
	assert.Less(t, time.Since(start), 400*time.Millisecond)
}

func TestParallel_MaxConcurrency(t *testing.T) {
	var active, peak atomic.Int32
	tracked := func(name string) agent.Agent {
		return agent.Func(name, func(context.Context, string) (agent.Response, error) {
			n := active.Add(1)
			for {
				old := peak.Load()
				if n <= old || peak.CompareAndSwap(old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			active.Add(-1)
			return agent.Answer(name), nil
		})
	}

	p := NewParallel(WithMaxConcurrency(2))
	for i := 0; i < 6; i++ {
		p.Add(tracked(fmt.Sprintf("a%d", i)))
	}

	result := p.Run(context.Background(), "q")

	require.True(t, result.Success)
	assert.Len(t, result.AgentResults, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestParallel_PartialFailure(t *testing.T) {
	logger := &mockLogger{}
	p := NewParallel(WithAggregator(StrategyMerge, Merge), WithLogger(logger)).Add(
		answering("A", "alpha"),
		failing("B", "quota exceeded"),
		answering("C", "gamma"),
	)

	result := p.Run(context.Background(), "q")

	require.True(t, result.Success)
	assert.Equal(t, "[A]: alpha\n\n[C]: gamma", result.FinalOutput)
	require.Len(t, result.AgentResults, 3)
	assert.Equal(t, KindAgentExecutionFailed, result.AgentResults[1].ErrorKind)
	assert.Equal(t, "quota exceeded", result.AgentResults[1].Response.Error)
	assert.Contains(t, logger.errorMessages(), "Agent execution failed")
}

func TestParallel_FailureDoesNotCancelSiblings(t *testing.T) {
	p := NewParallel().Add(
		failing("fast-fail", "nope"),
		sleeping("slow", 50*time.Millisecond, "made it"),
	)

	result := p.Run(context.Background(), "q")

	require.True(t, result.Success)
	assert.Equal(t, "made it", result.FinalOutput)
}

func TestParallel_AllFailed(t *testing.T) {
	p := NewParallel().Add(failing("A", "a broke"), failing("B", "b broke"))

	result := p.Run(context.Background(), "q")

	assert.False(t, result.Success)
	assert.Equal(t, KindAllAgentsFailed, result.ErrorKind)
	assert.Len(t, result.AgentResults, 2)
	assert.Contains(t, result.Error, "A")
	assert.Contains(t, result.Error, "B")
	assert.True(t, errors.Is(result.Err(), ErrAllAgentsFailed))
}

func TestParallel_Timeouts(t *testing.T) {
	t.Run("overall timeout records unfinished agents", func(t *testing.T) {
		p := NewParallel(WithTimeout(30*time.Millisecond)).Add(
			answering("quick", "fast"),
			sleeping("slow", time.Second, "late"),
			stubborn("deaf", time.Second),
		)

		start := time.Now()
		result := p.Run(context.Background(), "q")

		assert.Less(t, time.Since(start), 500*time.Millisecond)
		require.True(t, result.Success)
		assert.Equal(t, "fast", result.FinalOutput)
		require.Len(t, result.AgentResults, 3)
		assert.Equal(t, KindTimedOut, result.AgentResults[1].ErrorKind)
		assert.Equal(t, KindTimedOut, result.AgentResults[2].ErrorKind)
	})

	t.Run("per-agent timeout", func(t *testing.T) {
		p := NewParallel(WithAgentTimeout(20*time.Millisecond)).Add(
			sleeping("slow", time.Second, "late"),
			sleeping("ok", 5*time.Millisecond, "fine"),
		)

		result := p.Run(context.Background(), "q")

		require.True(t, result.Success)
		assert.Equal(t, KindTimedOut, result.AgentResults[0].ErrorKind)
		assert.Equal(t, "fine", result.FinalOutput)
	})

	t.Run("caller cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := NewParallel().Add(sleeping("a", time.Second, "x"), sleeping("b", time.Second, "y")).Run(ctx, "q")

		assert.Equal(t, KindAllAgentsFailed, result.ErrorKind)
		for _, r := range result.AgentResults {
			assert.Equal(t, KindCancelled, r.ErrorKind)
		}
	})
}

func TestParallel_DelegationCountsAsFailure(t *testing.T) {
	result := NewParallel().Add(delegating("router", "billing", ""), answering("B", "b")).Run(context.Background(), "q")

	require.True(t, result.Success)
	assert.Equal(t, KindAgentExecutionFailed, result.AgentResults[0].ErrorKind)
	assert.Equal(t, "b", result.FinalOutput)
}

func TestParallel_Strategies(t *testing.T) {
	agents := func() []agent.Agent {
		return []agent.Agent{answering("A", "x"), answering("B", "y"), answering("C", "y")}
	}

	tests := []struct {
		name     string
		strategy string
		agg      Aggregator
		expected string
	}{
		{"first success", StrategyFirstSuccess, FirstSuccess, "x"},
		{"vote", StrategyVote, Vote, "y"},
		{"merge", StrategyMerge, Merge, "[A]: x\n\n[B]: y\n\n[C]: y"},
		{"custom", StrategyCustom, Custom(func(rs []AgentExecutionRecord) string {
			return fmt.Sprintf("%d answers", len(rs))
		}), "3 answers"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParallel(WithAggregator(tt.strategy, tt.agg)).Add(agents()...)

			result := p.Run(context.Background(), "q")

			require.True(t, result.Success)
			assert.Equal(t, tt.expected, result.FinalOutput)
			assert.Equal(t, tt.strategy, p.Strategy())
		})
	}
}

func TestParallel_EmptyAndObserver(t *testing.T) {
	t.Run("no agents", func(t *testing.T) {
		result := NewParallel().Run(context.Background(), "q")

		assert.Equal(t, KindNoAgents, result.ErrorKind)
		assert.NotNil(t, result.AgentResults)
	})

	t.Run("observer sees every agent", func(t *testing.T) {
		obs := &recordingObserver{}
		p := NewParallel(WithObserver(obs)).Add(answering("A", "a"), failing("B", "b"))

		p.Run(context.Background(), "q")

		assert.ElementsMatch(t, []string{"A", "B"}, obs.invoked)
		assert.Len(t, obs.orchestration, 1)
	})
}
