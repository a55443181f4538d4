package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/harun/relay/internal/tracing"
	"github.com/harun/relay/pkg/agent"
)

// Parallel runs every agent concurrently on the same input and aggregates the answers
type Parallel struct {
	agents []agent.Agent
	cfg    settings
}

// NewParallel creates an empty fan-out
func NewParallel(opts ...Option) *Parallel {
	return &Parallel{cfg: newSettings(opts)}
}

// Add appends agents; their order is the registration order used in results.
// Call it only while composing, before the first Run.
func (p *Parallel) Add(agents ...agent.Agent) *Parallel {
	p.agents = append(p.agents, agents...)
	return p
}

// Agents returns the agents in registration order
func (p *Parallel) Agents() []agent.Agent {
	return append([]agent.Agent(nil), p.agents...)
}

// Strategy returns the name of the configured aggregation strategy
func (p *Parallel) Strategy() string {
	return p.cfg.aggregatorName
}

// Run starts all agents, waits for every one of them to settle, then aggregates.
// A failing agent never cancels its siblings. AgentResults is in registration order.
func (p *Parallel) Run(ctx context.Context, input string) OrchestratorResult {
	if ctx == nil {
		ctx = context.Background()
	}

	result := OrchestratorResult{
		RunID:     newRunID(),
		Mode:      ModeParallel,
		StartedAt: time.Now(),
	}

	ctx = tracing.WithRunID(ctx, result.RunID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "parallel.run",
		attribute.Int("relay.agents", len(p.agents)),
		attribute.String("relay.strategy", p.cfg.aggregatorName),
	)
	defer span.End()
	result.TraceID = tracing.GetTraceID(ctx)

	runCtx, cancel := withTimeout(ctx, p.cfg.timeout)
	defer cancel()

	p.cfg.logger.Info("Starting parallel run",
		"run_id", result.RunID,
		"num_agents", len(p.agents),
		"strategy", p.cfg.aggregatorName)

	p.execute(runCtx, input, &result)

	result.Duration = time.Since(result.StartedAt)
	if result.Success {
		p.cfg.logger.Info("Parallel run completed",
			"run_id", result.RunID,
			"duration_ms", result.Duration.Milliseconds(),
			"num_results", len(result.AgentResults))
	} else {
		span.SetStatus(codes.Error, result.Error)
		p.cfg.logger.Error("Parallel run failed", result.Err(),
			"run_id", result.RunID,
			"num_results", len(result.AgentResults))
	}

	if p.cfg.observer != nil {
		p.cfg.observer.OrchestrationFinished(ctx, result)
	}
	return result
}

func (p *Parallel) execute(ctx context.Context, input string, result *OrchestratorResult) {
	if len(p.agents) == 0 {
		result.AgentResults = []AgentExecutionRecord{}
		result.ErrorKind = KindNoAgents
		result.Error = "parallel orchestrator has no agents"
		return
	}

	records := make([]AgentExecutionRecord, len(p.agents))

	// Plain Group, not WithContext: one failure must not cancel the others.
	var g errgroup.Group
	if p.cfg.maxConcurrency > 0 {
		g.SetLimit(p.cfg.maxConcurrency)
	}

	for i, a := range p.agents {
		g.Go(func() error {
			records[i] = p.runOne(ctx, i, a, input)
			return nil
		})
	}
	_ = g.Wait()

	result.AgentResults = records

	successful := make([]AgentExecutionRecord, 0, len(records))
	var failures []string
	for _, r := range records {
		if r.Succeeded() {
			successful = append(successful, r)
			continue
		}
		failures = append(failures, fmt.Sprintf("%s (%s)", r.AgentName, r.ErrorKind))
	}

	if len(successful) == 0 {
		result.ErrorKind = KindAllAgentsFailed
		result.Error = "all agents failed: " + strings.Join(failures, ", ")
		return
	}

	if len(failures) > 0 {
		p.cfg.logger.Info("Parallel run completed with failures",
			"run_id", result.RunID,
			"failed_count", len(failures),
			"total_count", len(records))
	}

	result.Success = true
	result.FinalOutput = p.cfg.aggregator(successful)
}

func (p *Parallel) runOne(ctx context.Context, index int, a agent.Agent, input string) AgentExecutionRecord {
	agentCtx, cancel := withTimeout(ctx, p.cfg.agentTimeout)
	defer cancel()

	inv := invoke(agentCtx, ModeParallel, a, input)
	record := AgentExecutionRecord{
		AgentName:      a.Name(),
		ExecutionOrder: index,
		Input:          input,
		Response:       inv.resp,
		ErrorKind:      inv.kind,
		StartTime:      inv.start,
		EndTime:        inv.end,
	}

	if inv.kind == KindNone && inv.resp.IsDelegation() {
		record.ErrorKind = KindAgentExecutionFailed
	}

	if record.ErrorKind != KindNone {
		msg := record.Response.Error
		if msg == "" {
			msg = "unexpected delegation in a parallel run"
		}
		p.cfg.logger.Error("Agent execution failed", errors.New(msg),
			"agent", a.Name(),
			"index", index,
			"error_kind", record.ErrorKind)
	}

	if p.cfg.observer != nil {
		p.cfg.observer.AgentInvoked(ctx, ModeParallel, a.Name(), inv.resp, record.ErrorKind)
	}
	return record
}
