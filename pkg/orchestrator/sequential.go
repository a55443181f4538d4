package orchestrator

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/relay/internal/tracing"
	"github.com/harun/relay/pkg/agent"
)

// Option configures the sequential and parallel orchestrators
type Option func(*settings)

type settings struct {
	timeout        time.Duration
	agentTimeout   time.Duration
	maxConcurrency int
	aggregator     Aggregator
	aggregatorName string
	logger         Logger
	observer       Observer
}

func newSettings(opts []Option) settings {
	s := settings{
		aggregator:     FirstSuccess,
		aggregatorName: StrategyFirstSuccess,
		logger:         nopLogger{},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithTimeout bounds the whole run
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// WithAgentTimeout bounds each agent invocation; parallel runs have none by default
func WithAgentTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.agentTimeout = d
	}
}

// WithMaxConcurrency caps how many agents a parallel run executes at once; 0 means no cap
func WithMaxConcurrency(n int) Option {
	return func(s *settings) {
		s.maxConcurrency = n
	}
}

// WithAggregator sets the strategy a parallel run uses to combine answers
func WithAggregator(name string, agg Aggregator) Option {
	return func(s *settings) {
		if agg != nil {
			s.aggregator = agg
			s.aggregatorName = name
		}
	}
}

// WithLogger sets the logger for the orchestrator
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the observer notified of invocations and outcomes
func WithObserver(observer Observer) Option {
	return func(s *settings) {
		s.observer = observer
	}
}

// Sequential pipes each agent's answer into the next agent
type Sequential struct {
	agents []agent.Agent
	cfg    settings
}

// NewSequential creates an empty pipeline
func NewSequential(opts ...Option) *Sequential {
	return &Sequential{cfg: newSettings(opts)}
}

// Add appends agents to the pipeline. Call it only while composing, before the first Run.
func (p *Sequential) Add(agents ...agent.Agent) *Sequential {
	p.agents = append(p.agents, agents...)
	return p
}

// Agents returns the pipeline in execution order
func (p *Sequential) Agents() []agent.Agent {
	return append([]agent.Agent(nil), p.agents...)
}

// Run feeds input to the first agent and each answer to the next one.
// The first failure stops the pipeline; records produced so far are kept.
func (p *Sequential) Run(ctx context.Context, input string) OrchestratorResult {
	if ctx == nil {
		ctx = context.Background()
	}

	result := OrchestratorResult{
		RunID:        newRunID(),
		Mode:         ModeSequential,
		AgentResults: make([]AgentExecutionRecord, 0, len(p.agents)),
		StartedAt:    time.Now(),
	}

	ctx = tracing.WithRunID(ctx, result.RunID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "sequential.run",
		attribute.Int("relay.agents", len(p.agents)),
	)
	defer span.End()
	result.TraceID = tracing.GetTraceID(ctx)

	runCtx, cancel := withTimeout(ctx, p.cfg.timeout)
	defer cancel()

	p.cfg.logger.Info("Starting sequential run",
		"run_id", result.RunID,
		"num_agents", len(p.agents))

	p.execute(runCtx, input, &result)

	result.Duration = time.Since(result.StartedAt)
	if result.Success {
		p.cfg.logger.Info("Sequential run completed",
			"run_id", result.RunID,
			"duration_ms", result.Duration.Milliseconds())
	} else {
		span.SetStatus(codes.Error, result.Error)
		p.cfg.logger.Error("Sequential run failed", result.Err(),
			"run_id", result.RunID,
			"completed_steps", len(result.AgentResults))
	}

	if p.cfg.observer != nil {
		p.cfg.observer.OrchestrationFinished(ctx, result)
	}
	return result
}

func (p *Sequential) execute(ctx context.Context, input string, result *OrchestratorResult) {
	if len(p.agents) == 0 {
		result.ErrorKind = KindNoAgents
		result.Error = "sequential pipeline has no agents"
		return
	}

	current := input
	for i, a := range p.agents {
		stepCtx, cancelStep := withTimeout(ctx, p.cfg.agentTimeout)
		inv := invoke(stepCtx, ModeSequential, a, current)
		cancelStep()

		record := AgentExecutionRecord{
			AgentName:      a.Name(),
			ExecutionOrder: i,
			Input:          current,
			Response:       inv.resp,
			ErrorKind:      inv.kind,
			StartTime:      inv.start,
			EndTime:        inv.end,
		}

		message := inv.message
		if inv.kind == KindNone && inv.resp.IsDelegation() {
			record.ErrorKind = KindAgentExecutionFailed
			message = fmt.Sprintf("agent %s: unexpected delegation to %s in a sequential pipeline",
				a.Name(), inv.resp.Delegation.TargetAgent)
		}

		result.AgentResults = append(result.AgentResults, record)
		if p.cfg.observer != nil {
			p.cfg.observer.AgentInvoked(ctx, ModeSequential, a.Name(), inv.resp, record.ErrorKind)
		}

		if record.ErrorKind != KindNone {
			result.ErrorKind = record.ErrorKind
			result.Error = message
			return
		}

		p.cfg.logger.Debug("Pipeline step completed",
			"run_id", result.RunID,
			"step", i,
			"agent", a.Name())

		current = inv.resp.FinalAnswer
		result.FinalOutput = current
	}

	result.Success = true
}
