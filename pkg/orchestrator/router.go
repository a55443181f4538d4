package orchestrator

import (
	"context"
	"fmt"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/relay/internal/tracing"
)

// DefaultMaxDepth bounds a handoff chain when no depth is configured
const DefaultMaxDepth = 10

// Router walks agent-to-agent delegations starting from a named agent
type Router struct {
	directory      Directory
	maxDepth       int
	hopTimeout     time.Duration
	overallTimeout time.Duration
	logger         Logger
	observer       Observer
}

// RouterOption is a functional option for configuring the Router
type RouterOption func(*Router)

// WithMaxDepth sets the maximum number of handoff hops
func WithMaxDepth(depth int) RouterOption {
	return func(r *Router) {
		if depth > 0 {
			r.maxDepth = depth
		}
	}
}

// WithHopTimeout bounds each agent invocation
func WithHopTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		r.hopTimeout = d
	}
}

// WithOverallTimeout bounds the whole routing session
func WithOverallTimeout(d time.Duration) RouterOption {
	return func(r *Router) {
		r.overallTimeout = d
	}
}

// WithRouterLogger sets the logger for the router
func WithRouterLogger(logger Logger) RouterOption {
	return func(r *Router) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRouterObserver sets the observer notified of invocations and outcomes
func WithRouterObserver(observer Observer) RouterOption {
	return func(r *Router) {
		r.observer = observer
	}
}

// NewRouter creates a router over a snapshot of the registry taken now.
// Agents registered afterwards are not visible to this router.
func NewRouter(registry *Registry, opts ...RouterOption) *Router {
	r := &Router{
		directory: registry.Snapshot(),
		maxDepth:  DefaultMaxDepth,
		logger:    nopLogger{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// MaxDepth returns the configured depth limit
func (r *Router) MaxDepth() int {
	return r.maxDepth
}

// handoffSession is the call-scoped state of one RunWithHandoff call
type handoffSession struct {
	result  HandoffResult
	visited map[string]struct{}
	current string
	payload string
}

// RunWithHandoff starts at startAgent and follows delegations until an agent answers
// or a guard terminates the chain. It never returns an error; failures are reported
// in the result together with the chain executed so far.
func (r *Router) RunWithHandoff(ctx context.Context, startAgent, input string) HandoffResult {
	if ctx == nil {
		ctx = context.Background()
	}

	s := &handoffSession{
		result: HandoffResult{
			RunID:     newRunID(),
			Chain:     []HandoffRecord{},
			StartedAt: time.Now(),
		},
		visited: map[string]struct{}{startAgent: {}},
		current: startAgent,
		payload: input,
	}

	ctx = tracing.WithRunID(ctx, s.result.RunID)
	ctx, span := tracing.StartSpan(ctx, tracerName, "handoff.run",
		attribute.String("relay.start_agent", startAgent),
		attribute.Int("relay.max_depth", r.maxDepth),
	)
	defer span.End()
	s.result.TraceID = tracing.GetTraceID(ctx)

	runCtx, cancel := withTimeout(ctx, r.overallTimeout)
	defer cancel()

	r.logger.Info("Starting handoff session",
		"run_id", s.result.RunID,
		"start_agent", startAgent,
		"max_depth", r.maxDepth)

	r.walk(runCtx, s)

	s.result.TotalDuration = time.Since(s.result.StartedAt)
	span.SetAttributes(attribute.Int("relay.chain_length", len(s.result.Chain)))
	if s.result.Success {
		r.logger.Info("Handoff session completed",
			"run_id", s.result.RunID,
			"executed_by", s.result.ExecutedByAgent,
			"hops", len(s.result.Chain),
			"duration_ms", s.result.TotalDuration.Milliseconds())
	} else {
		span.SetStatus(codes.Error, s.result.Error)
		r.logger.Error("Handoff session failed", s.result.Err(),
			"run_id", s.result.RunID,
			"error_kind", s.result.ErrorKind,
			"hops", len(s.result.Chain))
	}

	if r.observer != nil {
		r.observer.HandoffFinished(ctx, s.result)
	}
	return s.result
}

func (r *Router) walk(ctx context.Context, s *handoffSession) {
	for {
		if len(s.result.Chain) >= r.maxDepth {
			r.fail(s, KindDepthExceeded, "chain reached max depth %d before invoking %s", r.maxDepth, s.current)
			return
		}

		current, ok := r.directory.Get(s.current)
		if !ok {
			r.fail(s, KindUnknownAgent, "agent not registered: %s", s.current)
			return
		}

		hopCtx, cancelHop := withTimeout(ctx, r.hopTimeout)
		inv := invoke(hopCtx, ModeHandoff, current, s.payload)
		cancelHop()

		s.result.ExecutedByAgent = s.current
		s.result.FinalResponse = inv.resp
		if r.observer != nil {
			r.observer.AgentInvoked(ctx, ModeHandoff, s.current, inv.resp, inv.kind)
		}

		if inv.kind != KindNone {
			r.fail(s, inv.kind, "%s", r.describe(ctx, inv))
			return
		}

		delegation := inv.resp.Delegation
		if delegation == nil {
			s.result.Success = true
			return
		}

		target := delegation.TargetAgent
		if _, ok := r.directory.Get(target); !ok || target == "" {
			r.fail(s, KindUnknownAgent, "%s delegated to unregistered agent %q", s.current, target)
			return
		}
		if _, seen := s.visited[target]; seen {
			r.fail(s, KindCycleDetected, "%s delegated back to %s which is already in the chain", s.current, target)
			return
		}

		r.logger.Debug("Agent delegated",
			"run_id", s.result.RunID,
			"from", s.current,
			"to", target,
			"reason", delegation.Reason)

		s.result.Chain = append(s.result.Chain, HandoffRecord{
			FromAgent: s.current,
			ToAgent:   target,
			Reason:    delegation.Reason,
			Timestamp: time.Now(),
		})
		s.visited[target] = struct{}{}
		s.current = target
		if delegation.Payload != nil {
			s.payload = *delegation.Payload
		}
	}
}

// describe refines timeout messages with which budget ran out
func (r *Router) describe(ctx context.Context, inv invocation) string {
	if inv.kind != KindTimedOut {
		return inv.message
	}
	if ctx.Err() != nil {
		return "overall timeout exceeded: " + inv.message
	}
	return "hop timeout exceeded: " + inv.message
}

func (r *Router) fail(s *handoffSession, kind ErrorKind, format string, args ...interface{}) {
	s.result.Success = false
	s.result.ErrorKind = kind
	s.result.Error = fmt.Sprintf(format, args...)
}

func newRunID() string {
	id, err := gonanoid.New()
	if err != nil {
		return time.Now().UTC().Format("20060102T150405.000000000")
	}
	return id
}
