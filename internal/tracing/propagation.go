package tracing

import (
	"context"

	"github.com/rs/zerolog"
)

// PropagateToAgent derives the context handed to one agent invocation.
// The trace and run IDs are inherited; a missing trace ID is generated.
func PropagateToAgent(ctx context.Context, agentID string) context.Context {
	if GetTraceID(ctx) == "" {
		ctx = WithTraceID(ctx, NewTraceID())
	}
	return WithAgentID(ctx, agentID)
}

// PropagateToLogger adds tracing context to a zerolog logger
func PropagateToLogger(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	tc := FromContext(ctx)

	fields := logger.With()
	if tc.TraceID != "" {
		fields = fields.Str("trace_id", tc.TraceID)
	}
	if tc.RunID != "" {
		fields = fields.Str("run_id", tc.RunID)
	}
	if tc.AgentID != "" {
		fields = fields.Str("agent_id", tc.AgentID)
	}
	if tc.RequestID != "" {
		fields = fields.Str("request_id", tc.RequestID)
	}
	return fields.Logger()
}

// Detach returns a background context carrying the same tracing values.
// Used when work must outlive the request that started it.
func Detach(ctx context.Context) context.Context {
	return NewContext(context.Background(), FromContext(ctx))
}
