package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewTraceID(t *testing.T) {
	first := NewTraceID()
	second := NewTraceID()

	assert.NotEmpty(t, first)
	assert.Len(t, first, 36)
	assert.NotEqual(t, first, second)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithRunID(ctx, "run-1")
	ctx = WithAgentID(ctx, "triage")
	ctx = WithRequestID(ctx, "req-1")

	assert.Equal(t, "trace-1", GetTraceID(ctx))
	assert.Equal(t, "run-1", GetRunID(ctx))
	assert.Equal(t, "triage", GetAgentID(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestGettersOnEmptyContext(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetRunID(ctx))
	assert.Empty(t, GetAgentID(ctx))
	assert.Empty(t, GetRequestID(ctx))
}

func TestFromContextAndNewContext(t *testing.T) {
	tc := &TraceContext{TraceID: "t", RunID: "r", AgentID: "a"}

	ctx := NewContext(context.Background(), tc)
	got := FromContext(ctx)

	assert.Equal(t, "t", got.TraceID)
	assert.Equal(t, "r", got.RunID)
	assert.Equal(t, "a", got.AgentID)
	assert.Empty(t, got.RequestID)
}

func TestNewRequestContext(t *testing.T) {
	ctx := NewRequestContext(context.Background())

	assert.NotEmpty(t, GetTraceID(ctx))
	assert.NotEmpty(t, GetRequestID(ctx))
	assert.NotEqual(t, GetTraceID(ctx), GetRequestID(ctx))
}

func TestStartSpanAssignsTraceID(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "test", "op")
	defer span.End()

	assert.NotEmpty(t, GetTraceID(ctx))
}

func TestStartSpanKeepsExistingTraceID(t *testing.T) {
	ctx := WithTraceID(context.Background(), "existing")

	ctx, span := StartSpan(ctx, "test", "op")
	defer span.End()

	assert.Equal(t, "existing", GetTraceID(ctx))
}
