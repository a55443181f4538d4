package observability

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/harun/relay/internal/tracing"
	"github.com/harun/relay/pkg/agent"
	"github.com/harun/relay/pkg/orchestrator"
)

// Audit event types
const (
	EventAgent   = "agent"
	EventHandoff = "handoff"
	EventRun     = "run"
)

// AuditEvent represents a structured event for the audit log
type AuditEvent struct {
	Type      string                 `json:"event_type"`
	Timestamp time.Time              `json:"timestamp"`
	Actor     string                 `json:"actor,omitempty"` // agent name or run mode
	Action    string                 `json:"action"`          // e.g. "invoke", "delegate", "finish"
	Status    string                 `json:"status"`          // "success", "failure"
	RunID     string                 `json:"run_id,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
}

// AuditLogger records one JSON line per run event. It implements orchestrator.Observer.
type AuditLogger struct {
	logger zerolog.Logger
	mu     sync.Mutex
	closer io.Closer
}

// NewAuditLogger writes audit events to w
func NewAuditLogger(w io.Writer) *AuditLogger {
	return &AuditLogger{
		logger: zerolog.New(w).With().Timestamp().Logger(),
	}
}

// OpenAuditLogger appends audit events to the file at path
func OpenAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	a := NewAuditLogger(file)
	a.closer = file
	return a, nil
}

// Record emits an audit event to the log and, when a span is recording, as a span event
func (a *AuditLogger) Record(ctx context.Context, event AuditEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RunID == "" {
		event.RunID = tracing.GetRunID(ctx)
	}

	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		event.TraceID = span.SpanContext().TraceID().String()

		span.AddEvent(event.Type+"."+event.Action, trace.WithAttributes(
			attribute.String("audit.status", event.Status),
			attribute.String("audit.actor", event.Actor),
		))
	} else if event.TraceID == "" {
		event.TraceID = tracing.GetTraceID(ctx)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	entry := a.logger.Log().
		Time("event_time", event.Timestamp).
		Str("type", event.Type).
		Str("actor", event.Actor).
		Str("action", event.Action).
		Str("status", event.Status).
		Str("run_id", event.RunID).
		Str("trace_id", event.TraceID)

	if event.Metadata != nil {
		entry.Interface("metadata", event.Metadata)
	}

	entry.Msg("")
}

// Close closes the audit logger's file handle
func (a *AuditLogger) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closer != nil {
		err := a.closer.Close()
		a.closer = nil
		return err
	}
	return nil
}

// AgentInvoked records one agent invocation
func (a *AuditLogger) AgentInvoked(ctx context.Context, mode orchestrator.Mode, agentName string, resp agent.Response, kind orchestrator.ErrorKind) {
	meta := map[string]interface{}{
		"mode":     string(mode),
		"response": string(resp.Kind()),
	}
	if kind != orchestrator.KindNone {
		meta["error_kind"] = string(kind)
	}
	if resp.Error != "" {
		meta["error"] = resp.Error
	}
	if d := resp.Delegation; d != nil {
		meta["target"] = d.TargetAgent
		meta["reason"] = d.Reason
	}

	a.Record(ctx, AuditEvent{
		Type:     EventAgent,
		Actor:    agentName,
		Action:   "invoke",
		Status:   status(kind == orchestrator.KindNone && resp.Success),
		Metadata: meta,
	})
}

// HandoffFinished records each hop of the chain and the session outcome
func (a *AuditLogger) HandoffFinished(ctx context.Context, result orchestrator.HandoffResult) {
	for i, hop := range result.Chain {
		a.Record(ctx, AuditEvent{
			Type:      EventHandoff,
			Timestamp: hop.Timestamp,
			Actor:     hop.FromAgent,
			Action:    "delegate",
			Status:    status(true),
			RunID:     result.RunID,
			Metadata: map[string]interface{}{
				"hop":    i + 1,
				"to":     hop.ToAgent,
				"reason": hop.Reason,
			},
		})
	}

	meta := map[string]interface{}{
		"mode":        string(orchestrator.ModeHandoff),
		"executed_by": result.ExecutedByAgent,
		"hops":        len(result.Chain),
		"duration_ms": result.TotalDuration.Milliseconds(),
	}
	if !result.Success {
		meta["error_kind"] = string(result.ErrorKind)
		meta["error"] = result.Error
	}
	a.Record(ctx, AuditEvent{
		Type:     EventRun,
		Actor:    string(orchestrator.ModeHandoff),
		Action:   "finish",
		Status:   status(result.Success),
		RunID:    result.RunID,
		TraceID:  result.TraceID,
		Metadata: meta,
	})
}

// OrchestrationFinished records the outcome of a sequential or parallel run
func (a *AuditLogger) OrchestrationFinished(ctx context.Context, result orchestrator.OrchestratorResult) {
	agents := make([]string, 0, len(result.AgentResults))
	for _, r := range result.AgentResults {
		agents = append(agents, r.AgentName)
	}

	meta := map[string]interface{}{
		"mode":        string(result.Mode),
		"agents":      agents,
		"duration_ms": result.Duration.Milliseconds(),
	}
	if !result.Success {
		meta["error_kind"] = string(result.ErrorKind)
		meta["error"] = result.Error
	}
	a.Record(ctx, AuditEvent{
		Type:     EventRun,
		Actor:    string(result.Mode),
		Action:   "finish",
		Status:   status(result.Success),
		RunID:    result.RunID,
		TraceID:  result.TraceID,
		Metadata: meta,
	})
}

func status(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
