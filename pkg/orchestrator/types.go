package orchestrator

import (
	"context"
	"time"

	"github.com/harun/relay/pkg/agent"
)

// Mode names the kind of run that produced a result
type Mode string

const (
	ModeHandoff    Mode = "handoff"
	ModeSequential Mode = "sequential"
	ModeParallel   Mode = "parallel"
)

// HandoffRecord is one delegation hop in a handoff chain.
// FromAgent is empty only for a hop originating from the caller.
type HandoffRecord struct {
	FromAgent string    `json:"from_agent,omitempty"`
	ToAgent   string    `json:"to_agent"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// HandoffResult is the self-contained outcome of one routing session
type HandoffResult struct {
	RunID           string          `json:"run_id"`
	TraceID         string          `json:"trace_id,omitempty"`
	Success         bool            `json:"success"`
	Chain           []HandoffRecord `json:"chain"`
	ExecutedByAgent string          `json:"executed_by_agent,omitempty"`
	FinalResponse   agent.Response  `json:"final_response"`
	ErrorKind       ErrorKind       `json:"error_kind,omitempty"`
	Error           string          `json:"error,omitempty"`
	StartedAt       time.Time       `json:"started_at"`
	TotalDuration   time.Duration   `json:"total_duration"`
}

// Err returns the failure as an error matching the kind's sentinel, or nil on success
func (r HandoffResult) Err() error {
	if r.Success {
		return nil
	}
	return &RunError{Kind: r.ErrorKind, Message: r.Error}
}

// AgentExecutionRecord captures one agent invocation inside an orchestrated run.
// ExecutionOrder is the pipeline step for sequential runs and the registration index for parallel runs.
type AgentExecutionRecord struct {
	AgentName      string         `json:"agent_name"`
	ExecutionOrder int            `json:"execution_order"`
	Input          string         `json:"input"`
	Response       agent.Response `json:"response"`
	ErrorKind      ErrorKind      `json:"error_kind,omitempty"`
	StartTime      time.Time      `json:"start_time"`
	EndTime        time.Time      `json:"end_time"`
}

// Succeeded reports whether the agent produced a usable answer
func (r AgentExecutionRecord) Succeeded() bool {
	return r.ErrorKind == KindNone && r.Response.Kind() == agent.KindAnswer
}

// OrchestratorResult is the self-contained outcome of a sequential or parallel run
type OrchestratorResult struct {
	RunID        string                 `json:"run_id"`
	TraceID      string                 `json:"trace_id,omitempty"`
	Mode         Mode                   `json:"mode"`
	Success      bool                   `json:"success"`
	FinalOutput  string                 `json:"final_output"`
	AgentResults []AgentExecutionRecord `json:"agent_results"`
	ErrorKind    ErrorKind              `json:"error_kind,omitempty"`
	Error        string                 `json:"error,omitempty"`
	StartedAt    time.Time              `json:"started_at"`
	Duration     time.Duration          `json:"duration"`
}

// Err returns the failure as an error matching the kind's sentinel, or nil on success
func (r OrchestratorResult) Err() error {
	if r.Success {
		return nil
	}
	return &RunError{Kind: r.ErrorKind, Message: r.Error}
}

// Logger interface for logging
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})         {}
func (nopLogger) Error(string, error, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{})        {}

// Observer is notified as runs progress. Implementations must be safe for concurrent use.
type Observer interface {
	AgentInvoked(ctx context.Context, mode Mode, agentName string, resp agent.Response, kind ErrorKind)
	HandoffFinished(ctx context.Context, result HandoffResult)
	OrchestrationFinished(ctx context.Context, result OrchestratorResult)
}

type multiObserver []Observer

// Observers combines several observers into one
func Observers(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (m multiObserver) AgentInvoked(ctx context.Context, mode Mode, agentName string, resp agent.Response, kind ErrorKind) {
	for _, o := range m {
		o.AgentInvoked(ctx, mode, agentName, resp, kind)
	}
}

func (m multiObserver) HandoffFinished(ctx context.Context, result HandoffResult) {
	for _, o := range m {
		o.HandoffFinished(ctx, result)
	}
}

func (m multiObserver) OrchestrationFinished(ctx context.Context, result OrchestratorResult) {
	for _, o := range m {
		o.OrchestrationFinished(ctx, result)
	}
}
