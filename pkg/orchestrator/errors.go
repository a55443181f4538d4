package orchestrator

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why a run did not succeed
type ErrorKind string

const (
	KindNone                 ErrorKind = ""
	KindUnknownAgent         ErrorKind = "UnknownAgent"
	KindCycleDetected        ErrorKind = "CycleDetected"
	KindDepthExceeded        ErrorKind = "DepthExceeded"
	KindTimedOut             ErrorKind = "TimedOut"
	KindCancelled            ErrorKind = "Cancelled"
	KindAgentExecutionFailed ErrorKind = "AgentExecutionFailed"
	KindAllAgentsFailed      ErrorKind = "AllAgentsFailed"
	KindDuplicateAgentName   ErrorKind = "DuplicateAgentName"
	KindNoAgents             ErrorKind = "NoAgents"
)

var (
	ErrUnknownAgent         = errors.New("unknown agent")
	ErrCycleDetected        = errors.New("handoff cycle detected")
	ErrDepthExceeded        = errors.New("handoff depth exceeded")
	ErrTimedOut             = errors.New("timed out")
	ErrCancelled            = errors.New("cancelled")
	ErrAgentExecutionFailed = errors.New("agent execution failed")
	ErrAllAgentsFailed      = errors.New("all agents failed")
	ErrDuplicateAgentName   = errors.New("duplicate agent name")
	ErrNoAgents             = errors.New("no agents configured")
)

var kindErrors = map[ErrorKind]error{
	KindUnknownAgent:         ErrUnknownAgent,
	KindCycleDetected:        ErrCycleDetected,
	KindDepthExceeded:        ErrDepthExceeded,
	KindTimedOut:             ErrTimedOut,
	KindCancelled:            ErrCancelled,
	KindAgentExecutionFailed: ErrAgentExecutionFailed,
	KindAllAgentsFailed:      ErrAllAgentsFailed,
	KindDuplicateAgentName:   ErrDuplicateAgentName,
	KindNoAgents:             ErrNoAgents,
}

// Err returns the sentinel error for the kind, or nil for KindNone
func (k ErrorKind) Err() error {
	return kindErrors[k]
}

// RunError pairs an ErrorKind with the detail message carried in results
type RunError struct {
	Kind    ErrorKind
	Message string
}

func (e *RunError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is match the kind's sentinel
func (e *RunError) Unwrap() error {
	return e.Kind.Err()
}
