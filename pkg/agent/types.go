package agent

import (
	"context"
	"time"
)

// Agent is a named worker that turns an input into a Response.
// Implementations must be safe for concurrent use and should return promptly once ctx is done.
type Agent interface {
	Name() string
	Run(ctx context.Context, input string) (Response, error)
}

// ResponseKind tells which variant a Response carries
type ResponseKind string

const (
	KindAnswer     ResponseKind = "answer"
	KindDelegation ResponseKind = "delegation"
	KindFailure    ResponseKind = "failure"
)

// Delegation asks the router to hand the request to another agent
type Delegation struct {
	TargetAgent string  `json:"target_agent"`
	Reason      string  `json:"reason,omitempty"`
	Payload     *string `json:"payload,omitempty"` // nil keeps the current input
}

// Response is the outcome of a single agent run.
// When Success is true exactly one of FinalAnswer or Delegation is meaningful.
type Response struct {
	Success     bool          `json:"success"`
	FinalAnswer string        `json:"final_answer,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	Delegation  *Delegation   `json:"delegation,omitempty"`
}

// Answer builds a successful final-answer response
func Answer(text string) Response {
	return Response{Success: true, FinalAnswer: text}
}

// Delegate builds a response that hands control to target, keeping the current input
func Delegate(target, reason string) Response {
	return Response{
		Success:    true,
		Delegation: &Delegation{TargetAgent: target, Reason: reason},
	}
}

// DelegateWithPayload builds a delegation that replaces the input seen by target
func DelegateWithPayload(target, reason, payload string) Response {
	p := payload
	return Response{
		Success:    true,
		Delegation: &Delegation{TargetAgent: target, Reason: reason, Payload: &p},
	}
}

// Failure builds an unsuccessful response
func Failure(msg string) Response {
	return Response{Success: false, Error: msg}
}

// Kind reports which variant the response carries
func (r Response) Kind() ResponseKind {
	if !r.Success {
		return KindFailure
	}
	if r.Delegation != nil {
		return KindDelegation
	}
	return KindAnswer
}

// IsDelegation is a shorthand for Kind() == KindDelegation
func (r Response) IsDelegation() bool {
	return r.Kind() == KindDelegation
}

// funcAgent adapts a plain function to the Agent interface
type funcAgent struct {
	name string
	fn   func(ctx context.Context, input string) (Response, error)
}

// Func wraps fn as an Agent called name
func Func(name string, fn func(ctx context.Context, input string) (Response, error)) Agent {
	return &funcAgent{name: name, fn: fn}
}

func (f *funcAgent) Name() string { return f.name }

func (f *funcAgent) Run(ctx context.Context, input string) (Response, error) {
	return f.fn(ctx, input)
}
