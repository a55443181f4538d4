package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/harun/relay/internal/tracing"
	"github.com/harun/relay/pkg/agent"
)

const tracerName = "github.com/harun/relay/pkg/orchestrator"

// invocation is the outcome of calling one agent once
type invocation struct {
	resp    agent.Response
	kind    ErrorKind
	message string
	start   time.Time
	end     time.Time
}

type runOutcome struct {
	resp agent.Response
	err  error
}

// invoke is the single boundary between the core and an agent. Errors, panics,
// Success=false responses and context expiry all come back as a classified invocation.
// It returns as soon as ctx is done even if the agent ignores cancellation.
func invoke(ctx context.Context, mode Mode, a agent.Agent, input string) invocation {
	ctx, span := tracing.StartSpan(ctx, tracerName, "agent.run",
		attribute.String("relay.mode", string(mode)),
		attribute.String("relay.agent", a.Name()),
	)
	defer span.End()

	inv := invocation{start: time.Now()}
	done := make(chan runOutcome, 1)

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- runOutcome{err: fmt.Errorf("agent panicked: %v", p)}
			}
		}()
		resp, err := a.Run(tracing.PropagateToAgent(ctx, a.Name()), input)
		done <- runOutcome{resp: resp, err: err}
	}()

	var out runOutcome
	select {
	case out = <-done:
	case <-ctx.Done():
		select {
		case out = <-done:
		default:
			out = runOutcome{err: ctx.Err()}
		}
	}
	inv.end = time.Now()

	inv.resp = out.resp
	if inv.resp.Duration == 0 {
		inv.resp.Duration = inv.end.Sub(inv.start)
	}

	switch {
	case out.err != nil && ctx.Err() != nil:
		inv.kind = contextKind(ctx.Err())
		inv.message = fmt.Sprintf("agent %s: %v", a.Name(), ctx.Err())
		inv.resp.Success = false
		inv.resp.Error = out.err.Error()
	case out.err != nil:
		inv.kind = KindAgentExecutionFailed
		inv.message = fmt.Sprintf("agent %s: %v", a.Name(), out.err)
		inv.resp.Success = false
		inv.resp.Error = out.err.Error()
	case !out.resp.Success:
		inv.kind = KindAgentExecutionFailed
		msg := out.resp.Error
		if msg == "" {
			msg = "agent reported failure"
		}
		inv.message = fmt.Sprintf("agent %s: %s", a.Name(), msg)
	}

	if inv.kind != KindNone {
		span.SetStatus(codes.Error, inv.message)
	} else {
		span.SetAttributes(attribute.String("relay.response_kind", string(inv.resp.Kind())))
	}

	return inv
}

func contextKind(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimedOut
	}
	return KindCancelled
}

// withTimeout derives a context bounded by d; d <= 0 leaves ctx unbounded
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
