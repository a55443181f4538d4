package metrics

import (
	"context"

	"github.com/harun/relay/pkg/agent"
	"github.com/harun/relay/pkg/orchestrator"
)

// Outcome label values for agent invocations
const (
	OutcomeAnswered  = "answered"
	OutcomeDelegated = "delegated"
	OutcomeFailed    = "failed"
)

// Observer returns an orchestrator.Observer that records into m
func (m *Metrics) Observer() orchestrator.Observer {
	return observer{m: m}
}

type observer struct {
	m *Metrics
}

func (o observer) AgentInvoked(_ context.Context, mode orchestrator.Mode, agentName string, resp agent.Response, kind orchestrator.ErrorKind) {
	o.m.AgentInvocationsTotal.WithLabelValues(string(mode), agentName, outcome(resp, kind)).Inc()
}

func (o observer) HandoffFinished(_ context.Context, result orchestrator.HandoffResult) {
	for _, hop := range result.Chain {
		o.m.HandoffsTotal.WithLabelValues(hop.FromAgent, hop.ToAgent).Inc()
	}
	o.m.HandoffChainLength.Observe(float64(len(result.Chain)))
	o.finished(orchestrator.ModeHandoff, result.Success, result.ErrorKind, result.TotalDuration.Seconds())
}

func (o observer) OrchestrationFinished(_ context.Context, result orchestrator.OrchestratorResult) {
	for _, r := range result.AgentResults {
		if r.StartTime.IsZero() || r.EndTime.IsZero() {
			continue
		}
		o.m.AgentExecutionDuration.WithLabelValues(string(result.Mode), r.AgentName).
			Observe(r.EndTime.Sub(r.StartTime).Seconds())
	}
	o.finished(result.Mode, result.Success, result.ErrorKind, result.Duration.Seconds())
}

func (o observer) finished(mode orchestrator.Mode, success bool, kind orchestrator.ErrorKind, seconds float64) {
	status := "success"
	if !success {
		status = "failure"
		o.m.RunErrorsTotal.WithLabelValues(string(mode), string(kind)).Inc()
	}
	o.m.RunsTotal.WithLabelValues(string(mode), status).Inc()
	o.m.RunDuration.WithLabelValues(string(mode)).Observe(seconds)
}

func outcome(resp agent.Response, kind orchestrator.ErrorKind) string {
	if kind != orchestrator.KindNone {
		return OutcomeFailed
	}
	switch resp.Kind() {
	case agent.KindAnswer:
		return OutcomeAnswered
	case agent.KindDelegation:
		return OutcomeDelegated
	default:
		return OutcomeFailed
	}
}
