// Package agent defines the capability the router and orchestrators invoke.
//
// Invariants:
// - A Response is a tagged union: an answer, a delegation, or a failure.
// - Delegation is never inferred from answer text; agents return Delegate(...) explicitly.
// - Agents are safe for concurrent use and honor context cancellation.
//
// Usage:
//
//	triage := agent.Func("Triage", func(ctx context.Context, input string) (agent.Response, error) {
//		return agent.Delegate("Billing", "billing issue"), nil
//	})
//	billing := agent.NewScripted(agent.ScriptedConfig{Name: "Billing", Answer: "resolved"})
//	_, _ = triage, billing
package agent
