// Package orchestrator coordinates multiple agents.
//
// Three ways of running agents are provided:
//
//   - Router follows delegations dynamically. An agent either answers or asks to hand the
//     request to another agent; the router walks that chain, guarding against cycles,
//     excessive depth and timeouts, and returns the full chain it executed.
//   - Sequential feeds the input through a fixed list of agents, each answer becoming the
//     next agent's input. The first failure stops the pipeline.
//   - Parallel runs a fixed list of agents concurrently on the same input, waits for all of
//     them and combines the answers with an Aggregator (LastResult, FirstSuccess, Merge,
//     Vote or a Custom function).
//
// None of the run methods return an error. Every outcome, including failures, is a
// HandoffResult or OrchestratorResult carrying an ErrorKind and whatever partial trace was
// produced. Result.Err converts a failure into an error matching the kind's sentinel:
//
//	result := router.RunWithHandoff(ctx, "triage", "my invoice is wrong")
//	if errors.Is(result.Err(), orchestrator.ErrCycleDetected) {
//		// inspect result.Chain
//	}
//
// Registries are filled at composition time. A Router reads a snapshot taken when it is
// constructed, and Sequential/Parallel agent lists must not change once runs begin, so the
// run paths take no locks. All run methods are safe to call concurrently.
package orchestrator
