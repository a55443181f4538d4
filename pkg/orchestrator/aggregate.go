package orchestrator

import (
	"errors"
	"fmt"
	"strings"
)

// Aggregator reduces the successful records of a parallel run, in registration order,
// to one output. Aggregators must be pure: same records, same output.
type Aggregator func(successful []AgentExecutionRecord) string

// Strategy names accepted by AggregatorByName
const (
	StrategyLast         = "last"
	StrategyFirstSuccess = "first_success"
	StrategyMerge        = "merge"
	StrategyVote         = "vote"
	StrategyCustom       = "custom"
)

// LastResult picks the answer that finished last. Completion order depends on
// scheduling, so repeated runs may pick different agents.
func LastResult(successful []AgentExecutionRecord) string {
	if len(successful) == 0 {
		return ""
	}
	last := successful[0]
	for _, r := range successful[1:] {
		if r.EndTime.After(last.EndTime) {
			last = r
		}
	}
	return last.Response.FinalAnswer
}

// FirstSuccess picks the first successful answer in registration order
func FirstSuccess(successful []AgentExecutionRecord) string {
	if len(successful) == 0 {
		return ""
	}
	return successful[0].Response.FinalAnswer
}

// Merge concatenates every answer labelled with its agent name
func Merge(successful []AgentExecutionRecord) string {
	parts := make([]string, 0, len(successful))
	for _, r := range successful {
		parts = append(parts, fmt.Sprintf("[%s]: %s", r.AgentName, r.Response.FinalAnswer))
	}
	return strings.Join(parts, "\n\n")
}

// Vote returns the answer given verbatim by the most agents. Ties go to the group
// whose first member registered earliest. Matching is exact text only.
func Vote(successful []AgentExecutionRecord) string {
	counts := make(map[string]int)
	var order []string
	for _, r := range successful {
		answer := r.Response.FinalAnswer
		if _, seen := counts[answer]; !seen {
			order = append(order, answer)
		}
		counts[answer]++
	}

	winner, best := "", 0
	for _, answer := range order {
		if counts[answer] > best {
			winner, best = answer, counts[answer]
		}
	}
	return winner
}

// Custom wraps a caller-supplied aggregation function
func Custom(fn func(successful []AgentExecutionRecord) string) Aggregator {
	return Aggregator(fn)
}

// ErrCustomAggregator is returned when the custom strategy is requested by name alone
var ErrCustomAggregator = errors.New("custom aggregation needs a function and cannot be selected by name")

// AggregatorByName resolves a built-in strategy by name
func AggregatorByName(name string) (Aggregator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case StrategyLast, "last_result":
		return LastResult, nil
	case StrategyFirstSuccess, "":
		return FirstSuccess, nil
	case StrategyMerge:
		return Merge, nil
	case StrategyVote:
		return Vote, nil
	case StrategyCustom:
		return nil, fmt.Errorf("%w: pass WithAggregator(%q, Custom(fn)) from code", ErrCustomAggregator, StrategyCustom)
	default:
		return nil, fmt.Errorf("unknown aggregation strategy: %s (supported: %s, %s, %s, %s)",
			name, StrategyLast, StrategyFirstSuccess, StrategyMerge, StrategyVote)
	}
}
