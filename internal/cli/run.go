package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/relay/pkg/agentset"
	"github.com/harun/relay/pkg/runstore"
)

func newHandoffCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "handoff <start-agent> <input...>",
		Short: "Route input through a handoff chain",
		Long: `Start at the named agent and follow delegations until an agent answers,
a cycle or the depth limit is hit, or a timeout expires. Prints the handoff
result as JSON and exits non-zero when the run failed.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, opts, "", func(ctx context.Context, r *runner) error {
				input := strings.Join(args[1:], " ")
				result := r.set.Router.RunWithHandoff(ctx, args[0], input)
				r.save(ctx, func() (*runstore.RunRecord, error) {
					return runstore.FromHandoff(input, result)
				})
				return r.print(result, result.Err())
			})
		},
	}
}

func newPipelineCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pipeline <input...>",
		Short: "Run the sequential pipeline",
		Long: `Feed input to the first agent of the configured sequential pipeline and each
answer to the next agent. Prints the orchestrator result as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, opts, "", func(ctx context.Context, r *runner) error {
				input := strings.Join(args, " ")
				result := r.set.Sequential.Run(ctx, input)
				r.save(ctx, func() (*runstore.RunRecord, error) {
					return runstore.FromOrchestration(input, result)
				})
				return r.print(result, result.Err())
			})
		},
	}
}

func newFanoutCmd(opts *globalOptions) *cobra.Command {
	var strategy string

	cmd := &cobra.Command{
		Use:   "fanout <input...>",
		Short: "Run the parallel fan-out and aggregate the answers",
		Long: `Run every agent of the configured parallel group on the same input and
combine the successful answers with the aggregation strategy
(last, first_success, merge, vote). Prints the orchestrator result as JSON.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, opts, strategy, func(ctx context.Context, r *runner) error {
				input := strings.Join(args, " ")
				result := r.set.Parallel.Run(ctx, input)
				r.save(ctx, func() (*runstore.RunRecord, error) {
					return runstore.FromOrchestration(input, result)
				})
				return r.print(result, result.Err())
			})
		},
	}

	cmd.Flags().StringVarP(&strategy, "strategy", "s", "", "aggregation strategy; overrides the agent set and config")
	return cmd
}

// runner carries what a run command needs once the app is up
type runner struct {
	app   *app
	set   *agentset.AgentSet
	store runstore.Store
	out   io.Writer
}

// runCommand boots the app, builds the agent set and executes fn with a context
// cancelled on SIGINT or SIGTERM.
func runCommand(cmd *cobra.Command, opts *globalOptions, strategy string, fn func(context.Context, *runner) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	set, err := a.agentSet(strategy)
	if err != nil {
		return err
	}
	store, err := a.openStore()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return fn(ctx, &runner{app: a, set: set, store: store, out: cmd.OutOrStdout()})
}

// save persists a finished run; a storage failure is logged, not returned
func (r *runner) save(ctx context.Context, build func() (*runstore.RunRecord, error)) {
	if r.store == nil {
		return
	}
	record, err := build()
	if err == nil {
		err = r.store.Save(context.WithoutCancel(ctx), record)
	}
	if err != nil {
		r.app.log.Error().Err(err).Msg("Failed to save run")
	}
}

// print writes v as indented JSON and passes runErr through so failed runs exit non-zero
func (r *runner) print(v interface{}, runErr error) error {
	if err := writeJSON(r.out, v); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
