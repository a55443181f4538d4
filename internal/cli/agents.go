package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/harun/relay/pkg/agentset"
)

func newAgentsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agents",
		Short: "Inspect agent set files",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "validate [file]",
			Short: "Validate an agent set file and build its agents",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 1 {
					opts.agentsFile = args[0]
				}
				a, err := newApp(opts)
				if err != nil {
					return err
				}
				defer a.Close()

				set, err := a.agentSet("")
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d agents, start %s, strategy %s)\n",
					a.cfg.AgentsFile, set.Registry.Len(), set.StartAgent, set.Parallel.Strategy())
				return nil
			},
		},
		&cobra.Command{
			Use:   "list [file]",
			Short: "List the agents of an agent set file",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				if len(args) == 1 {
					opts.agentsFile = args[0]
				}
				a, err := newApp(opts)
				if err != nil {
					return err
				}
				defer a.Close()

				def, err := a.loadDefinition()
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tTYPE\tBEHAVIOUR")
				for _, d := range def.Agents {
					fmt.Fprintf(w, "%s\t%s\t%s\n", d.Name, d.AgentType(), describeAgent(d))
				}
				return w.Flush()
			},
		},
	)

	return cmd
}

func describeAgent(d agentset.AgentDefinition) string {
	if d.AgentType() == agentset.TypeLLM {
		desc := fmt.Sprintf("profile=%s model=%s", d.Profile, d.Model)
		if len(d.HandoffTargets) > 0 {
			desc += " handoff=" + strings.Join(d.HandoffTargets, ",")
		}
		return desc
	}

	switch {
	case d.Fail != "":
		return "fails: " + d.Fail
	case d.DelegateTo != "":
		return "delegates to " + d.DelegateTo
	default:
		return "answers"
	}
}
