package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "0.1.0"

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	configFile string
	logLevel   string
	agentsFile string
	noHistory  bool
}

// NewRootCmd builds the command tree. Each call returns an independent tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "relay",
		Short: "Relay - agent handoff routing and orchestration",
		Long: `Relay routes a request through a chain of agents that may delegate to one
another, and composes agents into sequential pipelines or parallel fan-outs
whose answers are aggregated into one result.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "config file (default is $HOME/.relay/relay.json)")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().StringVarP(&opts.agentsFile, "agents", "a", "", "agent set file (YAML or JSON); overrides agents_file")
	rootCmd.PersistentFlags().BoolVar(&opts.noHistory, "no-history", false, "do not save runs to the run store")

	rootCmd.SetVersionTemplate(`{{with .Name}}{{printf "%s " .}}{{end}}{{printf "version %s" .Version}}
`)

	rootCmd.AddCommand(
		newHandoffCmd(opts),
		newPipelineCmd(opts),
		newFanoutCmd(opts),
		newAgentsCmd(opts),
		newRunsCmd(opts),
		newServeCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

// Execute runs the relay command tree. This is called by main.main().
func Execute() error {
	return NewRootCmd().Execute()
}

// GetVersion returns the current version
func GetVersion() string {
	return version
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the relay version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "relay version %s\n", version)
		},
	}
}
