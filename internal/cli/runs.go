package cli

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/relay/pkg/runstore"
)

func newRunsCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled")
			}

			records, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODE\tSTATUS\tDURATION\tSTARTED")
			for _, r := range records {
				status := "ok"
				if !r.Success {
					status = r.ErrorKind
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.ID, r.Mode, status, formatDuration(r.Duration), r.StartedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to show; 0 shows all")

	showCmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled")
			}

			record, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !json.Valid(record.Result) {
				record.Result = nil
			}
			return writeJSON(cmd.OutOrStdout(), record)
		},
	}

	var (
		maxAge  time.Duration
		maxRuns int
	)
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete runs outside the retention policy",
		Long: `Delete stored runs older than store.max_age and every run beyond the newest
store.max_runs. Flags override the configured policy for this invocation.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.openStore()
			if err != nil {
				return err
			}
			if store == nil {
				return fmt.Errorf("run history is disabled")
			}

			policy := a.retention()
			if cmd.Flags().Changed("max-age") {
				policy.MaxAge = maxAge
			}
			if cmd.Flags().Changed("max-runs") {
				policy.MaxRuns = maxRuns
			}

			deleted, err := runstore.Prune(cmd.Context(), store, policy, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s)\n", deleted)
			return nil
		},
	}
	pruneCmd.Flags().DurationVar(&maxAge, "max-age", 0, "delete runs older than this; 0 disables the age bound")
	pruneCmd.Flags().IntVar(&maxRuns, "max-runs", 0, "keep at most this many runs; 0 disables the count bound")

	cmd.AddCommand(listCmd, showCmd, pruneCmd)
	return cmd
}

// formatDuration renders whole seconds, or milliseconds for sub-second runs
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}

	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
