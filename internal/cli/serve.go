package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harun/relay/internal/server"
	"github.com/harun/relay/pkg/runstore"
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent set over HTTP",
		Long: `Start the HTTP API: POST /v1/handoff, /v1/sequential and /v1/parallel run the
agent set; GET /v1/runs lists history; /health and /metrics support operations.
Run history is pruned per store.max_age and store.max_runs while serving.
Stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			a.enableMetrics()
			set, err := a.agentSet("")
			if err != nil {
				return err
			}
			store, err := a.openStore()
			if err != nil {
				return err
			}

			sc := a.cfg.Server
			if cmd.Flags().Changed("host") {
				sc.Host = host
			}
			if cmd.Flags().Changed("port") {
				sc.Port = port
			}

			srv, err := server.NewServer(server.Options{
				Host:               sc.Host,
				Port:               sc.Port,
				ReadTimeout:        sc.ReadTimeout,
				WriteTimeout:       sc.WriteTimeout,
				ShutdownTimeout:    sc.ShutdownTimeout,
				MaxBodyBytes:       sc.MaxBodyBytes,
				RateLimitPerMinute: sc.RateLimit,
				TrustProxy:         sc.TrustProxy,
				ServiceName:        a.cfg.Tracing.ServiceName,
			}, set, store, a.metrics, a.log.GetZerolog())
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if store != nil && a.retention().Enabled() {
				janitor := runstore.NewJanitor(store, a.retention(), a.cfg.Store.PruneInterval, a.log.GetZerolog())
				if err := janitor.Start(ctx); err != nil {
					return err
				}
				defer janitor.Stop()
			}

			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host; overrides server.host")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port; overrides server.port")
	return cmd
}
