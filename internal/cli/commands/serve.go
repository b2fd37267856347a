package commands

import (
	"github.com/spf13/cobra"

	"github.com/harmonize-tools/s4h-workbench/internal/server"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workbench stages as a JSON API",
		Long: `Start an HTTP server exposing one session over a JSON API.

Every stage has an endpoint under /api; stage outcomes are streamed to
subscribers of /api/events, and Prometheus metrics are served at /metrics
when enabled. The server stops gracefully on interrupt.`,
		Example: `  # Serve on the configured address (default 127.0.0.1:8080)
  s4h serve

  # Serve on all interfaces without metrics
  s4h serve --addr :9000 --metrics=false`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	// Read through the config loader: addr maps to server.addr and
	// metrics to metrics.enabled.
	cmd.Flags().String("addr", "", "Address to listen on")
	cmd.Flags().Bool("metrics", true, "Serve Prometheus metrics at /metrics")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cctx, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(server.Config{
		Engine:   cctx.Engine,
		Metrics:  cctx.Metrics,
		Settings: cctx.Cfg.Settings,
		Logger:   cctx.Logger,
	})

	cctx.Renderer.Printf("Serving session %s on http://%s\n", cctx.Engine.SessionID(), cctx.Cfg.Server.Addr)
	cctx.Renderer.Println("Press Ctrl+C to stop")
	return srv.Serve(cmd.Context())
}
