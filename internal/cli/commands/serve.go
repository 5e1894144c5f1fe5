package commands

import (
	"fmt"

	"github.com/leapstack-labs/tmplsync/internal/api"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Start the HTTP API for listing templates, rendering implementations,
triggering syncs and reading sync history. /api/events streams run
results as server-sent events. With --watch the jobs directory is watched
too, as in 'tmplsync watch'.`,
		Example: `  # Start on default port (8787)
  tmplsync serve

  # Start on custom port and watch for edits
  tmplsync serve --port 9000 --watch`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			cfg := cmdCtx.Cfg
			server := api.NewServer(api.Config{
				Engine:   cmdCtx.Engine,
				Port:     cfg.Serve.Port,
				Watch:    cfg.Serve.Watch,
				JobsDir:  cfg.JobsDir,
				Debounce: cfg.Watch.Debounce,
				Logger:   cmdCtx.Logger,
			})

			cmdCtx.Renderer.Println(fmt.Sprintf("Serving API on http://localhost:%d", cfg.Serve.Port))
			return server.Serve(cmd.Context())
		},
	}

	cmd.Flags().Int("port", 0, "Port to serve on (default from config)")
	cmd.Flags().Bool("watch", false, "Watch the jobs directory for template edits")

	return cmd
}
