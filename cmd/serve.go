package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brick/internal/server"
	"github.com/conneroisu/brick/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Serve the page with live reload",
	Long: `Serve the rendered page over HTTP. Other paths are served from the
directory of the config file. When live reload is enabled the page is
rendered again after every change in the watched paths and open browsers
reload.

Examples:
  brick serve                     # localhost:8080
  brick serve -p 3000             # Another port
  brick serve --live-reload=false # Render once, no watcher`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	flags := serveCmd.Flags()
	flags.IntP("port", "p", 8080, "Port to serve on")
	flags.String("host", "localhost", "Host to bind to")
	flags.Bool("live-reload", true, "Re-render and reload browsers on changes")

	addPageFlags(serveCmd, flagBindings{
		"server.port":        "port",
		"server.host":        "host",
		"server.live_reload": "live-reload",
	})
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	stderr := cmd.ErrOrStderr()
	srv := server.New(cfg, logger)
	result, err := srv.Rebuild(ctx)
	if err != nil {
		return err
	}
	reportFailures(stderr, result)

	if cfg.Server.LiveReload {
		fw, err := startWatcher(ctx, cfg, logger, func(ctx context.Context, events []watcher.ChangeEvent) error {
			reloadConfig(events, srv.Builder(), stderr)
			result, err := srv.Rebuild(ctx)
			if err != nil {
				return err
			}
			reportFailures(stderr, result)
			return nil
		})
		if err != nil {
			return err
		}
		defer fw.Stop()
	}

	return srv.ListenAndServe(ctx, func(addr string) {
		fmt.Fprintf(cmd.OutOrStdout(), "Serving %s on http://%s\n", cfg.Page.Input, addr)
	})
}
