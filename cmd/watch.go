package cmd

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/brick/internal/config"
	"github.com/conneroisu/brick/internal/logging"
	"github.com/conneroisu/brick/internal/renderer"
	"github.com/conneroisu/brick/internal/watcher"
)

var watchVerbose bool

var watchCmd = &cobra.Command{
	Use:     "watch",
	Aliases: []string{"w"},
	Short:   "Re-render the page whenever a source changes",
	Long: `Render the page, then watch the configured paths and render it again
after every batch of changes to a watched extension. Changes to the config
file reload the component declarations.

Examples:
  brick watch                 # Watch watch.paths
  brick watch -o dist/index.html
  brick watch -v              # List every changed file`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().BoolVarP(&watchVerbose, "verbose", "v", false, "Verbose output")
	watchCmd.Flags().Duration("debounce", 0, "delay before a batch of changes is rendered")
	addPageFlags(watchCmd, flagBindings{"watch.debounce": "debounce"})
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cfg.Page.Output == "" {
		return fmt.Errorf("watch needs page.output or --output to write to")
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	out, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	pages := renderer.NewBuilder(cfg, logger)
	rebuild := func(ctx context.Context) {
		if result, err := pages.Build(ctx, io.Discard); err != nil {
			fmt.Fprintf(stderr, "render failed: %v\n", err)
		} else {
			reportFailures(stderr, result)
			fmt.Fprintf(out, "rendered %s (%d components) in %s\n",
				pages.Config().Page.Output, result.Components, result.Duration)
		}
	}

	fw, err := startWatcher(ctx, cfg, logger, func(ctx context.Context, events []watcher.ChangeEvent) error {
		if watchVerbose {
			for _, ev := range events {
				fmt.Fprintf(out, "  %s: %s\n", ev.Type, ev.Path)
			}
		} else {
			fmt.Fprintf(out, "%d file(s) changed\n", len(events))
		}
		reloadConfig(events, pages, stderr)
		rebuild(ctx)
		return nil
	})
	if err != nil {
		return err
	}
	defer fw.Stop()

	rebuild(ctx)
	fmt.Fprintln(out, "Watching for changes... (Press Ctrl+C to stop)")

	<-ctx.Done()
	return nil
}

// startWatcher watches cfg.Watch.Paths for the configured extensions,
// ignoring the rendered output, and calls handle for every batch.
func startWatcher(ctx context.Context, cfg *config.Config, logger logging.Logger, handle watcher.ChangeHandler) (*watcher.FileWatcher, error) {
	fw, err := watcher.NewFileWatcher(cfg.Watch.Debounce, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	fw.AddFilter(watcher.ExtensionFilter(cfg.Watch.Extensions...))
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoVendorFilter)
	fw.AddFilter(watcher.NoEditorFilter)
	if cfg.Page.Output != "" {
		fw.AddFilter(watcher.ExcludeFilter(cfg.Page.Output))
	}
	fw.AddHandler(handle)

	for _, path := range cfg.Watch.Paths {
		if err := fw.AddRecursive(path); err != nil {
			_ = fw.Stop()
			return nil, fmt.Errorf("failed to watch %s: %w", path, err)
		}
	}

	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	return fw, nil
}

// reloadConfig swaps in the reread configuration when events touch the
// config file. On failure the previous configuration stays in use.
func reloadConfig(events []watcher.ChangeEvent, pages *renderer.Builder, stderr io.Writer) {
	if !touchesConfig(events) {
		return
	}
	cfg, err := config.Reload()
	if err != nil {
		fmt.Fprintf(stderr, "keeping previous configuration: %v\n", err)
		return
	}
	pages.SetConfig(cfg)
}

// touchesConfig reports whether events include the config file in use.
func touchesConfig(events []watcher.ChangeEvent) bool {
	used := viper.ConfigFileUsed()
	if used == "" {
		return false
	}
	usedAbs, err := filepath.Abs(used)
	if err != nil {
		return false
	}
	for _, ev := range events {
		if abs, err := filepath.Abs(ev.Path); err == nil && abs == usedAbs {
			return true
		}
	}
	return false
}
