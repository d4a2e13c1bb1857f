package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brick/internal/renderer"
)

var (
	renderComponent string
	renderData      map[string]string
)

var renderCmd = &cobra.Command{
	Use:     "render",
	Aliases: []string{"r"},
	Short:   "Render the page once",
	Long: `Render the configured page: every element matching a declared component
is upgraded and rendered, and the page is written to the output file, or to
stdout when no output is configured.

Component failures do not stop the page; they are reported on stderr and,
unless disabled, shown in an overlay at the end of the body.

Examples:
  brick render                              # page.input to page.output
  brick render -i site.html -o dist/index.html
  brick render --component greeting --set name=Ada`,
	Args: cobra.NoArgs,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	addPageFlags(renderCmd, nil)
	renderCmd.Flags().StringVar(&renderComponent, "component", "", "render a single component instead of the page")
	renderCmd.Flags().StringToStringVar(&renderData, "set", nil, "view-model values for --component (key=value)")
}

func runRender(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if renderComponent != "" {
		args := make(map[string]any, len(renderData))
		for k, v := range renderData {
			args[k] = v
		}
		html, err := renderer.NewPageRenderer(cfg, logger).RenderComponent(ctx, renderComponent, args)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), html)
		return err
	}

	result, err := renderer.NewPageRenderer(cfg, logger).RenderPage(ctx, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	reportFailures(cmd.ErrOrStderr(), result)
	return nil
}

// reportFailures prints one line per component failure.
func reportFailures(w io.Writer, result *renderer.Result) {
	if result == nil {
		return
	}
	for _, f := range result.Failures {
		fmt.Fprintf(w, "component %s failed", f.Tag)
		if f.Stage != "" {
			fmt.Fprintf(w, " during %s", f.Stage)
		}
		fmt.Fprintf(w, ": %v\n", f.Err)
	}
}
