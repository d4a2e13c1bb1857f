package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/brick/internal/components"
	"github.com/conneroisu/brick/internal/config"
	"github.com/conneroisu/brick/pkg/brick"
	"github.com/conneroisu/brick/pkg/dom"
)

var listFormat string

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"l"},
	Short:   "List the declared components",
	Long: `List the components declared in the configuration with their resolved
options, after inheritance.

Examples:
  brick list              # Table
  brick list -f json      # JSON
  brick list -f yaml      # YAML`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	addFormatFlag(listCmd.Flags(), &listFormat, "table", "json", "yaml")
}

// componentInfo is the listed view of one registered class.
type componentInfo struct {
	Tag                string   `json:"tag" yaml:"tag"`
	Extends            string   `json:"extends,omitempty" yaml:"extends,omitempty"`
	Template           string   `json:"template" yaml:"template"`
	Selector           string   `json:"selector" yaml:"selector"`
	RenderOnConstruct  bool     `json:"render_on_construct" yaml:"render_on_construct"`
	CleanOnConstruct   bool     `json:"clean_on_construct" yaml:"clean_on_construct"`
	ObserveAttributes  bool     `json:"observe_attributes" yaml:"observe_attributes"`
	ObservedAttributes []string `json:"observed_attributes,omitempty" yaml:"observed_attributes,omitempty"`
	RegisterSubBricks  bool     `json:"register_sub_bricks_on_render" yaml:"register_sub_bricks_on_render"`
	RootCSSClasses     []string `json:"root_css_classes,omitempty" yaml:"root_css_classes,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	doc := dom.NewDocument()
	defer doc.Close()
	reg := brick.NewRegistry(doc, brick.WithLogger(logger))
	defer reg.Close()

	classes, err := components.Register(reg, cfg.Components, cfg.BaseDir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(classes) == 0 {
		_, err := fmt.Fprintln(out, "No components declared.")
		return err
	}
	return writeComponents(out, describe(cfg.Components, classes), listFormat)
}

func describe(cfgs []config.ComponentConfig, classes []*brick.Class) []componentInfo {
	infos := make([]componentInfo, len(classes))
	for i, class := range classes {
		opts := class.Options()
		info := componentInfo{
			Tag:                class.Tag(),
			Selector:           class.Selector(),
			Template:           templateSource(cfgs[i], class),
			RenderOnConstruct:  opts.RenderOnConstruct,
			CleanOnConstruct:   opts.CleanOnConstruct,
			ObserveAttributes:  opts.ObserveAttributes,
			ObservedAttributes: opts.ObservedAttributes,
			RegisterSubBricks:  opts.RegisterSubBricksOnRender,
			RootCSSClasses:     opts.RootCSSClasses,
		}
		if parent := class.Parent(); parent != nil {
			info.Extends = parent.Tag()
		}
		infos[i] = info
	}
	return infos
}

func templateSource(c config.ComponentConfig, class *brick.Class) string {
	switch {
	case c.TemplateFile != "":
		return c.TemplateFile
	case c.Template != "":
		return "inline"
	case class.HasTemplate():
		return "inherited"
	default:
		return "none"
	}
}

func writeComponents(w io.Writer, infos []componentInfo, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(infos)
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TAG\tEXTENDS\tTEMPLATE\tOBSERVES\tCLASSES")
		for _, info := range infos {
			observes := "-"
			switch {
			case len(info.ObservedAttributes) > 0:
				observes = strings.Join(info.ObservedAttributes, ",")
			case info.ObserveAttributes:
				observes = "*"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				info.Tag,
				orDash(info.Extends),
				info.Template,
				observes,
				orDash(strings.Join(info.RootCSSClasses, " ")))
		}
		return tw.Flush()
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
