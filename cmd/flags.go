package cmd

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// enumValue is a string flag restricted to a fixed set of values.
type enumValue struct {
	value   *string
	allowed []string
}

var _ pflag.Value = (*enumValue)(nil)

func newEnumValue(p *string, def string, allowed ...string) *enumValue {
	*p = def
	return &enumValue{value: p, allowed: allowed}
}

func (e *enumValue) String() string { return *e.value }

func (e *enumValue) Set(s string) error {
	s = strings.ToLower(strings.TrimSpace(s))
	if !slices.Contains(e.allowed, s) {
		return fmt.Errorf("must be one of %s", strings.Join(e.allowed, ", "))
	}
	*e.value = s
	return nil
}

func (e *enumValue) Type() string { return "string" }

// addFormatFlag adds --format/-f accepting the given output formats; the
// first one is the default.
func addFormatFlag(fs *pflag.FlagSet, p *string, formats ...string) {
	fs.VarP(newEnumValue(p, formats[0], formats...), "format", "f",
		fmt.Sprintf("output format (%s)", strings.Join(formats, ", ")))
}

// flagBindings maps viper keys to flag names of one command.
type flagBindings map[string]string

// bindOnRun binds the flags when cmd runs. Binding in init would let the
// last command registering a key win for every command.
func bindOnRun(cmd *cobra.Command, bindings flagBindings) {
	cmd.PreRunE = func(cmd *cobra.Command, _ []string) error {
		for key, name := range bindings {
			if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
		return nil
	}
}

// addPageFlags adds the flags selecting the page to render.
func addPageFlags(cmd *cobra.Command, extra flagBindings) {
	flags := cmd.Flags()
	flags.StringP("input", "i", "index.html", "HTML page to render")
	flags.StringP("output", "o", "", "file to write the rendered page to")
	flags.Bool("overlay", true, "append an error overlay when components fail")

	bindings := flagBindings{
		"page.input":         "input",
		"page.output":        "output",
		"page.error_overlay": "overlay",
	}
	for k, v := range extra {
		bindings[k] = v
	}
	bindOnRun(cmd, bindings)
}
