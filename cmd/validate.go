package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brick/internal/config"
)

var validateFormat string

// errInvalidConfig is returned once the problems have been printed.
var errInvalidConfig = errors.New("configuration is invalid")

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration",
	Long: `Check the configuration for errors and warnings:

- log level and format
- server port and host
- watch paths, extensions and debounce
- component tags, inheritance and template files

Warnings are printed but do not fail the command.

Examples:
  brick validate              # Human readable report
  brick validate -f json      # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	addFormatFlag(validateCmd.Flags(), &validateFormat, "text", "json")
}

type validationReport struct {
	Valid    bool                     `json:"valid"`
	Errors   []config.ValidationError `json:"errors"`
	Warnings []config.ValidationError `json:"warnings"`
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Read()
	if err != nil {
		return err
	}

	result := config.ValidateDetails(cfg)
	if err := writeValidation(cmd.OutOrStdout(), result, validateFormat); err != nil {
		return err
	}
	if result.HasErrors() {
		return errInvalidConfig
	}
	return nil
}

func writeValidation(w io.Writer, result *config.ValidationResult, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(validationReport{
			Valid:    !result.HasErrors(),
			Errors:   nonNil(result.Errors),
			Warnings: nonNil(result.Warnings),
		})
	}

	if !result.HasErrors() && !result.HasWarnings() {
		_, err := fmt.Fprintln(w, "Configuration is valid.")
		return err
	}
	_, err := io.WriteString(w, result.String())
	return err
}

func nonNil(issues []config.ValidationError) []config.ValidationError {
	if issues == nil {
		return []config.ValidationError{}
	}
	return issues
}
