package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brick/internal/version"
)

var (
	versionFormat   string
	versionShort    bool
	versionDetailed bool
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display the version brick was built from.

Examples:
  brick version               # Version, commit and platform
  brick version --short       # Version only
  brick version --detailed    # Every known build field
  brick version -f json       # Output as JSON`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeVersion(cmd.OutOrStdout(), version.Get())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	addFormatFlag(versionCmd.Flags(), &versionFormat, "text", "json")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().BoolVar(&versionDetailed, "detailed", false, "Show detailed version information")
}

func writeVersion(w io.Writer, info *version.BuildInfo) error {
	switch {
	case versionFormat == "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*version.BuildInfo
			Release bool `json:"release"`
		}{info, info.IsRelease()})
	case versionShort:
		_, err := fmt.Fprintln(w, info.Short())
		return err
	case versionDetailed:
		_, err := fmt.Fprintln(w, info.Detailed())
		return err
	default:
		_, err := fmt.Fprintf(w, "brick %s\nGo: %s\nPlatform: %s\n", info.Short(), info.GoVersion, info.Platform)
		return err
	}
}
