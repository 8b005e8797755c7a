package cmd

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/conneroisu/courseview/internal/version"
)

var (
	versionFormat = newChoiceValue("text", "text", "json")
	versionShort  bool
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long: `Display version information for courseview: version, commit, build
time, Go version and platform.

Examples:
  courseview version              # Version and platform
  courseview version --short      # Version only
  courseview version --format json`,
	RunE: runVersionCommand,
}

func init() {
	rootCmd.AddCommand(versionCmd)

	versionCmd.Flags().VarP(versionFormat, "format", "f", "Output format (text, json)")
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Show short version only")
	versionCmd.Flags().Bool("detailed", false, "Show detailed version information")
}

func runVersionCommand(cmd *cobra.Command, args []string) error {
	detailed, _ := cmd.Flags().GetBool("detailed")
	return writeVersion(cmd.OutOrStdout(), versionFormat.String(), versionShort, detailed)
}

func writeVersion(w io.Writer, format string, short, detailed bool) error {
	if format == "json" {
		info := version.GetBuildInfo()
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(map[string]interface{}{
			"version":    info.Version,
			"git_commit": info.GitCommit,
			"build_time": info.BuildTime,
			"go_version": info.GoVersion,
			"platform":   info.Platform,
			"is_release": version.IsRelease(),
			"is_dirty":   info.Dirty,
		})
	}

	switch {
	case short:
		_, err := fmt.Fprintln(w, version.GetShortVersion())
		return err
	case detailed:
		_, err := fmt.Fprintln(w, version.GetDetailedVersion())
		return err
	}

	info := version.GetBuildInfo()
	fmt.Fprintf(w, "courseview %s\n", version.GetShortVersion())
	if !info.BuildTime.IsZero() {
		fmt.Fprintf(w, "Built: %s\n", info.BuildTime.Format("2006-01-02 15:04:05 UTC"))
	}
	_, err := fmt.Fprintf(w, "Go: %s\nPlatform: %s\n", info.GoVersion, info.Platform)
	return err
}
