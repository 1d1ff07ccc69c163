package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Build-time variables set via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const shortRevisionLength = 7

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		printVersionInfo(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// resolveVersionInfo prefers ldflags values and falls back to the module
// build info embedded by `go install`.
func resolveVersionInfo() (string, string, string) {
	if version != "dev" {
		return version, commit, date
	}
	info, _ := debug.ReadBuildInfo()
	return applyBuildInfo(version, commit, date, info)
}

// applyBuildInfo fills the values still at their defaults from info.
func applyBuildInfo(v, c, d string, info *debug.BuildInfo) (string, string, string) {
	if info == nil {
		return v, c, d
	}
	if info.Main.Version != "" && info.Main.Version != "(devel)" {
		v = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if c == "unknown" && len(s.Value) >= shortRevisionLength {
				c = s.Value[:shortRevisionLength]
			}
		case "vcs.time":
			if d == "unknown" {
				d = s.Value
			}
		}
	}
	return v, c, d
}

func formatVersion(v, c, d string) string {
	return fmt.Sprintf("comprasetl %s (%s, %s) %s/%s", v, c, d, runtime.GOOS, runtime.GOARCH)
}

// printVersionInfo prints version information.
// Version string goes to out for pipeline consumption.
// Decorative content goes to stderr.
func printVersionInfo(out io.Writer) {
	fmt.Fprintln(out, formatVersion(resolveVersionInfo()))
	fmt.Fprintln(os.Stderr, "Public procurement spreadsheet ETL")
}
