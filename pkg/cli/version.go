package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockfirebolt/pkg/cli/internal/output"
)

// VersionOutput represents JSON output format
type VersionOutput struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
	Go      string `json:"go"`
	OS      string `json:"os"`
	Arch    string `json:"arch"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show mockfirebolt version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), buildVersion(), jsonOutput)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// buildVersion fills in values not injected at build time from the
// module build info.
func buildVersion() VersionOutput {
	out := VersionOutput{
		Version: Version,
		Commit:  Commit,
		Date:    BuildDate,
		Go:      runtime.Version(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}
	if out.Version == "dev" && info.Main.Version != "" {
		out.Version = info.Main.Version
	}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if out.Commit == "none" {
				out.Commit = setting.Value
			}
		case "vcs.time":
			if out.Date == "unknown" {
				out.Date = setting.Value
			}
		case "vcs.modified":
			if setting.Value == "true" {
				out.Commit += "-dirty"
			}
		}
	}
	return out
}

func printVersion(w io.Writer, out VersionOutput, asJSON bool) error {
	if asJSON {
		return output.JSONTo(w, out)
	}

	v := out.Version
	if len(v) > 0 && v[0] != 'v' && v != "dev" && v != "(devel)" {
		v = "v" + v
	}
	fmt.Fprintf(w, "mockfirebolt %s (%s, %s)\n", v, out.Commit, out.Date)
	fmt.Fprintf(w, "%s %s/%s\n", out.Go, out.OS, out.Arch)
	return nil
}
