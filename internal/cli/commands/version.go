package commands

import (
	"runtime"
	"runtime/debug"

	"github.com/leapstack-labs/tmplsync/internal/cli/output"
	"github.com/spf13/cobra"
)

// VersionInfo is the JSON output of the version command.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	GoVersion string `json:"go_version"`
}

func buildVersionInfo(version string) VersionInfo {
	info := VersionInfo{Version: version, GoVersion: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				info.Commit = s.Value
			}
		}
	}
	return info
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the tmplsync version, the commit it was built from and the Go toolchain.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := buildVersionInfo(version)
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(getConfig().OutputFormat))
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}

			r.Printf("tmplsync v%s\n", info.Version)
			r.Println("Template synchronization for job documents")
			if info.Commit != "" {
				r.Muted("commit " + info.Commit)
			}
			r.Muted(info.GoVersion)
			return nil
		},
	}
}
