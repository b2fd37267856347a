package commands

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/harmonize-tools/s4h-workbench/internal/cli/output"
)

// BuildInfo identifies the binary. Fields are set at build time.
type BuildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"build_date"`
	Go      string `json:"go"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display the s4h version, commit and build date.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info.Go = runtime.Version()
			r := NewCommandContextWithoutEngine(cmd).Renderer
			if r.EffectiveMode() == output.ModeJSON {
				return r.JSON(info)
			}
			r.Printf("s4h v%s\n", info.Version)
			r.Println("Socio-health data harmonization workbench")
			if info.Commit != "" {
				r.Muted("commit " + info.Commit + ", built " + info.Date + " with " + info.Go)
			}
			return nil
		},
	}
}
