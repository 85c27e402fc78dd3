package cli

import (
	"io"
	"runtime"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var versionCmd = &cobra.Command{
	Use:     "version",
	GroupID: groupConfig,
	Short:   "Print version information",
	Long:    `Print the walletlink version, the commit it was built from and the build date.`,
	Example: `  walletlink version
  walletlink version -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		res := struct {
			Version   string `json:"version"`
			Commit    string `json:"commit"`
			Date      string `json:"date"`
			GoVersion string `json:"go_version"`
		}{buildInfo.Version, buildInfo.Commit, buildInfo.Date, runtime.Version()}

		return commandContext(cmd).formatter(cmd).Result(res, func(out io.Writer) error {
			_, err := io.WriteString(out, "walletlink "+formatVersion(buildInfo)+"\n")
			return err
		})
	},
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(versionCmd)
}
