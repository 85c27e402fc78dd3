package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// redacted replaces secrets in printed configuration.
const redacted = "[redacted]"

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	configForce bool

	configCmd = &cobra.Command{
		Use:     "config",
		GroupID: groupConfig,
		Short:   "Manage the walletlink configuration",
		Long:    `Create the configuration file or print the configuration in effect.`,
	}

	configInitCmd = &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write the default configuration to config.yaml in the walletlink home
directory. An existing file is kept unless --force is given.`,
		Example: `  walletlink config init
  walletlink config init --home ./.walletlink --force`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}

	configShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Print the configuration in effect",
		Long: `Print the configuration after the config file, WALLETLINK_* environment
variables and flags have been applied. The development mnemonic is redacted.`,
		Example: `  walletlink config show
  walletlink config show -o json`,
		Args: cobra.NoArgs,
		RunE: runConfigShow,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	cc := commandContext(cmd)
	home := cc.config().GetHome()
	path := config.Path(home)

	if _, err := os.Stat(path); err == nil && !configForce {
		return wlerr.WithSuggestion(
			wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"path": path}),
			"the config file exists; use --force to overwrite it",
		)
	}

	defaults := config.Defaults()
	defaults.Home = home
	if err := config.Save(defaults, path); err != nil {
		return wlerr.Wrap(wlerr.ErrGeneral, "writing %s: %v", path, err)
	}

	return output.FormatSuccess(cmd.OutOrStdout(), "wrote "+path, cc.formatter(cmd).Format())
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := commandContext(cmd)

	shown := config.Defaults()
	if cc.Cfg != nil {
		c := *cc.Cfg
		shown = &c
	}
	if shown.Dev.Mnemonic != "" {
		shown.Dev.Mnemonic = redacted
	}

	return cc.formatter(cmd).Result(shown, func(out io.Writer) error {
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(shown); err != nil {
			return err
		}
		return enc.Close()
	})
}
