// Package cli implements the walletlink command-line interface.
//
// This package uses global variables to manage CLI state, which is the standard
// pattern for Cobra-based CLI applications. The globals are initialized in
// PersistentPreRunE and cleaned up in PersistentPostRun.
//
//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/wallet/walletlink"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// logFileName is the log file created in the home directory when none is configured.
const logFileName = "walletlink.log"

// BuildInfo carries version metadata injected at build time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

var (
	// Global flags
	homeDir      string
	outputFormat string
	verbose      bool
	devMode      bool

	// Global state initialized in PersistentPreRunE
	cfg       *config.Config
	logger    *config.Logger
	formatter *output.Formatter
	cmdCtx    *CommandContext

	buildInfo  BuildInfo
	enrichOnce sync.Once
)

// Command groups shown in the root help.
const (
	groupWallet  = "wallet"
	groupNetwork = "network"
	groupConfig  = "config"
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "walletlink",
	Short: "Drive a Coinbase Wallet over WalletLink from the terminal",
	Long: `walletlink pairs with a wallet app through a self-hosted WalletLink bridge
and exposes the wallet's operations as commands: connecting, switching and
adding networks, signing messages and typed data, and sending transactions.

Set the bridge with wallet.bridge_url in the config file or WALLETLINK_BRIDGE_URL.
Every command that needs the wallet prints a pairing QR code and waits for the
wallet app to approve the connection. Use --dev to run against an in-process
development wallet derived from WALLETLINK_DEV_MNEMONIC instead.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return initGlobals(cmd)
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		cleanup()
	},
}

// Execute runs the root command.
func Execute(info BuildInfo) error {
	buildInfo = info
	rootCmd.Version = formatVersion(info)
	enrichOnce.Do(func() {
		walkCommands(rootCmd, func(c *cobra.Command) {
			if c != rootCmd {
				enrichParentLong(c)
			}
		})
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		formatErr(err)
		return err
	}
	return nil
}

// formatVersion renders build metadata, filling in placeholders for missing fields.
func formatVersion(info BuildInfo) string {
	version, commit, date := info.Version, info.Commit, info.Date
	if version == "" {
		version = "dev"
	}
	if commit == "" {
		commit = "unknown"
	}
	if date == "" {
		date = "unknown"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
}

// formatErr prints err to stderr in the active output format.
func formatErr(err error) {
	format := output.FormatText
	if formatter != nil {
		format = formatter.Format()
	}
	_ = output.FormatError(os.Stderr, err, format)
}

// ExitCode returns the appropriate exit code for an error. Wallet rejections
// exit with the auth code.
func ExitCode(err error) int {
	if err == nil {
		return wlerr.ExitSuccess
	}
	return output.Describe(err).ExitCode
}

// initGlobals initializes global configuration, logger, formatter and command context.
func initGlobals(cmd *cobra.Command) error {
	// Determine home directory
	home := homeDir
	if home == "" {
		home = os.Getenv(config.EnvHome)
	}
	if home == "" {
		home = config.DefaultHome()
	}

	var err error
	cfg, err = config.Load(config.Path(home))
	if err != nil {
		// Use defaults if config doesn't exist
		cfg = config.Defaults()
		cfg.Home = home
	}

	config.ApplyEnvironment(cfg)

	// Override with command-line flags
	if homeDir != "" {
		cfg.Home = homeDir
	}
	if verbose {
		cfg.Output.Verbose = true
		cfg.Logging.Level = "debug"
	}
	if outputFormat != "" && outputFormat != "auto" {
		cfg.Output.DefaultFormat = outputFormat
	}
	if cfg.Logging.File == "" {
		cfg.Logging.File = filepath.Join(cfg.Home, logFileName)
	}

	logger, err = config.NewLogger(config.ParseLogLevel(cfg.Logging.Level), cfg.Logging.File)
	if err != nil {
		// Use null logger if we can't create the file
		logger = config.NullLogger()
	}

	out := cmd.OutOrStdout()
	formatter = output.NewFormatter(output.DetectFormat(out, output.ParseFormat(cfg.Output.DefaultFormat)), out)

	cmdCtx = NewCommandContext(cfg, logger, formatter)
	cmdCtx.Dev = devMode
	if cmd.Context() != nil {
		SetCmdContext(cmd, cmdCtx)
	}

	logger.Debug("walletlink %s starting (home %s, dev %t)", formatVersion(buildInfo), cfg.Home, devMode)
	return nil
}

// cleanup releases resources.
func cleanup() {
	if cmdCtx != nil {
		cmdCtx.Close()
	}
	if err := walletlink.ResetSession(); err != nil && logger != nil {
		logger.Error("closing wallet session: %v", err)
	}
	if logger != nil {
		s := metrics.Global.Snapshot()
		logger.Debug("session requests %d (errors %d), rpc calls %d (errors %d)",
			s.SessionRequests, s.SessionErrors, s.RPCCallsTotal, s.RPCErrorsTotal)
		_ = logger.Close()
	}
}

// Config returns the global configuration.
func Config() *config.Config {
	return cfg
}

// Logger returns the global logger.
func Logger() *config.Logger {
	return logger
}

// Formatter returns the global output formatter.
func Formatter() *output.Formatter {
	return formatter
}

// Context returns the global command context.
func Context() *CommandContext {
	return cmdCtx
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for flag registration
func init() {
	rootCmd.PersistentFlags().StringVar(&homeDir, "home", "", "walletlink data directory (default: ~/.walletlink)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "auto", "output format: text, json, auto")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "use the in-process development wallet instead of the bridge")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupWallet, Title: "Wallet Operations:"},
		&cobra.Group{ID: groupNetwork, Title: "Networks:"},
		&cobra.Group{ID: groupConfig, Title: "Configuration:"},
	)
	rootCmd.SetHelpCommandGroupID(groupConfig)
	rootCmd.SetCompletionCommandGroupID(groupConfig)
}
