package cli

import (
	"context"
	"sync"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/request"
	"github.com/mrz1836/walletlink/internal/wallet"
	"github.com/mrz1836/walletlink/internal/wallet/walletlink"
)

type cmdContextKey struct{}

// CommandContext holds dependencies for CLI commands.
type CommandContext struct {
	Cfg     *config.Config
	Log     *config.Logger
	Fmt     *output.Formatter
	Factory *wallet.Factory

	// Dev selects the in-process development wallet.
	Dev bool

	// Registry receives connected wallets.
	Registry *wallet.Registry

	requesterOnce sync.Once
	requester     *request.Client
}

// NewCommandContext creates a context with the given dependencies.
func NewCommandContext(
	cfg *config.Config,
	logger *config.Logger,
	formatter *output.Formatter,
) *CommandContext {
	c := &CommandContext{
		Cfg:      cfg,
		Log:      logger,
		Fmt:      formatter,
		Registry: walletlink.DefaultRegistry,
	}
	c.Factory = newWalletFactory(c)
	return c
}

// Wallet creates the default wallet backend.
func (c *CommandContext) Wallet() (wallet.Wallet, error) {
	return c.Factory.New(defaultWallet)
}

// Requester returns the chain request client, creating it on first use.
func (c *CommandContext) Requester() *request.Client {
	c.requesterOnce.Do(func() {
		c.requester = newRequester(c.config(), c.logger())
	})
	return c.requester
}

// Close releases the request client.
func (c *CommandContext) Close() {
	if c.requester != nil {
		c.requester.Close()
	}
}

// formatter returns the context formatter, or a text formatter on the command output.
func (c *CommandContext) formatter(cmd *cobra.Command) *output.Formatter {
	if c.Fmt != nil {
		return c.Fmt
	}
	return output.NewFormatter(output.FormatText, cmd.OutOrStdout())
}

func (c *CommandContext) config() ConfigProvider {
	if c.Cfg == nil {
		return config.Defaults()
	}
	return c.Cfg
}

func (c *CommandContext) logger() *config.Logger {
	if c.Log == nil {
		return config.NullLogger()
	}
	return c.Log
}

// SetCmdContext attaches a CommandContext to the command's context.
func SetCmdContext(cmd *cobra.Command, cc *CommandContext) {
	cmd.SetContext(context.WithValue(cmd.Context(), cmdContextKey{}, cc))
}

// GetCmdContext returns the CommandContext attached to cmd, or nil.
func GetCmdContext(cmd *cobra.Command) *CommandContext {
	ctx := cmd.Context()
	if ctx == nil {
		return nil
	}
	cc, _ := ctx.Value(cmdContextKey{}).(*CommandContext)
	return cc
}

// commandContext returns the context attached to cmd, falling back to the global one.
func commandContext(cmd *cobra.Command) *CommandContext {
	if cc := GetCmdContext(cmd); cc != nil {
		return cc
	}
	if cmdCtx != nil {
		return cmdCtx
	}
	return NewCommandContext(cfg, logger, formatter)
}
