package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/wallet"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var connectWatch bool

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var connectCmd = &cobra.Command{
	Use:     "connect",
	GroupID: groupWallet,
	Short:   "Pair with the wallet and show the active account",
	Long: `Open a session with the wallet app and request account access.

A pairing QR code and link are printed to stderr. Once the wallet approves,
the active account and the network it is on are printed. With --watch the
command keeps running and prints every account change until interrupted.`,
	Example: `  walletlink connect
  walletlink connect --watch
  walletlink connect --dev -o json`,
	Args: cobra.NoArgs,
	RunE: runConnect,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	connectCmd.Flags().BoolVar(&connectWatch, "watch", false, "keep running and print account changes")
	rootCmd.AddCommand(connectCmd)
}

// connectResult is the output of connect and account.
type connectResult struct {
	Wallet   string `json:"wallet"`
	Account  string `json:"account"`
	Network  string `json:"network,omitempty"`
	Explorer string `json:"explorer,omitempty"`
}

// accountChange is printed for every account event while watching.
type accountChange struct {
	Event   string `json:"event"`
	Account string `json:"account"`
}

func runConnect(cmd *cobra.Command, _ []string) error {
	cc := commandContext(cmd)
	ctx := contextOf(cmd)

	w, account, err := connectWallet(cmd)
	if err != nil {
		return err
	}
	defer w.Disconnect(ctx)

	network, _, err := w.ConnectedNetwork(ctx)
	if err != nil {
		return err
	}

	res := connectResult{Wallet: w.Info().Name, Account: account, Network: network}
	err = cc.formatter(cmd).Result(res, func(out io.Writer) error {
		output.Successf(out, "Connected to %s", res.Wallet)
		_, err := fmt.Fprintf(out, "Account: %s\nNetwork: %s\n", res.Account, displayNetwork(res.Network))
		return err
	})
	if err != nil || !connectWatch {
		return err
	}
	return watchAccounts(ctx, cmd, w)
}

// watchAccounts prints account changes until ctx is done.
func watchAccounts(ctx context.Context, cmd *cobra.Command, w wallet.Wallet) error {
	f := commandContext(cmd).formatter(cmd)

	changes := make(chan string, 8)
	l, err := w.On(wallet.EventAccount, func(account string) {
		select {
		case changes <- account:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Off(wallet.EventAccount, l) }()

	output.Info(cmd.ErrOrStderr(), "Watching for account changes, press Ctrl+C to stop")
	for {
		select {
		case <-ctx.Done():
			return nil
		case account := <-changes:
			change := accountChange{Event: string(wallet.EventAccount), Account: account}
			err := f.Result(change, func(out io.Writer) error {
				_, err := fmt.Fprintf(out, "Account changed: %s\n", account)
				return err
			})
			if err != nil {
				return err
			}
		}
	}
}

// connectWallet creates the wallet backend and pairs it, showing the pairing
// link on stderr so stdout carries only the command result.
func connectWallet(cmd *cobra.Command) (wallet.Wallet, string, error) {
	cc := commandContext(cmd)

	w, err := cc.Wallet()
	if err != nil {
		return nil, "", err
	}

	errOut := cmd.ErrOrStderr()
	account, err := w.Connect(contextOf(cmd), wallet.ConnectOptions{
		Connect: func(uri string) {
			if err := output.RenderPairing(errOut, uri, output.DefaultQRConfig()); err != nil {
				cc.logger().Error("rendering pairing link: %v", err)
			}
		},
	})
	if err != nil {
		return nil, "", err
	}
	if account == "" {
		return nil, "", wlerr.WithSuggestion(wlerr.ErrNotConnected, "unlock the wallet app and approve the connection")
	}

	cc.logger().Debug("connected %s account %s", w.Info().Name, account)
	return w, account, nil
}

func displayNetwork(name string) string {
	if name == "" {
		return "unknown"
	}
	return name
}
