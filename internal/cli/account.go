package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/blockchains"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var accountCmd = &cobra.Command{
	Use:     "account",
	GroupID: groupWallet,
	Short:   "Print the wallet's active account",
	Long: `Connect to the wallet and print its active account, checksummed, along
with an explorer link for the network the wallet is on.`,
	Example: `  walletlink account
  walletlink account -o json`,
	Args: cobra.NoArgs,
	RunE: runAccount,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(accountCmd)
}

func runAccount(cmd *cobra.Command, _ []string) error {
	ctx := contextOf(cmd)

	w, account, err := connectWallet(cmd)
	if err != nil {
		return err
	}
	defer w.Disconnect(ctx)

	network, known, err := w.ConnectedNetwork(ctx)
	if err != nil {
		return err
	}

	res := connectResult{Wallet: w.Info().Name, Account: account, Network: network}
	if known {
		if chain, ok := blockchains.FindByName(network); ok {
			res.Explorer = chain.AddressURL(account)
		}
	}

	return commandContext(cmd).formatter(cmd).Result(res, func(out io.Writer) error {
		if _, err := fmt.Fprintln(out, res.Account); err != nil {
			return err
		}
		if res.Explorer != "" {
			_, err := fmt.Fprintln(out, res.Explorer)
			return err
		}
		return nil
	})
}
