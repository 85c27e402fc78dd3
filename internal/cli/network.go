package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/blockchains"
	"github.com/mrz1836/walletlink/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	networkIs string

	networkCmd = &cobra.Command{
		Use:     "network",
		GroupID: groupNetwork,
		Short:   "Inspect and change the wallet's network",
		Long:    `Show the network the wallet is on, switch it to another blockchain, or add a blockchain to it.`,
	}

	networkShowCmd = &cobra.Command{
		Use:   "show",
		Short: "Show the network the wallet is on",
		Long: `Connect to the wallet and print the blockchain it is on. With --is the
command also reports whether that blockchain is the named one.`,
		Example: `  walletlink network show
  walletlink network show --is polygon`,
		Args: cobra.NoArgs,
		RunE: runNetworkShow,
	}

	networkSwitchCmd = &cobra.Command{
		Use:   "switch <blockchain>",
		Short: "Switch the wallet to a blockchain",
		Long: `Ask the wallet to switch to the named blockchain. When the wallet does not
know the blockchain it is added first and the switch is retried once.`,
		Example: `  walletlink network switch polygon
  walletlink network switch arbitrum --dev`,
		Args: cobra.ExactArgs(1),
		RunE: runNetworkSwitch,
	}

	networkAddCmd = &cobra.Command{
		Use:   "add <blockchain>",
		Short: "Add a blockchain to the wallet",
		Long: `Ask the wallet to register the named blockchain with its chain id, native
currency, RPC endpoint and block explorer.`,
		Example: `  walletlink network add avalanche`,
		Args:    cobra.ExactArgs(1),
		RunE:    runNetworkAdd,
	}
)

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	networkShowCmd.Flags().StringVar(&networkIs, "is", "", "report whether the wallet is on this blockchain")
	networkCmd.AddCommand(networkShowCmd, networkSwitchCmd, networkAddCmd)
	rootCmd.AddCommand(networkCmd)
}

// networkResult is the output of the network commands.
type networkResult struct {
	Network     string `json:"network,omitempty"`
	ChainID     string `json:"chain_id,omitempty"`
	Name        string `json:"name,omitempty"`
	ConnectedTo *bool  `json:"connected_to,omitempty"`
}

func runNetworkShow(cmd *cobra.Command, _ []string) error {
	ctx := contextOf(cmd)

	w, _, err := connectWallet(cmd)
	if err != nil {
		return err
	}
	defer w.Disconnect(ctx)

	network, _, err := w.ConnectedNetwork(ctx)
	if err != nil {
		return err
	}
	res := networkResult{Network: network}
	if chain, ok := blockchains.FindByName(network); ok {
		res.ChainID = chain.ID
		res.Name = chain.FullName
	}
	if networkIs != "" {
		on, err := w.ConnectedTo(ctx, networkIs)
		if err != nil {
			return err
		}
		res.ConnectedTo = &on
	}

	return commandContext(cmd).formatter(cmd).Result(res, func(out io.Writer) error {
		if res.ConnectedTo != nil {
			_, err := fmt.Fprintln(out, *res.ConnectedTo)
			return err
		}
		if res.Name == "" {
			_, err := fmt.Fprintln(out, displayNetwork(res.Network))
			return err
		}
		_, err := fmt.Fprintf(out, "%s (%s, chain %s)\n", res.Network, res.Name, res.ChainID)
		return err
	})
}

func runNetworkSwitch(cmd *cobra.Command, args []string) error {
	ctx := contextOf(cmd)

	chain, err := blockchains.Lookup(args[0])
	if err != nil {
		return err
	}

	w, _, err := connectWallet(cmd)
	if err != nil {
		return err
	}
	defer w.Disconnect(ctx)

	if err := w.SwitchTo(ctx, chain.Name); err != nil {
		return err
	}

	res := networkResult{Network: chain.Name, ChainID: chain.ID, Name: chain.FullName}
	return commandContext(cmd).formatter(cmd).Result(res, func(out io.Writer) error {
		output.Successf(out, "Switched to %s", chain.FullName)
		return nil
	})
}

func runNetworkAdd(cmd *cobra.Command, args []string) error {
	ctx := contextOf(cmd)

	chain, err := blockchains.Lookup(args[0])
	if err != nil {
		return err
	}

	w, _, err := connectWallet(cmd)
	if err != nil {
		return err
	}
	defer w.Disconnect(ctx)

	if err := w.AddNetwork(ctx, chain.Name); err != nil {
		return err
	}

	res := networkResult{Network: chain.Name, ChainID: chain.ID, Name: chain.FullName}
	return commandContext(cmd).formatter(cmd).Result(res, func(out io.Writer) error {
		output.Successf(out, "Added %s", chain.FullName)
		return nil
	})
}
