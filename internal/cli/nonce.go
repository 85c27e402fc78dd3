package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/blockchains"
)

// rpcTimeout bounds read-only chain requests.
const rpcTimeout = 30 * time.Second

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var nonceCmd = &cobra.Command{
	Use:     "nonce <blockchain> <address>",
	GroupID: groupNetwork,
	Short:   "Print the transaction count of an address",
	Long: `Query the blockchain's RPC endpoint for the number of transactions sent
from an address, which is the nonce of its next transaction. The wallet is
not involved.`,
	Example: `  walletlink nonce ethereum 0x742d35Cc6634C0532925a3b844Bc454e4438f44e
  walletlink nonce polygon 0x742d35Cc6634C0532925a3b844Bc454e4438f44e -o json`,
	Args: cobra.ExactArgs(2),
	RunE: runNonce,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(nonceCmd)
}

// nonceResult is the output of nonce.
type nonceResult struct {
	Blockchain string `json:"blockchain"`
	Address    string `json:"address"`
	Nonce      uint64 `json:"nonce"`
}

func runNonce(cmd *cobra.Command, args []string) error {
	cc := commandContext(cmd)

	chain, err := blockchains.Lookup(args[0])
	if err != nil {
		return err
	}

	ctx, cancel := contextWithTimeout(cmd, rpcTimeout)
	defer cancel()

	n, err := cc.Requester().TransactionCount(ctx, chain.Name, args[1])
	if err != nil {
		return err
	}

	res := nonceResult{Blockchain: chain.Name, Address: args[1], Nonce: n}
	return cc.formatter(cmd).Result(res, func(out io.Writer) error {
		_, err := fmt.Fprintln(out, res.Nonce)
		return err
	})
}
