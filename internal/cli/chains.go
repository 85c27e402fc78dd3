package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/blockchains"
	"github.com/mrz1836/walletlink/internal/output"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var chainsCmd = &cobra.Command{
	Use:     "chains",
	GroupID: groupNetwork,
	Short:   "List the supported blockchains",
	Long: `List every blockchain the wallet can be switched to, with its chain id,
native currency and the RPC endpoint used for chain queries. RPC endpoints
overridden in the config or through WALLETLINK_RPC_<NAME> are shown as used.`,
	Example: `  walletlink chains
  walletlink chains -o json`,
	Args: cobra.NoArgs,
	RunE: runChains,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	rootCmd.AddCommand(chainsCmd)
}

// chainEntry is one row of the chains listing.
type chainEntry struct {
	Name     string `json:"name"`
	ID       string `json:"id"`
	Network  uint64 `json:"network_id"`
	FullName string `json:"full_name"`
	Currency string `json:"currency"`
	RPC      string `json:"rpc"`
	Explorer string `json:"explorer"`
}

func runChains(cmd *cobra.Command, _ []string) error {
	cc := commandContext(cmd)
	requester := cc.Requester()

	all := blockchains.Default.All()
	entries := make([]chainEntry, 0, len(all))
	for _, b := range all {
		rpc, err := requester.RPCURL(b.Name)
		if err != nil {
			rpc = b.RPC
		}
		entries = append(entries, chainEntry{
			Name:     b.Name,
			ID:       b.ID,
			Network:  b.NetworkID,
			FullName: b.FullName,
			Currency: b.Currency.Symbol,
			RPC:      rpc,
			Explorer: b.Explorer,
		})
	}

	return cc.formatter(cmd).Result(entries, func(out io.Writer) error {
		t := output.NewTable("NAME", "CHAIN", "CURRENCY", "NETWORK", "RPC")
		for _, e := range entries {
			t.AddRow(e.Name, fmt.Sprintf("%s (%d)", e.ID, e.Network), e.Currency, e.FullName, e.RPC)
		}
		return t.Render(out)
	})
}
