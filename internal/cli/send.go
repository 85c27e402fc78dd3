package cli

import (
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/blockchains"
	"github.com/mrz1836/walletlink/internal/output"
	"github.com/mrz1836/walletlink/internal/transaction"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var (
	sendChain    string
	sendTo       string
	sendAmount   string
	sendData     string
	sendGas      uint64
	sendWait     bool
	sendInterval time.Duration
	sendTimeout  time.Duration
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var sendCmd = &cobra.Command{
	Use:     "send",
	GroupID: groupWallet,
	Short:   "Send a transaction through the wallet",
	Long: `Build a transaction and hand it to the wallet for approval. The wallet is
switched to --chain first when it is on another network. The nonce is read
from the chain's RPC endpoint.

--amount is in the chain's native currency (e.g. 0.5 ETH); --data is hex
encoded call data. With --wait the command polls for the receipt and fails
when the transaction reverts.`,
	Example: `  walletlink send --chain ethereum --to 0x742d35Cc6634C0532925a3b844Bc454e4438f44e --amount 0.01
  walletlink send --chain polygon --to 0xContract --data 0xa9059cbb... --gas 80000 --wait`,
	Args: cobra.NoArgs,
	RunE: runSend,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	sendCmd.Flags().StringVar(&sendChain, "chain", "", "blockchain to send on")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient or contract address")
	sendCmd.Flags().StringVar(&sendAmount, "amount", "", "amount in the native currency")
	sendCmd.Flags().StringVar(&sendData, "data", "", "hex encoded call data")
	sendCmd.Flags().Uint64Var(&sendGas, "gas", 0, "gas limit (default: estimated by the wallet)")
	sendCmd.Flags().BoolVar(&sendWait, "wait", false, "wait until the transaction is mined")
	sendCmd.Flags().DurationVar(&sendInterval, "interval", transaction.DefaultConfirmInterval, "receipt polling interval with --wait")
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", 10*time.Minute, "how long --wait waits for the receipt (0 waits until interrupted)")
	_ = sendCmd.MarkFlagRequired("chain")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, _ []string) error {
	cc := commandContext(cmd)
	ctx := contextOf(cmd)

	tx, err := buildTransaction()
	if err != nil {
		return err
	}
	if _, err := tx.Validate(nil); err != nil {
		return err
	}

	w, _, err := connectWallet(cmd)
	if err != nil {
		return err
	}
	defer w.Disconnect(ctx)

	tx.Sent = func(tx *transaction.Transaction) {
		cc.logger().Debug("transaction %s sent on %s", tx.ID, tx.Blockchain)
	}
	if _, err := w.SendTransaction(ctx, tx); err != nil {
		return err
	}

	if sendWait {
		output.Infof(cmd.ErrOrStderr(), "Waiting for %s", tx.ID)
		waitCtx, cancel := contextWithTimeout(cmd, sendTimeout)
		defer cancel()
		if err := transaction.Confirm(waitCtx, cc.Requester(), tx, sendInterval); err != nil {
			return err
		}
	}

	return cc.formatter(cmd).Result(tx, func(out io.Writer) error {
		_, err := fmt.Fprintf(out, "%s\nstatus: %s\n%s\n", tx.ID, tx.Status, tx.URL)
		return err
	})
}

// buildTransaction assembles a transaction from the send flags.
func buildTransaction() (*transaction.Transaction, error) {
	chain, err := blockchains.Lookup(sendChain)
	if err != nil {
		return nil, err
	}

	tx := &transaction.Transaction{Blockchain: chain.Name, To: sendTo, Gas: sendGas}
	if sendAmount != "" {
		if tx.Value, err = parseAmount(sendAmount, chain.Currency.Decimals); err != nil {
			return nil, err
		}
	}
	if sendData != "" {
		if tx.Data, err = hexutil.Decode(sendData); err != nil {
			return nil, wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"data": sendData})
		}
	}
	return tx, nil
}

// parseAmount converts a decimal amount to base units with the given decimals.
func parseAmount(amount string, decimals int) (*big.Int, error) {
	invalid := wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"amount": amount})

	amount = strings.TrimSpace(amount)
	whole, frac, _ := strings.Cut(amount, ".")
	if whole == "" && frac == "" {
		return nil, invalid
	}
	if len(frac) > decimals {
		return nil, wlerr.WithSuggestion(invalid, fmt.Sprintf("at most %d decimal places", decimals))
	}

	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	for _, r := range digits {
		if r < '0' || r > '9' {
			return nil, invalid
		}
	}

	v, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, invalid
	}
	return v, nil
}
