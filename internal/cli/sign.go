package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mrz1836/walletlink/internal/wallet"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var signTypedFile string

//nolint:gochecknoglobals // Cobra CLI pattern requires package-level state
var signCmd = &cobra.Command{
	Use:     "sign [message]",
	GroupID: groupWallet,
	Short:   "Sign a message or EIP-712 typed data",
	Long: `Ask the wallet to sign a plain text message with personal_sign, or an
EIP-712 typed data document with eth_signTypedData_v4.

Typed data is read from the file given to --typed ("-" reads stdin). Its
domain must declare a chainId and the wallet must be on that chain; switch
networks first otherwise. The signer is recovered from the signature and
checked against the connected account.`,
	Example: `  walletlink sign "hello world"
  walletlink sign --typed permit.json
  cat order.json | walletlink sign --typed -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSign,
}

//nolint:gochecknoinits // Cobra CLI pattern requires init for command registration
func init() {
	signCmd.Flags().StringVar(&signTypedFile, "typed", "", "EIP-712 typed data JSON file, - for stdin")
	rootCmd.AddCommand(signCmd)
}

// signResult is the output of sign.
type signResult struct {
	Kind      string `json:"kind"`
	Account   string `json:"account"`
	Signature string `json:"signature"`
	Signer    string `json:"signer"`
	Verified  bool   `json:"verified"`
}

func runSign(cmd *cobra.Command, args []string) error {
	ctx := contextOf(cmd)

	msg, err := signMessage(cmd, args)
	if err != nil {
		return err
	}

	w, account, err := connectWallet(cmd)
	if err != nil {
		return err
	}
	defer w.Disconnect(ctx)

	sig, err := w.Sign(ctx, msg)
	if err != nil {
		return err
	}

	var signer string
	if msg.Kind == wallet.KindStructured {
		signer, err = wallet.RecoverTypedDataSigner(*msg.TypedData, sig)
	} else {
		signer, err = wallet.RecoverSigner([]byte(msg.Text), sig)
	}
	if err != nil {
		commandContext(cmd).logger().Error("recovering signer: %v", err)
	}

	res := signResult{
		Kind:      msg.Kind.String(),
		Account:   account,
		Signature: sig,
		Signer:    signer,
		Verified:  signer != "" && strings.EqualFold(signer, account),
	}
	return commandContext(cmd).formatter(cmd).Result(res, func(out io.Writer) error {
		if _, err := fmt.Fprintln(out, res.Signature); err != nil {
			return err
		}
		if !res.Verified {
			_, err := fmt.Fprintf(cmd.ErrOrStderr(), "warning: signature recovers to %q, not %s\n", res.Signer, res.Account)
			return err
		}
		return nil
	})
}

// signMessage builds the message from the argument or the --typed file.
func signMessage(cmd *cobra.Command, args []string) (wallet.Message, error) {
	switch {
	case signTypedFile != "" && len(args) > 0:
		return wallet.Message{}, wlerr.WithSuggestion(wlerr.ErrInvalidInput, "pass either a message or --typed, not both")
	case signTypedFile != "":
		data, err := readInput(cmd, signTypedFile)
		if err != nil {
			return wallet.Message{}, err
		}
		return wallet.ParseStructuredMessage(data)
	case len(args) == 1:
		return wallet.PlainMessage(args[0]), nil
	default:
		return wallet.Message{}, wlerr.WithSuggestion(wlerr.ErrInvalidInput, "pass a message to sign or --typed <file>")
	}
}

// readInput reads a file, or the command input for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	// #nosec G304 -- the path is supplied by the user on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wlerr.Wrap(wlerr.ErrInvalidInput, "reading %s: %v", path, err)
	}
	return data, nil
}
