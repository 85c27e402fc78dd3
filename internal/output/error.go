package output

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mrz1836/walletlink/internal/session"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Codes used for errors that are not WalletErrors.
const (
	CodeGeneral      = "GENERAL_ERROR"
	CodeWalletReject = "WALLET_ERROR"
)

// ErrorOutput represents a structured error for JSON output.
type ErrorOutput struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	RPCCode    int               `json:"rpc_code,omitempty"`
	ExitCode   int               `json:"exit_code"`
}

// Describe converts any error into an ErrorDetail.
// Wallet RPC errors keep their EIP-1193 code.
func Describe(err error) ErrorDetail {
	var we *wlerr.WalletError
	if errors.As(err, &we) {
		return ErrorDetail{
			Code:       we.Code,
			Message:    we.Message,
			Details:    we.Details,
			Suggestion: we.Suggestion,
			ExitCode:   we.ExitCode,
		}
	}

	var rpcErr *session.RPCError
	if errors.As(err, &rpcErr) {
		d := ErrorDetail{
			Code:     CodeWalletReject,
			Message:  rpcErr.Message,
			RPCCode:  rpcErr.Code,
			ExitCode: wlerr.ExitGeneral,
		}
		switch rpcErr.Code {
		case session.CodeUserRejected, session.CodeUnauthorized:
			d.ExitCode = wlerr.ExitAuth
		case session.CodeUnrecognizedChain:
			d.Suggestion = "add the network first with 'walletlink network add'"
		}
		return d
	}

	return ErrorDetail{
		Code:     CodeGeneral,
		Message:  err.Error(),
		ExitCode: wlerr.ExitGeneral,
	}
}

// FormatError formats an error for display.
func FormatError(w io.Writer, err error, format Format) error {
	if err == nil {
		return nil
	}

	detail := Describe(err)
	if format == FormatJSON {
		return writeJSON(w, ErrorOutput{Error: detail})
	}
	return formatErrorText(w, detail)
}

func formatErrorText(w io.Writer, d ErrorDetail) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Error: %s\n", d.Message))
	if d.RPCCode != 0 {
		sb.WriteString(fmt.Sprintf("  (wallet code %d)\n", d.RPCCode))
	}

	if len(d.Details) > 0 {
		keys := make([]string, 0, len(d.Details))
		for k := range d.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString("\nDetails:\n")
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("  %s: %s\n", k, d.Details[k]))
		}
	}

	if d.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("\nSuggestion: %s\n", d.Suggestion))
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// FormatSuccess formats a success message.
func FormatSuccess(w io.Writer, message string, format Format) error {
	if format == FormatJSON {
		return writeJSON(w, map[string]string{"status": "success", "message": message})
	}
	_, err := fmt.Fprintln(w, message)
	return err
}
