// Package session defines the connector a wallet adapter talks to: a paired
// wallet reachable through EIP-1193 style requests and events.
package session

import (
	"context"
	"encoding/json"
)

// Event names emitted by sessions.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
	EventDisconnect      = "disconnect"
)

// Wallet RPC methods used by the adapters.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSignTypedDataV4 = "eth_signTypedData_v4"
	MethodPersonalSign    = "personal_sign"
	MethodSendTransaction = "eth_sendTransaction"
)

// Request is a single wallet RPC request.
type Request struct {
	Method string `json:"method"`
	Params []any  `json:"params,omitempty"`
}

// Handler receives event payloads. For EventAccountsChanged the payload is a []string.
type Handler func(payload any)

// Listener is the handle returned by On. Removal is by handle identity.
type Listener struct {
	event string
	fn    Handler
}

// Event returns the event the listener was registered for.
func (l *Listener) Event() string {
	if l == nil {
		return ""
	}
	return l.event
}

// RelayProvider controls whether the session accepts connect requests.
type RelayProvider interface {
	SetConnectDisabled(disabled bool)
	ConnectDisabled() bool
}

// Session is a connection to a remote (or in-process) wallet.
type Session interface {
	// QRURL returns the pairing URI the user scans with the wallet app.
	QRURL() string

	// RelayProvider returns the relay controller of the session.
	RelayProvider(ctx context.Context) (RelayProvider, error)

	// Enable asks the wallet for account access and returns the granted accounts.
	Enable(ctx context.Context) ([]string, error)

	// ChainID returns the numeric id of the chain the wallet is on.
	ChainID(ctx context.Context) (uint64, error)

	// Request issues a wallet RPC request and returns the raw JSON result.
	Request(ctx context.Context, req Request) (json.RawMessage, error)

	On(event string, h Handler) *Listener
	RemoveListener(event string, l *Listener)

	// Close releases the session's resources. It is safe to call more than once.
	Close() error
}

// Logger is the leveled logger sessions and adapters write diagnostics to.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}
