// Package wallet defines the uniform surface every wallet backend exposes,
// plus the registry of connected instances and address helpers.
package wallet

import (
	"context"

	"github.com/mrz1836/walletlink/internal/session"
	"github.com/mrz1836/walletlink/internal/transaction"
)

// Event is a wallet event name accepted by On and Off.
type Event string

// EventAccount fires with the new active account (checksummed) whenever the wallet's accounts change.
const EventAccount Event = "account"

// Info is the static description of a wallet backend.
type Info struct {
	Name        string   `json:"name"`
	Logo        string   `json:"logo"`
	Blockchains []string `json:"blockchains"`
}

// ConnectOptions configures Connect.
type ConnectOptions struct {
	// Connect is called once with the pairing URI before accounts are requested.
	// It runs synchronously and must not block.
	Connect func(uri string)
}

// Wallet is implemented by every wallet backend.
type Wallet interface {
	Info() Info
	IsAvailable() bool

	Connect(ctx context.Context, opts ConnectOptions) (string, error)
	Disconnect(ctx context.Context)
	Account() (string, bool)

	ConnectedTo(ctx context.Context, name string) (bool, error)
	ConnectedNetwork(ctx context.Context) (string, bool, error)
	SwitchTo(ctx context.Context, name string) error
	AddNetwork(ctx context.Context, name string) error

	On(event Event, cb func(account string)) (*session.Listener, error)
	Off(event Event, l *session.Listener) error

	TransactionCount(ctx context.Context, blockchain, address string) (uint64, error)
	Sign(ctx context.Context, msg Message) (string, error)
	SendTransaction(ctx context.Context, tx *transaction.Transaction) (*transaction.Transaction, error)
}
