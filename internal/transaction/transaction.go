// Package transaction submits transactions through a connected wallet and
// follows them until they are mined.
package transaction

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/mrz1836/walletlink/internal/blockchains"
	"github.com/mrz1836/walletlink/internal/session"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Status is the lifecycle state of a transaction.
type Status string

// Transaction states.
const (
	StatusInitialized Status = "initialized"
	StatusPending     Status = "pending"
	StatusSuccess     Status = "success"
	StatusFailed      Status = "failed"
)

// DefaultConfirmInterval is the receipt polling interval used by Confirm when none is given.
const DefaultConfirmInterval = 3 * time.Second

// Transaction is a value transfer or contract call sent through a wallet.
type Transaction struct {
	Blockchain string   `json:"blockchain"`
	From       string   `json:"from,omitempty"`
	To         string   `json:"to"`
	Value      *big.Int `json:"value,omitempty"`
	Data       []byte   `json:"data,omitempty"`
	Gas        uint64   `json:"gas,omitempty"`
	Nonce      *uint64  `json:"nonce,omitempty"`

	// Set by Submit.
	ID     string `json:"id,omitempty"`
	URL    string `json:"url,omitempty"`
	Status Status `json:"status"`

	// Optional lifecycle callbacks.
	Sent      func(tx *Transaction)            `json:"-"`
	Succeeded func(tx *Transaction)            `json:"-"`
	Failed    func(tx *Transaction, err error) `json:"-"`
}

// Wallet is what Submit needs from a connected wallet adapter.
type Wallet interface {
	Account() (string, bool)
	ConnectedTo(ctx context.Context, name string) (bool, error)
	SwitchTo(ctx context.Context, name string) error
	Session() (session.Session, error)
}

// NonceSource returns the next nonce of an account.
type NonceSource interface {
	TransactionCount(ctx context.Context, blockchain, address string) (uint64, error)
}

// ReceiptSource returns the receipt of a mined transaction, or ErrNotFound while pending.
type ReceiptSource interface {
	Receipt(ctx context.Context, blockchain, hash string) (*types.Receipt, error)
}

// Params are the inputs of Submit.
type Params struct {
	Wallet      Wallet
	Nonces      NonceSource // optional; the wallet assigns the nonce when nil
	Transaction *Transaction
	Chains      *blockchains.Registry // default blockchains.Default
}

// Validate checks the transaction before it is handed to the wallet.
func (tx *Transaction) Validate(chains *blockchains.Registry) (*blockchains.Blockchain, error) {
	if chains == nil {
		chains = blockchains.Default
	}
	chain, err := chains.Lookup(tx.Blockchain)
	if err != nil {
		return nil, err
	}

	if tx.To == "" && len(tx.Data) == 0 {
		return nil, wlerr.WithSuggestion(wlerr.ErrInvalidInput, "a transaction needs a recipient or contract data")
	}
	if tx.To != "" && !common.IsHexAddress(tx.To) {
		return nil, wlerr.WithDetails(wlerr.ErrInvalidAddress, map[string]string{"to": tx.To})
	}
	if tx.Value != nil && tx.Value.Sign() < 0 {
		return nil, wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"value": tx.Value.String()})
	}
	return chain, nil
}

// Submit sends the transaction through the wallet, switching the wallet to the
// transaction's blockchain first when needed. On success the transaction is
// pending, carries its hash and explorer URL, and Sent has been called.
func Submit(ctx context.Context, p Params) (*Transaction, error) {
	tx := p.Transaction
	if tx == nil || p.Wallet == nil {
		return nil, wlerr.ErrInvalidInput
	}

	chain, err := tx.Validate(p.Chains)
	if err != nil {
		return nil, err
	}
	tx.Status = StatusInitialized

	account, ok := p.Wallet.Account()
	if !ok {
		return nil, wlerr.ErrNotConnected
	}

	connected, err := p.Wallet.ConnectedTo(ctx, chain.Name)
	if err != nil {
		return nil, err
	}
	if !connected {
		if err := p.Wallet.SwitchTo(ctx, chain.Name); err != nil {
			return nil, err
		}
	}

	tx.From = account
	if tx.Nonce == nil && p.Nonces != nil {
		nonce, err := p.Nonces.TransactionCount(ctx, chain.Name, account)
		if err != nil {
			return nil, err
		}
		tx.Nonce = &nonce
	}

	s, err := p.Wallet.Session()
	if err != nil {
		return nil, err
	}

	raw, err := s.Request(ctx, session.Request{
		Method: session.MethodSendTransaction,
		Params: []any{tx.requestParams()},
	})
	if err != nil {
		return nil, err
	}

	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return nil, fmt.Errorf("parsing transaction hash: %w", err)
	}

	tx.ID = hash
	tx.URL = chain.TransactionURL(hash)
	tx.Status = StatusPending
	if tx.Sent != nil {
		tx.Sent(tx)
	}
	return tx, nil
}

// requestParams builds the eth_sendTransaction parameter object.
func (tx *Transaction) requestParams() map[string]string {
	params := map[string]string{"from": tx.From}
	if tx.To != "" {
		params["to"] = tx.To
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		params["value"] = hexutil.EncodeBig(tx.Value)
	}
	if len(tx.Data) > 0 {
		params["data"] = hexutil.Encode(tx.Data)
	}
	if tx.Gas > 0 {
		params["gas"] = hexutil.EncodeUint64(tx.Gas)
	}
	if tx.Nonce != nil {
		params["nonce"] = hexutil.EncodeUint64(*tx.Nonce)
	}
	return params
}

// Confirm polls for the receipt of a pending transaction until it is mined or
// ctx ends, then records the outcome and calls Succeeded or Failed.
func Confirm(ctx context.Context, receipts ReceiptSource, tx *Transaction, interval time.Duration) error {
	if tx == nil || tx.ID == "" {
		return wlerr.WithSuggestion(wlerr.ErrInvalidInput, "submit the transaction before confirming it")
	}
	if interval <= 0 {
		interval = DefaultConfirmInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := receipts.Receipt(ctx, tx.Blockchain, tx.ID)
		switch {
		case err == nil:
			return tx.settle(receipt)
		case !wlerr.Is(err, wlerr.ErrNotFound):
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (tx *Transaction) settle(receipt *types.Receipt) error {
	if receipt.Status == types.ReceiptStatusSuccessful {
		tx.Status = StatusSuccess
		if tx.Succeeded != nil {
			tx.Succeeded(tx)
		}
		return nil
	}

	tx.Status = StatusFailed
	err := wlerr.WithDetails(wlerr.ErrTransactionFailed, map[string]string{"hash": tx.ID})
	if tx.Failed != nil {
		tx.Failed(tx, err)
	}
	return err
}
