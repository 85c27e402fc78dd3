package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Provider exposes standard provider calls over a session.
type Provider struct {
	session Session
}

// NewProvider wraps a session.
func NewProvider(s Session) *Provider {
	return &Provider{session: s}
}

// Accounts returns the accounts the wallet currently exposes.
func (p *Provider) Accounts(ctx context.Context) ([]string, error) {
	raw, err := p.session.Request(ctx, Request{Method: MethodAccounts})
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts: %w", err)
	}
	return accounts, nil
}

// Signer resolves the account at index and returns a signer for it.
func (p *Provider) Signer(ctx context.Context, index int) (*Signer, error) {
	accounts, err := p.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(accounts) {
		return nil, wlerr.WithDetails(wlerr.ErrNotConnected, map[string]string{
			"index": fmt.Sprint(index),
		})
	}
	return &Signer{session: p.session, address: accounts[index]}, nil
}

// Signer signs messages with one wallet account.
type Signer struct {
	session Session
	address string
}

// Address returns the signer's account.
func (s *Signer) Address() string {
	return s.address
}

// SignMessage signs message with personal_sign and returns the 0x-prefixed signature.
func (s *Signer) SignMessage(ctx context.Context, message []byte) (string, error) {
	raw, err := s.session.Request(ctx, Request{
		Method: MethodPersonalSign,
		Params: []any{hexutil.Encode(message), s.address},
	})
	if err != nil {
		return "", err
	}
	return DecodeString(raw)
}

// DecodeString decodes a JSON string result.
func DecodeString(raw json.RawMessage) (string, error) {
	var out string
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("parsing result: %w", err)
	}
	return out, nil
}
