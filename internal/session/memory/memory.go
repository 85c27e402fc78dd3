// Package memory implements an in-process development wallet session.
// Keys are derived from a BIP39 mnemonic and every wallet request is
// answered locally, with real signatures.
package memory

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	"github.com/mrz1836/walletlink/internal/session"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Transaction defaults applied when the request leaves them out.
const (
	DefaultGas      uint64 = 21000
	DefaultGasPrice int64  = 1_000_000_000
)

// Options configures a development wallet.
type Options struct {
	Mnemonic   string
	Passphrase string

	// Accounts is the number of derived accounts (default 1).
	Accounts int

	// ChainID is the chain the wallet starts on (default 1).
	ChainID uint64

	// KnownChains are the chains the wallet can switch to without adding them first.
	// The starting chain is always known.
	KnownChains []uint64

	// Approve is consulted before every user-facing request. Returning false
	// rejects the request with code 4001. Nil approves everything.
	Approve func(req session.Request) bool

	Logger session.Logger
}

// AddedChain is a chain registered through wallet_addEthereumChain.
type AddedChain struct {
	ChainID           string   `json:"chainId"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls"`
	IconURLs          []string `json:"iconUrls"`
}

// Currency is the nativeCurrency object of wallet_addEthereumChain.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

var (
	_ session.Session       = (*Session)(nil)
	_ session.RelayProvider = (*Session)(nil)
)

// Session is an in-process wallet.
type Session struct {
	keys      []*ecdsa.PrivateKey
	addresses []common.Address
	approve   func(req session.Request) bool
	logger    session.Logger

	events          session.Emitter
	connectDisabled atomic.Bool
	closed          atomic.Bool

	mu       sync.RWMutex
	selected int
	enabled  bool
	chainID  uint64
	known    map[uint64]bool
	added    map[uint64]AddedChain
	nonces   map[common.Address]uint64
	sent     []*types.Transaction
	requests []string
}

// New derives the wallet's accounts and returns a ready session.
func New(opts Options) (*Session, error) {
	if opts.Accounts <= 0 {
		opts.Accounts = 1
	}
	if opts.ChainID == 0 {
		opts.ChainID = 1
	}
	if opts.Logger == nil {
		opts.Logger = session.NopLogger()
	}

	keys, err := DeriveKeys(opts.Mnemonic, opts.Passphrase, opts.Accounts)
	if err != nil {
		return nil, err
	}

	s := &Session{
		keys:      keys,
		addresses: make([]common.Address, len(keys)),
		approve:   opts.Approve,
		logger:    opts.Logger,
		chainID:   opts.ChainID,
		known:     map[uint64]bool{opts.ChainID: true},
		added:     make(map[uint64]AddedChain),
		nonces:    make(map[common.Address]uint64),
	}
	for i, k := range keys {
		s.addresses[i] = crypto.PubkeyToAddress(k.PublicKey)
	}
	for _, id := range opts.KnownChains {
		s.known[id] = true
	}

	return s, nil
}

// QRURL returns a pseudo pairing URI naming the first account.
func (s *Session) QRURL() string {
	return "walletlink-dev://" + strings.ToLower(s.addresses[0].Hex())
}

// RelayProvider returns the session itself.
func (s *Session) RelayProvider(_ context.Context) (session.RelayProvider, error) {
	if s.closed.Load() {
		return nil, wlerr.ErrSessionClosed
	}
	return s, nil
}

// SetConnectDisabled enables or disables account requests.
func (s *Session) SetConnectDisabled(disabled bool) { s.connectDisabled.Store(disabled) }

// ConnectDisabled reports whether account requests are refused.
func (s *Session) ConnectDisabled() bool { return s.connectDisabled.Load() }

// Enable grants account access.
func (s *Session) Enable(ctx context.Context) ([]string, error) {
	if s.connectDisabled.Load() {
		return nil, wlerr.ErrConnectDisabled
	}

	raw, err := s.Request(ctx, session.Request{Method: session.MethodRequestAccounts})
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts: %w", err)
	}
	return accounts, nil
}

// ChainID returns the current chain.
func (s *Session) ChainID(_ context.Context) (uint64, error) {
	if s.closed.Load() {
		return 0, wlerr.ErrSessionClosed
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainID, nil
}

// On registers an event handler.
func (s *Session) On(event string, h session.Handler) *session.Listener {
	return s.events.On(event, h)
}

// RemoveListener unregisters an event handler.
func (s *Session) RemoveListener(event string, l *session.Listener) {
	s.events.Remove(event, l)
}

// Close refuses further requests.
func (s *Session) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.events.Emit(session.EventDisconnect, nil)
		s.events.Clear()
	}
	return nil
}

// Address returns the address of the account at index.
func (s *Session) Address(index int) common.Address {
	return s.addresses[index]
}

// SelectAccount makes the account at index the active one and emits accountsChanged.
func (s *Session) SelectAccount(index int) error {
	if index < 0 || index >= len(s.addresses) {
		return wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"index": fmt.Sprint(index)})
	}

	s.mu.Lock()
	s.selected = index
	enabled := s.enabled
	accounts := s.accountsLocked()
	s.mu.Unlock()

	if enabled {
		s.events.Emit(session.EventAccountsChanged, accounts)
	}
	return nil
}

// Sent returns the transactions signed through eth_sendTransaction.
func (s *Session) Sent() []*types.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*types.Transaction, len(s.sent))
	copy(out, s.sent)
	return out
}

// AddedChains returns the chains registered through wallet_addEthereumChain.
func (s *Session) AddedChains() map[uint64]AddedChain {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[uint64]AddedChain, len(s.added))
	for k, v := range s.added {
		out[k] = v
	}
	return out
}

// Requests returns the methods received, in order.
func (s *Session) Requests() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// Request answers a wallet request locally.
func (s *Session) Request(_ context.Context, req session.Request) (json.RawMessage, error) {
	if s.closed.Load() {
		return nil, wlerr.ErrSessionClosed
	}

	s.mu.Lock()
	s.requests = append(s.requests, req.Method)
	s.mu.Unlock()

	s.logger.Debug("memory wallet: %s", req.Method)

	var result any
	var err error
	switch req.Method {
	case session.MethodAccounts:
		s.mu.RLock()
		result = []string{}
		if s.enabled {
			result = s.accountsLocked()
		}
		s.mu.RUnlock()
	case session.MethodChainID:
		s.mu.RLock()
		result = hexutil.EncodeUint64(s.chainID)
		s.mu.RUnlock()
	case session.MethodRequestAccounts,
		session.MethodSwitchChain,
		session.MethodAddChain,
		session.MethodSignTypedDataV4,
		session.MethodPersonalSign,
		session.MethodSendTransaction:
		if s.approve != nil && !s.approve(req) {
			return nil, session.NewRPCError(session.CodeUserRejected, "User rejected the request.")
		}
		result, err = s.handleUserRequest(req)
	default:
		return nil, session.NewRPCError(session.CodeUnsupportedMethod,
			fmt.Sprintf("the method %s does not exist/is not available", req.Method))
	}
	if err != nil {
		return nil, err
	}

	return json.Marshal(result)
}

func (s *Session) handleUserRequest(req session.Request) (any, error) {
	switch req.Method {
	case session.MethodRequestAccounts:
		s.mu.Lock()
		s.enabled = true
		accounts := s.accountsLocked()
		s.mu.Unlock()
		return accounts, nil
	case session.MethodSwitchChain:
		return nil, s.switchChain(req.Params)
	case session.MethodAddChain:
		return nil, s.addChain(req.Params)
	case session.MethodSignTypedDataV4:
		return s.signTypedData(req.Params)
	case session.MethodPersonalSign:
		return s.personalSign(req.Params)
	default:
		return s.sendTransaction(req.Params)
	}
}

// accountsLocked returns the accounts with the selected one first. Callers hold mu.
func (s *Session) accountsLocked() []string {
	out := make([]string, 0, len(s.addresses))
	out = append(out, strings.ToLower(s.addresses[s.selected].Hex()))
	for i, a := range s.addresses {
		if i != s.selected {
			out = append(out, strings.ToLower(a.Hex()))
		}
	}
	return out
}

func (s *Session) switchChain(params []any) error {
	var p struct {
		ChainID string `json:"chainId"`
	}
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return invalidParams("chainId: %v", err)
	}

	s.mu.Lock()
	if !s.known[id] {
		s.mu.Unlock()
		return session.NewRPCError(session.CodeUnrecognizedChain,
			fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", p.ChainID))
	}
	changed := s.chainID != id
	s.chainID = id
	s.mu.Unlock()

	if changed {
		s.events.Emit(session.EventChainChanged, hexutil.EncodeUint64(id))
	}
	return nil
}

func (s *Session) addChain(params []any) error {
	var p AddedChain
	if err := decodeParam(params, 0, &p); err != nil {
		return err
	}
	id, err := hexutil.DecodeUint64(p.ChainID)
	if err != nil {
		return invalidParams("chainId: %v", err)
	}
	if len(p.RPCURLs) == 0 {
		return invalidParams("rpcUrls is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[id] = true
	s.added[id] = p
	return nil
}

func (s *Session) signTypedData(params []any) (string, error) {
	if len(params) < 2 {
		return "", invalidParams("expected [address, typedData]")
	}
	key, err := s.keyFor(params[0])
	if err != nil {
		return "", err
	}

	var typed apitypes.TypedData
	switch data := params[1].(type) {
	case string:
		err = json.Unmarshal([]byte(data), &typed)
	default:
		err = decodeParam(params, 1, &typed)
	}
	if err != nil {
		return "", invalidParams("typed data: %v", err)
	}

	hash, _, err := apitypes.TypedDataAndHash(typed)
	if err != nil {
		return "", invalidParams("typed data: %v", err)
	}
	return sign(hash, key)
}

func (s *Session) personalSign(params []any) (string, error) {
	if len(params) < 2 {
		return "", invalidParams("expected [data, address]")
	}
	key, err := s.keyFor(params[1])
	if err != nil {
		return "", err
	}

	text, ok := params[0].(string)
	if !ok {
		return "", invalidParams("data must be a string")
	}
	data, err := hexutil.Decode(text)
	if err != nil {
		data = []byte(text)
	}
	return sign(accounts.TextHash(data), key)
}

// txArgs mirrors the eth_sendTransaction parameter object.
type txArgs struct {
	From     string          `json:"from"`
	To       *common.Address `json:"to"`
	Value    *hexutil.Big    `json:"value"`
	Data     hexutil.Bytes   `json:"data"`
	Gas      *hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Nonce    *hexutil.Uint64 `json:"nonce"`
}

func (s *Session) sendTransaction(params []any) (string, error) {
	var args txArgs
	if err := decodeParam(params, 0, &args); err != nil {
		return "", err
	}
	key, err := s.keyFor(args.From)
	if err != nil {
		return "", err
	}
	from := crypto.PubkeyToAddress(key.PublicKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	nonce := s.nonces[from]
	if args.Nonce != nil {
		nonce = uint64(*args.Nonce)
	}
	gas := DefaultGas
	if args.Gas != nil {
		gas = uint64(*args.Gas)
	}
	gasPrice := big.NewInt(DefaultGasPrice)
	if args.GasPrice != nil {
		gasPrice = args.GasPrice.ToInt()
	}
	value := new(big.Int)
	if args.Value != nil {
		value = args.Value.ToInt()
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       args.To,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     args.Data,
	})
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(s.chainID))
	signed, err := types.SignTx(tx, signer, key)
	if err != nil {
		return "", fmt.Errorf("signing transaction: %w", err)
	}

	s.sent = append(s.sent, signed)
	s.nonces[from] = nonce + 1
	return signed.Hash().Hex(), nil
}

// keyFor returns the key of an enabled account.
func (s *Session) keyFor(address any) (*ecdsa.PrivateKey, error) {
	str, ok := address.(string)
	if !ok || !common.IsHexAddress(str) {
		return nil, invalidParams("invalid address %v", address)
	}
	addr := common.HexToAddress(str)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.enabled {
		return nil, session.NewRPCError(session.CodeUnauthorized, "The requested account has not been authorized by the user.")
	}
	for i, a := range s.addresses {
		if a == addr {
			return s.keys[i], nil
		}
	}
	return nil, session.NewRPCError(session.CodeUnauthorized, "The requested account has not been authorized by the user.")
}

// sign produces a 65-byte [R || S || V] signature with V in {27, 28}.
func sign(hash []byte, key *ecdsa.PrivateKey) (string, error) {
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig), nil
}

// decodeParam converts params[index] into out through its JSON form.
func decodeParam(params []any, index int, out any) error {
	if index >= len(params) {
		return invalidParams("missing parameter %d", index)
	}
	raw, err := json.Marshal(params[index])
	if err != nil {
		return invalidParams("parameter %d: %v", index, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return invalidParams("parameter %d: %v", index, err)
	}
	return nil
}

func invalidParams(format string, args ...any) error {
	return session.NewRPCError(session.CodeInvalidParams, fmt.Sprintf(format, args...))
}
