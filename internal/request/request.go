// Package request performs read-only chain requests (nonces, balances,
// receipts) against the public RPC endpoint of each blockchain.
package request

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/mrz1836/walletlink/internal/blockchains"
	"github.com/mrz1836/walletlink/internal/metrics"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Method names accepted by Request.
const (
	MethodTransactionCount = "transactionCount"
	MethodBalance          = "balance"
	MethodBlockNumber      = "blockNumber"
	MethodReceipt          = "receipt"
)

// Params describes one chain request.
type Params struct {
	Blockchain string
	Method     string
	Address    string
	Hash       string
}

// Backend is the part of ethclient.Client the request client uses.
type Backend interface {
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	Close()
}

// Dialer opens a backend for an RPC URL.
type Dialer func(ctx context.Context, rawURL string) (Backend, error)

// DialEthclient dials a go-ethereum RPC client.
func DialEthclient(ctx context.Context, rawURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Logger receives debug diagnostics.
type Logger interface {
	Debug(format string, args ...any)
}

// Options configures a Client.
type Options struct {
	// Chains resolves blockchain names (default blockchains.Default).
	Chains *blockchains.Registry

	// RPCOverrides maps blockchain names to RPC URLs replacing the metadata default.
	RPCOverrides map[string]string

	RateLimiter *RateLimiter
	Dial        Dialer
	Metrics     *metrics.Metrics
	Logger      Logger
}

// Client performs chain requests, keeping one backend per blockchain.
type Client struct {
	chains    *blockchains.Registry
	overrides map[string]string
	limiter   *RateLimiter
	dial      Dialer
	metrics   *metrics.Metrics
	logger    Logger

	mu       sync.Mutex
	backends map[string]Backend
}

// New creates a request client.
func New(opts Options) *Client {
	if opts.Chains == nil {
		opts.Chains = blockchains.Default
	}
	if opts.RateLimiter == nil {
		opts.RateLimiter = DefaultRateLimiter()
	}
	if opts.Dial == nil {
		opts.Dial = DialEthclient
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	return &Client{
		chains:    opts.Chains,
		overrides: opts.RPCOverrides,
		limiter:   opts.RateLimiter,
		dial:      opts.Dial,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		backends:  make(map[string]Backend),
	}
}

// Request dispatches a request by method name.
// The result is uint64 for transactionCount and blockNumber, *big.Int for balance
// and *types.Receipt for receipt.
func (c *Client) Request(ctx context.Context, p Params) (any, error) {
	switch p.Method {
	case MethodTransactionCount:
		return c.TransactionCount(ctx, p.Blockchain, p.Address)
	case MethodBalance:
		return c.Balance(ctx, p.Blockchain, p.Address)
	case MethodBlockNumber:
		return c.BlockNumber(ctx, p.Blockchain)
	case MethodReceipt:
		return c.Receipt(ctx, p.Blockchain, p.Hash)
	default:
		return nil, wlerr.WithDetails(wlerr.ErrUnsupportedOperation, map[string]string{"method": p.Method})
	}
}

// TransactionCount returns the number of transactions sent from address (latest block).
func (c *Client) TransactionCount(ctx context.Context, blockchain, address string) (uint64, error) {
	account, err := parseAddress(address)
	if err != nil {
		return 0, err
	}

	var nonce uint64
	err = c.call(ctx, blockchain, func(b Backend) (err error) {
		nonce, err = b.NonceAt(ctx, account, nil)
		return err
	})
	return nonce, err
}

// Balance returns the native balance of address in wei.
func (c *Client) Balance(ctx context.Context, blockchain, address string) (*big.Int, error) {
	account, err := parseAddress(address)
	if err != nil {
		return nil, err
	}

	var balance *big.Int
	err = c.call(ctx, blockchain, func(b Backend) (err error) {
		balance, err = b.BalanceAt(ctx, account, nil)
		return err
	})
	return balance, err
}

// BlockNumber returns the latest block number.
func (c *Client) BlockNumber(ctx context.Context, blockchain string) (uint64, error) {
	var n uint64
	err := c.call(ctx, blockchain, func(b Backend) (err error) {
		n, err = b.BlockNumber(ctx)
		return err
	})
	return n, err
}

// Receipt returns the receipt of a mined transaction, or ErrNotFound while it is pending.
func (c *Client) Receipt(ctx context.Context, blockchain, hash string) (*types.Receipt, error) {
	if len(common.FromHex(hash)) != common.HashLength {
		return nil, wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"hash": hash})
	}

	var receipt *types.Receipt
	err := c.call(ctx, blockchain, func(b Backend) (err error) {
		receipt, err = b.TransactionReceipt(ctx, common.HexToHash(hash))
		return err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, wlerr.WithDetails(wlerr.ErrNotFound, map[string]string{"transaction": hash})
	}
	return receipt, err
}

// RPCURL returns the endpoint used for a blockchain.
func (c *Client) RPCURL(blockchain string) (string, error) {
	chain, err := c.chains.Lookup(blockchain)
	if err != nil {
		return "", err
	}
	if u := c.overrides[chain.Name]; u != "" {
		return u, nil
	}
	return chain.RPC, nil
}

// Close closes every backend.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, b := range c.backends {
		b.Close()
		delete(c.backends, name)
	}
}

func (c *Client) call(ctx context.Context, blockchain string, fn func(Backend) error) error {
	backend, name, err := c.backend(ctx, blockchain)
	if err != nil {
		return err
	}

	if err := c.limiter.Wait(ctx, name); err != nil {
		return err
	}

	start := time.Now()
	err = fn(backend)
	c.metrics.RecordRPCCall(name, time.Since(start), err)

	if err != nil && !errors.Is(err, ethereum.NotFound) {
		c.logger.Debug("%s request failed: %v", name, err)
		return wlerr.Wrap(wlerr.ErrNetworkError, "%s: %v", name, err)
	}
	return err
}

func (c *Client) backend(ctx context.Context, blockchain string) (Backend, string, error) {
	chain, err := c.chains.Lookup(blockchain)
	if err != nil {
		return nil, "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if b, ok := c.backends[chain.Name]; ok {
		c.metrics.RecordCacheHit()
		return b, chain.Name, nil
	}
	c.metrics.RecordCacheMiss()

	rpcURL := chain.RPC
	if u := c.overrides[chain.Name]; u != "" {
		rpcURL = u
	}

	b, err := c.dial(ctx, rpcURL)
	if err != nil {
		return nil, "", wlerr.Wrap(wlerr.ErrNetworkError, "connecting to %s: %v", chain.Name, err)
	}
	c.logger.Debug("connected to %s at %s", chain.Name, rpcURL)
	c.backends[chain.Name] = b
	return b, chain.Name, nil
}

func parseAddress(address string) (common.Address, error) {
	if !common.IsHexAddress(address) {
		return common.Address{}, wlerr.WithDetails(wlerr.ErrInvalidAddress, map[string]string{"address": address})
	}
	return common.HexToAddress(address), nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
