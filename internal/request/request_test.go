package request

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/metrics"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

const (
	testAddress = "0x742d35Cc6634C0532925a3b844Bc454e4438f44e"
	testHash    = "0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060"
)

// newRPCServer answers eth_* methods from a fixed table.
func newRPCServer(t *testing.T, results map[string]any) (*httptest.Server, *sync.Map) {
	t.Helper()

	var seen sync.Map
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
			Params []any           `json:"params"`
		}
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			return
		}
		seen.Store(req.Method, req.Params)

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)
	return server, &seen
}

func receiptJSON() map[string]any {
	return map[string]any{
		"type":              "0x0",
		"status":            "0x1",
		"cumulativeGasUsed": "0x5208",
		"logsBloom":         "0x" + strings.Repeat("0", 512),
		"logs":              []any{},
		"transactionHash":   testHash,
		"contractAddress":   nil,
		"gasUsed":           "0x5208",
		"effectiveGasPrice": "0x3b9aca00",
		"blockHash":         "0x" + strings.Repeat("ab", 32),
		"blockNumber":       "0x10",
		"transactionIndex":  "0x0",
	}
}

func TestClient_WithEthclient(t *testing.T) {
	t.Parallel()

	server, seen := newRPCServer(t, map[string]any{
		"eth_getTransactionCount":   "0xa",
		"eth_getBalance":            "0xde0b6b3a7640000",
		"eth_blockNumber":           "0x10",
		"eth_getTransactionReceipt": receiptJSON(),
	})

	m := &metrics.Metrics{}
	c := New(Options{
		RPCOverrides: map[string]string{"polygon": server.URL},
		Metrics:      m,
	})
	defer c.Close()

	ctx := context.Background()

	nonce, err := c.TransactionCount(ctx, "polygon", testAddress)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), nonce)

	params, ok := seen.Load("eth_getTransactionCount")
	require.True(t, ok)
	assert.Equal(t, []any{strings.ToLower(testAddress), "latest"}, params)

	balance, err := c.Balance(ctx, "Polygon", testAddress)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())

	block, err := c.BlockNumber(ctx, "polygon")
	require.NoError(t, err)
	assert.Equal(t, uint64(16), block)

	receipt, err := c.Receipt(ctx, "polygon", testHash)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, uint64(16), receipt.BlockNumber.Uint64())

	assert.Equal(t, int64(4), m.ChainCalls("polygon"))
	assert.Equal(t, int64(1), m.Snapshot().CacheMisses, "one client per blockchain")
	assert.Equal(t, int64(3), m.Snapshot().CacheHits)
}

func TestClient_Request(t *testing.T) {
	t.Parallel()

	server, _ := newRPCServer(t, map[string]any{
		"eth_getTransactionCount":   "0x3",
		"eth_getTransactionReceipt": nil,
	})

	c := New(Options{RPCOverrides: map[string]string{"ethereum": server.URL}, Metrics: &metrics.Metrics{}})
	defer c.Close()

	ctx := context.Background()

	result, err := c.Request(ctx, Params{Blockchain: "ethereum", Method: MethodTransactionCount, Address: testAddress})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result)

	_, err = c.Request(ctx, Params{Blockchain: "ethereum", Method: MethodReceipt, Hash: testHash})
	require.ErrorIs(t, err, wlerr.ErrNotFound, "pending transactions have no receipt")

	_, err = c.Request(ctx, Params{Blockchain: "ethereum", Method: "gasPrice"})
	require.ErrorIs(t, err, wlerr.ErrUnsupportedOperation)

	_, err = c.Request(ctx, Params{Blockchain: "ethereum", Method: MethodBlockNumber})
	require.ErrorIs(t, err, wlerr.ErrNetworkError)
}

func TestClient_InputErrors(t *testing.T) {
	t.Parallel()

	c := New(Options{
		Metrics: &metrics.Metrics{},
		Dial: func(context.Context, string) (Backend, error) {
			t.Fatal("no dial expected")
			return nil, nil
		},
	})
	ctx := context.Background()

	_, err := c.TransactionCount(ctx, "ethereum", "0x123")
	require.ErrorIs(t, err, wlerr.ErrInvalidAddress)

	_, err = c.Balance(ctx, "ethereum", "nope")
	require.ErrorIs(t, err, wlerr.ErrInvalidAddress)

	_, err = c.Receipt(ctx, "ethereum", "0x1234")
	require.ErrorIs(t, err, wlerr.ErrInvalidInput)

	_, err = c.BlockNumber(ctx, "etherum")
	require.ErrorIs(t, err, wlerr.ErrUnknownBlockchain)

	_, err = c.RPCURL("solana")
	require.ErrorIs(t, err, wlerr.ErrUnknownBlockchain)
}

func TestClient_RPCURL(t *testing.T) {
	t.Parallel()

	c := New(Options{RPCOverrides: map[string]string{"bsc": "https://bsc.example"}})

	u, err := c.RPCURL("bsc")
	require.NoError(t, err)
	assert.Equal(t, "https://bsc.example", u)

	u, err = c.RPCURL("ethereum")
	require.NoError(t, err)
	assert.Equal(t, "https://ethereum-rpc.publicnode.com", u)
}

// mockBackend is a testify mock of Backend.
type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	args := m.Called(ctx, account, blockNumber)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	args := m.Called(ctx, account, blockNumber)
	b, _ := args.Get(0).(*big.Int)
	return b, args.Error(1)
}

func (m *mockBackend) BlockNumber(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	args := m.Called(ctx, txHash)
	r, _ := args.Get(0).(*types.Receipt)
	return r, args.Error(1)
}

func (m *mockBackend) Close() { m.Called() }

func TestClient_BackendErrorsAndClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := &mockBackend{}
	backend.On("NonceAt", ctx, common.HexToAddress(testAddress), (*big.Int)(nil)).
		Return(uint64(0), errors.New("connection reset"))
	backend.On("TransactionReceipt", ctx, common.HexToHash(testHash)).
		Return(nil, ethereum.NotFound)
	backend.On("Close").Return()

	var dials []string
	m := &metrics.Metrics{}
	c := New(Options{
		Metrics: m,
		Dial: func(_ context.Context, rawURL string) (Backend, error) {
			dials = append(dials, rawURL)
			return backend, nil
		},
	})

	_, err := c.TransactionCount(ctx, "base", testAddress)
	require.ErrorIs(t, err, wlerr.ErrNetworkError)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, int64(1), m.RPCErrorsTotal())

	_, err = c.Receipt(ctx, "base", testHash)
	require.ErrorIs(t, err, wlerr.ErrNotFound)

	assert.Equal(t, []string{"https://mainnet.base.org"}, dials)

	c.Close()
	backend.AssertExpectations(t)

	c.Close() // second close is a no-op
	backend.AssertNumberOfCalls(t, "Close", 1)
}

func TestClient_DialError(t *testing.T) {
	t.Parallel()

	c := New(Options{
		Metrics: &metrics.Metrics{},
		Dial: func(context.Context, string) (Backend, error) {
			return nil, errors.New("bad url")
		},
	})

	_, err := c.BlockNumber(context.Background(), "gnosis")
	require.ErrorIs(t, err, wlerr.ErrNetworkError)
	assert.Contains(t, err.Error(), "connecting to gnosis")
}
