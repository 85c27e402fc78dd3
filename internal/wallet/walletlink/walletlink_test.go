package walletlink

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/session"
	"github.com/mrz1836/walletlink/internal/session/memory"
	"github.com/mrz1836/walletlink/internal/transaction"
	"github.com/mrz1836/walletlink/internal/wallet"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

const (
	testMnemonic = "test test test test test test test test test test test junk"
	account0     = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	account1     = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
)

// mockSession is a testify mock of session.Session with a real event emitter.
type mockSession struct {
	mock.Mock
	events   session.Emitter
	disabled atomic.Bool
}

func (m *mockSession) QRURL() string { return "https://bridge.example/#/link?id=test" }

func (m *mockSession) RelayProvider(_ context.Context) (session.RelayProvider, error) {
	return m, nil
}

func (m *mockSession) SetConnectDisabled(disabled bool) { m.disabled.Store(disabled) }

func (m *mockSession) ConnectDisabled() bool { return m.disabled.Load() }

func (m *mockSession) Enable(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	accounts, _ := args.Get(0).([]string)
	return accounts, args.Error(1)
}

func (m *mockSession) ChainID(ctx context.Context) (uint64, error) {
	args := m.Called(ctx)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *mockSession) Request(ctx context.Context, req session.Request) (json.RawMessage, error) {
	args := m.Called(ctx, req)
	raw, _ := args.Get(0).(json.RawMessage)
	return raw, args.Error(1)
}

func (m *mockSession) On(event string, h session.Handler) *session.Listener {
	return m.events.On(event, h)
}

func (m *mockSession) RemoveListener(event string, l *session.Listener) { m.events.Remove(event, l) }

func (m *mockSession) Close() error { return nil }

func method(name string) any {
	return mock.MatchedBy(func(req session.Request) bool { return req.Method == name })
}

type mockRequester struct {
	mock.Mock
}

func (m *mockRequester) TransactionCount(ctx context.Context, blockchain, address string) (uint64, error) {
	args := m.Called(ctx, blockchain, address)
	return args.Get(0).(uint64), args.Error(1)
}

func newMemorySession(t *testing.T, opts memory.Options) *memory.Session {
	t.Helper()
	opts.Mnemonic = testMnemonic
	s, err := memory.New(opts)
	require.NoError(t, err)
	return s
}

func newAdapter(s session.Session) (*WalletLink, *wallet.Registry) {
	reg := wallet.NewRegistry()
	return New(Options{Session: s, Registry: reg, Metrics: &metrics.Metrics{}}), reg
}

func connect(t *testing.T, w *WalletLink) string {
	t.Helper()
	account, err := w.Connect(context.Background(), wallet.ConnectOptions{})
	require.NoError(t, err)
	return account
}

func mailTypedData(chainID int64) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": {
				{Name: "name", Type: "string"},
				{Name: "version", Type: "string"},
				{Name: "chainId", Type: "uint256"},
			},
			"Mail": {
				{Name: "from", Type: "address"},
				{Name: "contents", Type: "string"},
			},
		},
		PrimaryType: "Mail",
		Domain: apitypes.TypedDataDomain{
			Name:    "Ether Mail",
			Version: "1",
			ChainId: math.NewHexOrDecimal256(chainID),
		},
		Message: apitypes.TypedDataMessage{
			"from":     "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826",
			"contents": "Hello, Bob!",
		},
	}
}

func TestInfo(t *testing.T) {
	t.Parallel()

	w, _ := newAdapter(&mockSession{})
	info := w.Info()
	assert.Equal(t, "Coinbase", info.Name)
	assert.NotEmpty(t, info.Logo)
	assert.Contains(t, info.Blockchains, "ethereum")
	assert.Contains(t, info.Blockchains, "polygon")
	assert.Equal(t, Info(), info)
}

func TestConnect(t *testing.T) {
	t.Parallel()

	s := newMemorySession(t, memory.Options{Accounts: 2, ChainID: 137})
	s.SetConnectDisabled(true)
	w, reg := newAdapter(s)

	_, ok := w.Account()
	assert.False(t, ok)
	assert.False(t, w.IsAvailable())

	var uri string
	account, err := w.Connect(context.Background(), wallet.ConnectOptions{Connect: func(u string) { uri = u }})
	require.NoError(t, err)

	assert.Equal(t, s.QRURL(), uri)
	assert.False(t, s.ConnectDisabled())
	assert.Equal(t, account0, account)

	got, ok := w.Account()
	require.True(t, ok)
	assert.Equal(t, account0, got)
	assert.Equal(t, []string{account0, account1}, w.Accounts())

	id, ok := w.ConnectedChainID()
	require.True(t, ok)
	assert.Equal(t, uint64(137), id)

	assert.True(t, w.IsAvailable())
	held, ok := reg.Get(Name)
	require.True(t, ok)
	assert.Same(t, w, held)
}

func TestConnect_ChecksumsAccounts(t *testing.T) {
	t.Parallel()

	s := &mockSession{}
	s.Mock.On("Enable", mock.Anything).Return([]string{strings.ToLower(account1), strings.ToUpper(account0[2:])}, nil).Once()
	w, reg := newAdapter(s)

	_, err := w.Connect(context.Background(), wallet.ConnectOptions{})
	require.ErrorIs(t, err, wlerr.ErrInvalidAddress)
	assert.False(t, reg.IsAvailable(Name))

	s.Mock.On("Enable", mock.Anything).Return([]string{strings.ToLower(account1), strings.ToLower(account0)}, nil).Once()
	s.Mock.On("ChainID", mock.Anything).Return(uint64(1), nil).Once()

	account, err := w.Connect(context.Background(), wallet.ConnectOptions{})
	require.NoError(t, err)
	assert.Equal(t, account1, account)
	assert.Equal(t, []string{account1, account0}, w.Accounts())
	s.AssertExpectations(t)
}

func TestConnect_Rejected(t *testing.T) {
	t.Parallel()

	var reject atomic.Bool
	s := newMemorySession(t, memory.Options{Approve: func(session.Request) bool { return !reject.Load() }})
	w, reg := newAdapter(s)

	connect(t, w)
	require.True(t, reg.IsAvailable(Name))

	reject.Store(true)
	_, err := w.Connect(context.Background(), wallet.ConnectOptions{})
	require.Error(t, err)
	assert.True(t, session.IsCode(err, session.CodeUserRejected), "wallet errors pass through unchanged")
	assert.False(t, reg.IsAvailable(Name))
}

func TestConnect_NoAccounts(t *testing.T) {
	t.Parallel()

	s := &mockSession{}
	s.Mock.On("Enable", mock.Anything).Return([]string{}, nil)
	s.Mock.On("ChainID", mock.Anything).Return(uint64(1), nil)
	w, reg := newAdapter(s)

	account, err := w.Connect(context.Background(), wallet.ConnectOptions{})
	require.NoError(t, err)
	assert.Empty(t, account)
	assert.False(t, reg.IsAvailable(Name))
	_, ok := w.Account()
	assert.False(t, ok)
}

func TestConnect_EmptyReconnectVacatesSlot(t *testing.T) {
	t.Parallel()

	s := &mockSession{}
	s.Mock.On("Enable", mock.Anything).Return([]string{account0}, nil).Once()
	s.Mock.On("Enable", mock.Anything).Return([]string{}, nil).Once()
	s.Mock.On("ChainID", mock.Anything).Return(uint64(1), nil)
	w, reg := newAdapter(s)

	assert.Equal(t, account0, connect(t, w))
	require.True(t, reg.IsAvailable(Name))

	account, err := w.Connect(context.Background(), wallet.ConnectOptions{})
	require.NoError(t, err)
	assert.Empty(t, account)
	assert.False(t, reg.IsAvailable(Name))
	assert.False(t, w.IsAvailable())
	_, ok := w.Account()
	assert.False(t, ok)
	s.AssertExpectations(t)
}

func TestDisconnect(t *testing.T) {
	t.Parallel()

	s := newMemorySession(t, memory.Options{})
	w, reg := newAdapter(s)
	other, _ := newAdapter(s)

	connect(t, w)
	other.registry = reg

	other.Disconnect(context.Background())
	assert.True(t, reg.IsAvailable(Name), "only the holder clears the slot")

	w.Disconnect(context.Background())
	assert.False(t, reg.IsAvailable(Name))
	_, ok := w.Account()
	assert.False(t, ok)
	_, ok = w.ConnectedChainID()
	assert.False(t, ok)
}

func TestConnectedTo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	w, _ := newAdapter(newMemorySession(t, memory.Options{ChainID: 137}))

	name, ok, err := w.ConnectedNetwork(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "polygon", name)

	for input, want := range map[string]bool{
		"polygon":  true,
		"Polygon":  true,
		"ethereum": false,
		"solana":   false,
	} {
		got, err := w.ConnectedTo(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, want, got, input)
	}

	unknown, _ := newAdapter(newMemorySession(t, memory.Options{ChainID: 31337}))
	_, ok, err = unknown.ConnectedNetwork(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := unknown.ConnectedTo(ctx, "ethereum")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestSwitchTo(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("known chain", func(t *testing.T) {
		t.Parallel()
		s := newMemorySession(t, memory.Options{KnownChains: []uint64{56}})
		w, _ := newAdapter(s)

		require.NoError(t, w.SwitchTo(ctx, "bsc"))
		assert.Equal(t, []string{session.MethodSwitchChain}, s.Requests())

		ok, err := w.ConnectedTo(ctx, "bsc")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unrecognized chain is added then retried", func(t *testing.T) {
		t.Parallel()
		s := newMemorySession(t, memory.Options{})
		w, _ := newAdapter(s)

		require.NoError(t, w.SwitchTo(ctx, "polygon"))
		assert.Equal(t, []string{
			session.MethodSwitchChain,
			session.MethodAddChain,
			session.MethodSwitchChain,
		}, s.Requests())

		added := s.AddedChains()[137]
		assert.Equal(t, "0x89", added.ChainID)
		assert.Equal(t, "Polygon Mainnet", added.ChainName)
		assert.Equal(t, memory.Currency{Name: "Polygon", Symbol: "POL", Decimals: 18}, added.NativeCurrency)
		assert.Equal(t, []string{"https://polygon-rpc.com"}, added.RPCURLs)
		assert.Equal(t, []string{"https://polygonscan.com"}, added.BlockExplorerURLs)
		assert.Equal(t, []string{"https://icons.llamao.fi/icons/chains/rsz_polygon.jpg"}, added.IconURLs)

		name, _, err := w.ConnectedNetwork(ctx)
		require.NoError(t, err)
		assert.Equal(t, "polygon", name)
	})

	t.Run("retry error propagates without looping", func(t *testing.T) {
		t.Parallel()
		rejected := session.NewRPCError(session.CodeUserRejected, "User rejected the request.")

		s := &mockSession{}
		s.Mock.On("Request", mock.Anything, method(session.MethodSwitchChain)).
			Return(nil, session.NewRPCError(session.CodeUnrecognizedChain, "Unrecognized chain ID")).Once()
		s.Mock.On("Request", mock.Anything, method(session.MethodAddChain)).Return(json.RawMessage("null"), nil).Once()
		s.Mock.On("Request", mock.Anything, method(session.MethodSwitchChain)).Return(nil, rejected).Once()
		w, _ := newAdapter(s)

		err := w.SwitchTo(ctx, "arbitrum")
		require.ErrorIs(t, err, rejected)
		s.AssertExpectations(t)
		s.AssertNumberOfCalls(t, "Request", 3)
	})

	t.Run("retry reports unrecognized again", func(t *testing.T) {
		t.Parallel()
		s := &mockSession{}
		s.Mock.On("Request", mock.Anything, method(session.MethodSwitchChain)).
			Return(nil, session.NewRPCError(session.CodeUnrecognizedChain, "Unrecognized chain ID")).Twice()
		s.Mock.On("Request", mock.Anything, method(session.MethodAddChain)).Return(json.RawMessage("null"), nil).Once()
		w, _ := newAdapter(s)

		err := w.SwitchTo(ctx, "gnosis")
		assert.True(t, session.IsCode(err, session.CodeUnrecognizedChain))
		s.AssertNumberOfCalls(t, "Request", 3)
	})

	t.Run("add failure stops the switch", func(t *testing.T) {
		t.Parallel()
		addErr := session.NewRPCError(session.CodeInvalidParams, "bad rpc url")

		s := &mockSession{}
		s.Mock.On("Request", mock.Anything, method(session.MethodSwitchChain)).
			Return(nil, session.NewRPCError(session.CodeUnrecognizedChain, "Unrecognized chain ID")).Once()
		s.Mock.On("Request", mock.Anything, method(session.MethodAddChain)).Return(nil, addErr).Once()
		w, _ := newAdapter(s)

		require.ErrorIs(t, w.SwitchTo(ctx, "base"), addErr)
		s.AssertNumberOfCalls(t, "Request", 2)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		t.Parallel()
		s := newMemorySession(t, memory.Options{KnownChains: []uint64{10}, Approve: func(session.Request) bool { return false }})
		w, _ := newAdapter(s)

		err := w.SwitchTo(ctx, "optimism")
		assert.True(t, session.IsCode(err, session.CodeUserRejected))
		assert.Equal(t, []string{session.MethodSwitchChain}, s.Requests())
	})

	t.Run("unknown blockchain", func(t *testing.T) {
		t.Parallel()
		s := newMemorySession(t, memory.Options{})
		w, _ := newAdapter(s)

		require.ErrorIs(t, w.SwitchTo(ctx, "polygn"), wlerr.ErrUnknownBlockchain)
		require.ErrorIs(t, w.AddNetwork(ctx, "polygn"), wlerr.ErrUnknownBlockchain)
		assert.Empty(t, s.Requests())
	})
}

func TestAddNetwork(t *testing.T) {
	t.Parallel()

	s := newMemorySession(t, memory.Options{})
	w, _ := newAdapter(s)

	require.NoError(t, w.AddNetwork(context.Background(), "Avalanche"))
	added, ok := s.AddedChains()[43114]
	require.True(t, ok)
	assert.Equal(t, "0xa86a", added.ChainID)
	assert.Equal(t, []string{session.MethodAddChain}, s.Requests())
}

func TestOnOff(t *testing.T) {
	t.Parallel()

	s := newMemorySession(t, memory.Options{Accounts: 2})
	w, _ := newAdapter(s)
	connect(t, w)

	var got []string
	l, err := w.On(wallet.EventAccount, func(account string) { got = append(got, account) })
	require.NoError(t, err)
	require.NotNil(t, l)

	require.NoError(t, s.SelectAccount(1))
	assert.Equal(t, []string{account1}, got)

	require.NoError(t, w.Off(wallet.EventAccount, l))
	require.NoError(t, s.SelectAccount(0))
	assert.Equal(t, []string{account1}, got)
}

func TestOn_ChecksumsFirstAccount(t *testing.T) {
	t.Parallel()

	s := &mockSession{}
	w, _ := newAdapter(s)

	var got []string
	_, err := w.On(wallet.EventAccount, func(account string) { got = append(got, account) })
	require.NoError(t, err)

	s.events.Emit(session.EventAccountsChanged, []string{strings.ToLower(account0), strings.ToLower(account1)})
	s.events.Emit(session.EventAccountsChanged, []any{strings.ToLower(account1)})
	s.events.Emit(session.EventAccountsChanged, []string{})

	assert.Equal(t, []string{account0, account1}, got)
}

func TestOn_DropsInvalidAccount(t *testing.T) {
	t.Parallel()

	s := &mockSession{}
	w, _ := newAdapter(s)

	var got []string
	_, err := w.On(wallet.EventAccount, func(account string) { got = append(got, account) })
	require.NoError(t, err)

	s.events.Emit(session.EventAccountsChanged, []string{"not-an-address"})
	s.events.Emit(session.EventAccountsChanged, []string{"0x1234", account1})
	assert.Empty(t, got)

	s.events.Emit(session.EventAccountsChanged, []string{strings.ToLower(account1)})
	assert.Equal(t, []string{account1}, got)
}

func TestOnOff_UnsupportedEvent(t *testing.T) {
	t.Parallel()

	w, _ := newAdapter(&mockSession{})

	l, err := w.On("chain", func(string) {})
	require.ErrorIs(t, err, wlerr.ErrUnsupportedOperation)
	assert.Nil(t, l)

	require.ErrorIs(t, w.Off("chain", nil), wlerr.ErrUnsupportedOperation)
}

func TestSign_Plain(t *testing.T) {
	t.Parallel()

	s := newMemorySession(t, memory.Options{})
	w, _ := newAdapter(s)
	connect(t, w)

	sig, err := w.Sign(context.Background(), wallet.PlainMessage("hello walletlink"))
	require.NoError(t, err)

	signer, err := wallet.RecoverSigner([]byte("hello walletlink"), sig)
	require.NoError(t, err)
	assert.Equal(t, account0, signer)
}

func TestSign_PlainNotConnected(t *testing.T) {
	t.Parallel()

	w, _ := newAdapter(newMemorySession(t, memory.Options{}))

	_, err := w.Sign(context.Background(), wallet.PlainMessage("hello"))
	require.ErrorIs(t, err, wlerr.ErrNotConnected)
}

func TestSign_Structured(t *testing.T) {
	t.Parallel()

	s := newMemorySession(t, memory.Options{ChainID: 137})
	w, _ := newAdapter(s)
	connect(t, w)

	td := mailTypedData(137)
	sig, err := w.Sign(context.Background(), wallet.StructuredMessage(td))
	require.NoError(t, err)

	signer, err := wallet.RecoverTypedDataSigner(td, sig)
	require.NoError(t, err)
	assert.Equal(t, account0, signer)
}

func TestSign_StructuredWrongNetwork(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for name, chainID := range map[string]int64{
		"other known chain": 1,
		"unknown chain":     31337,
	} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newMemorySession(t, memory.Options{ChainID: 137})
			w, _ := newAdapter(s)
			connect(t, w)

			_, err := w.Sign(ctx, wallet.StructuredMessage(mailTypedData(chainID)))
			require.ErrorIs(t, err, wlerr.ErrWrongNetwork)
			assert.NotContains(t, s.Requests(), session.MethodSignTypedDataV4)
		})
	}
}

func TestSign_Invalid(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	w, _ := newAdapter(newMemorySession(t, memory.Options{}))

	_, err := w.Sign(ctx, wallet.Message{})
	require.ErrorIs(t, err, wlerr.ErrUnsupportedOperation)

	_, err = w.Sign(ctx, wallet.Message{Kind: 7, Text: "x"})
	require.ErrorIs(t, err, wlerr.ErrUnsupportedOperation)

	td := mailTypedData(1)
	td.Domain.ChainId = nil
	_, err = w.Sign(ctx, wallet.StructuredMessage(td))
	require.ErrorIs(t, err, wlerr.ErrInvalidInput)
}

func TestTransactionCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	r := &mockRequester{}
	r.On("TransactionCount", mock.Anything, "polygon", account0).Return(uint64(42), nil)

	w := New(Options{Session: &mockSession{}, Registry: wallet.NewRegistry(), Requester: r, Metrics: &metrics.Metrics{}})
	n, err := w.TransactionCount(ctx, "polygon", account0)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), n)
	r.AssertExpectations(t)

	bare, _ := newAdapter(&mockSession{})
	_, err = bare.TransactionCount(ctx, "polygon", account0)
	require.ErrorIs(t, err, wlerr.ErrUnsupportedOperation)
}

func TestSendTransaction(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	s := newMemorySession(t, memory.Options{KnownChains: []uint64{137}})
	r := &mockRequester{}
	r.On("TransactionCount", mock.Anything, "polygon", account0).Return(uint64(3), nil)

	m := &metrics.Metrics{}
	w := New(Options{Session: s, Registry: wallet.NewRegistry(), Requester: r, Metrics: m})
	connect(t, w)

	tx, err := w.SendTransaction(ctx, &transaction.Transaction{Blockchain: "polygon", To: account1})
	require.NoError(t, err)

	assert.Equal(t, transaction.StatusPending, tx.Status)
	assert.Equal(t, "https://polygonscan.com/tx/"+tx.ID, tx.URL)

	sent := s.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(3), sent[0].Nonce())
	assert.Equal(t, int64(137), sent[0].ChainId().Int64())

	ok, err := w.ConnectedTo(ctx, "polygon")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Positive(t, m.SessionRequests())
}

func TestSharedSession_NoFactory(t *testing.T) { //nolint:paralleltest // mutates the package-level shared session
	SetSessionFactory(defaultSessionFactory)
	require.NoError(t, ResetSession())
	t.Cleanup(func() { _ = ResetSession() })

	w := New(Options{Registry: wallet.NewRegistry()})
	_, err := w.Session()
	require.ErrorIs(t, err, wlerr.ErrNoSession)

	_, err = w.Connect(context.Background(), wallet.ConnectOptions{})
	require.ErrorIs(t, err, wlerr.ErrNoSession)
	assert.False(t, w.IsAvailable())
}

func TestSharedSession(t *testing.T) { //nolint:paralleltest // mutates the package-level shared session
	var created atomic.Int32
	SetSessionFactory(func() (session.Session, error) {
		created.Add(1)
		s, err := memory.New(memory.Options{Mnemonic: testMnemonic})
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	require.NoError(t, ResetSession())
	t.Cleanup(func() {
		_ = ResetSession()
		SetSessionFactory(defaultSessionFactory)
	})

	a := New(Options{Registry: wallet.NewRegistry()})
	b := New(Options{Registry: wallet.NewRegistry()})

	sa, err := a.Session()
	require.NoError(t, err)
	sb, err := b.Session()
	require.NoError(t, err)
	assert.Same(t, sa, sb)
	assert.Equal(t, int32(1), created.Load())

	isolated := newMemorySession(t, memory.Options{})
	c := New(Options{Session: isolated})
	sc, err := c.Session()
	require.NoError(t, err)
	assert.Same(t, isolated, sc)

	require.NoError(t, ResetSession())
	sa2, err := a.Session()
	require.NoError(t, err)
	assert.NotSame(t, sa, sa2)
	assert.Equal(t, int32(2), created.Load())
}
