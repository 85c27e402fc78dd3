// Package walletlink adapts a WalletLink session (the Coinbase wallet bridge)
// to the wallet.Wallet interface.
//
// Adapters built without an explicit session share one lazily created session
// per process, built by the factory given to SetSessionFactory. There is no
// default bridge, so the factory must be set first. Pass Options.Session to
// give an adapter its own.
package walletlink

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/mrz1836/walletlink/internal/blockchains"
	"github.com/mrz1836/walletlink/internal/metrics"
	"github.com/mrz1836/walletlink/internal/session"
	"github.com/mrz1836/walletlink/internal/transaction"
	"github.com/mrz1836/walletlink/internal/wallet"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Name is the backend name under which connected adapters are registered.
const Name = "Coinbase"

// Logo is the wallet logo shown by wallet pickers.
const Logo = "https://www.coinbase.com/img/favicon/favicon-256.png"

// Info describes the backend.
func Info() wallet.Info {
	return wallet.Info{
		Name:        Name,
		Logo:        Logo,
		Blockchains: blockchains.SupportedEVM(),
	}
}

// shared is the session used by adapters built without Options.Session.
var shared = session.NewShared(defaultSessionFactory)

// defaultSessionFactory fails until SetSessionFactory names a bridge.
func defaultSessionFactory() (session.Session, error) {
	return nil, wlerr.WithSuggestion(wlerr.ErrNoSession,
		"open a bridge session with SetSessionFactory or pass Options.Session")
}

// SetSessionFactory changes how the shared session is created. It takes effect
// after the next ResetSession.
func SetSessionFactory(factory session.Factory) {
	shared.SetFactory(factory)
}

// ResetSession closes the shared session. The next adapter that needs it creates a new one.
func ResetSession() error {
	return shared.Reset()
}

// DefaultRegistry holds the connected adapter when Options.Registry is nil.
var DefaultRegistry = wallet.NewRegistry()

// Requester answers chain queries the wallet session cannot.
type Requester interface {
	TransactionCount(ctx context.Context, blockchain, address string) (uint64, error)
}

// Logger is the logging interface used by the adapter.
type Logger interface {
	Debug(format string, args ...any)
	Error(format string, args ...any)
}

// Options configures an adapter.
type Options struct {
	// Session isolates the adapter from the shared session.
	Session session.Session

	// Registry receives the adapter once connected (default DefaultRegistry).
	Registry *wallet.Registry

	// Requester serves TransactionCount and nonces for SendTransaction.
	Requester Requester

	// Chains resolves blockchains (default blockchains.Default).
	Chains *blockchains.Registry

	Metrics *metrics.Metrics
	Logger  Logger
}

var (
	_ wallet.Wallet      = (*WalletLink)(nil)
	_ transaction.Wallet = (*WalletLink)(nil)
)

// WalletLink is a wallet adapter over a WalletLink session.
type WalletLink struct {
	info      wallet.Info
	session   session.Session
	registry  *wallet.Registry
	requester Requester
	chains    *blockchains.Registry
	metrics   *metrics.Metrics
	logger    Logger

	mu       sync.RWMutex
	accounts []string
	chainID  uint64
}

// New creates an adapter.
func New(opts Options) *WalletLink {
	if opts.Registry == nil {
		opts.Registry = DefaultRegistry
	}
	if opts.Chains == nil {
		opts.Chains = blockchains.Default
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Global
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}

	return &WalletLink{
		info:      Info(),
		session:   opts.Session,
		registry:  opts.Registry,
		requester: opts.Requester,
		chains:    opts.Chains,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
}

// Info returns the backend description.
func (w *WalletLink) Info() wallet.Info { return w.info }

// Session returns the adapter's session, creating the shared one on first use.
func (w *WalletLink) Session() (session.Session, error) {
	if w.session != nil {
		return w.session, nil
	}
	return shared.Get()
}

// IsAvailable reports whether a WalletLink adapter is connected.
func (w *WalletLink) IsAvailable() bool {
	return w.registry.IsAvailable(w.info.Name)
}

// Connect pairs with the wallet and returns the primary account.
//
// opts.Connect receives the pairing URI before accounts are requested. Enable
// waits for the user to approve in the wallet; ctx bounds that wait.
func (w *WalletLink) Connect(ctx context.Context, opts wallet.ConnectOptions) (account string, err error) {
	defer func() { w.metrics.RecordWalletOp(err) }()

	s, err := w.Session()
	if err != nil {
		return "", err
	}

	if opts.Connect != nil {
		opts.Connect(s.QRURL())
	}
	w.logger.Debug("walletlink: pairing uri issued")

	rp, err := s.RelayProvider(ctx)
	if err != nil {
		w.registry.Clear(w.info.Name, w)
		return "", err
	}
	rp.SetConnectDisabled(false)

	start := time.Now()
	raw, err := s.Enable(ctx)
	w.metrics.RecordSessionRequest(time.Since(start), err)
	if err != nil {
		w.registry.Clear(w.info.Name, w)
		return "", err
	}
	w.logger.Debug("walletlink: %d account(s) enabled", len(raw))

	accounts := make([]string, 0, len(raw))
	for _, a := range raw {
		checksummed, nerr := wallet.NormalizeAddress(a)
		if nerr != nil {
			w.registry.Clear(w.info.Name, w)
			return "", nerr
		}
		accounts = append(accounts, checksummed)
	}

	chainID, err := w.fetchChainID(ctx, s)
	if err != nil {
		w.registry.Clear(w.info.Name, w)
		return "", err
	}

	w.mu.Lock()
	w.accounts = accounts
	w.chainID = chainID
	w.mu.Unlock()

	if len(accounts) == 0 {
		w.registry.Clear(w.info.Name, w)
		return "", nil
	}
	w.registry.Set(w.info.Name, w)
	return accounts[0], nil
}

// Disconnect forgets the connected accounts and vacates the registry slot.
// The session stays open for other adapters sharing it.
func (w *WalletLink) Disconnect(_ context.Context) {
	w.mu.Lock()
	w.accounts = nil
	w.chainID = 0
	w.mu.Unlock()

	w.registry.Clear(w.info.Name, w)
	w.logger.Debug("walletlink: disconnected")
}

// Account returns the primary connected account. It never touches the network.
func (w *WalletLink) Account() (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if len(w.accounts) == 0 {
		return "", false
	}
	return w.accounts[0], true
}

// Accounts returns every connected account.
func (w *WalletLink) Accounts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]string, len(w.accounts))
	copy(out, w.accounts)
	return out
}

// ConnectedChainID returns the chain id recorded by the last Connect.
func (w *WalletLink) ConnectedChainID() (uint64, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.chainID, len(w.accounts) > 0
}

// ConnectedNetwork returns the name of the blockchain the wallet is on.
// ok is false when the wallet's chain is not a known blockchain.
func (w *WalletLink) ConnectedNetwork(ctx context.Context) (string, bool, error) {
	s, err := w.Session()
	if err != nil {
		return "", false, err
	}
	id, err := w.fetchChainID(ctx, s)
	if err != nil {
		return "", false, err
	}

	chain, ok := w.chains.FindByNetworkID(id)
	if !ok {
		return "", false, nil
	}
	return chain.Name, true, nil
}

// ConnectedTo reports whether the wallet is on the named blockchain.
func (w *WalletLink) ConnectedTo(ctx context.Context, name string) (bool, error) {
	current, ok, err := w.ConnectedNetwork(ctx)
	if err != nil || !ok {
		return false, err
	}
	target, found := w.chains.FindByName(name)
	return found && target.Name == current, nil
}

// SwitchTo asks the wallet to change to the named blockchain. A wallet that
// does not know the chain gets it added, then the switch is retried once.
func (w *WalletLink) SwitchTo(ctx context.Context, name string) (err error) {
	defer func() { w.metrics.RecordWalletOp(err) }()

	chain, err := w.chains.Lookup(name)
	if err != nil {
		return err
	}

	err = w.switchChain(ctx, chain)
	if !session.IsCode(err, session.CodeUnrecognizedChain) {
		return err
	}

	w.logger.Debug("walletlink: %s unknown to wallet, adding it", chain.Name)
	if err = w.addChain(ctx, chain); err != nil {
		return err
	}
	return w.switchChain(ctx, chain)
}

// AddNetwork registers the named blockchain with the wallet.
func (w *WalletLink) AddNetwork(ctx context.Context, name string) (err error) {
	defer func() { w.metrics.RecordWalletOp(err) }()

	chain, err := w.chains.Lookup(name)
	if err != nil {
		return err
	}
	return w.addChain(ctx, chain)
}

func (w *WalletLink) switchChain(ctx context.Context, chain *blockchains.Blockchain) error {
	_, err := w.request(ctx, session.Request{
		Method: session.MethodSwitchChain,
		Params: []any{map[string]string{"chainId": chain.ID}},
	})
	return err
}

func (w *WalletLink) addChain(ctx context.Context, chain *blockchains.Blockchain) error {
	_, err := w.request(ctx, session.Request{
		Method: session.MethodAddChain,
		Params: []any{AddChainParams(chain)},
	})
	return err
}

// AddChainParams builds the wallet_addEthereumChain parameter object for chain.
func AddChainParams(chain *blockchains.Blockchain) map[string]any {
	return map[string]any{
		"chainId":   chain.ID,
		"chainName": chain.FullName,
		"nativeCurrency": map[string]any{
			"name":     chain.Currency.Name,
			"symbol":   chain.Currency.Symbol,
			"decimals": chain.Currency.Decimals,
		},
		"rpcUrls":           []string{chain.RPC},
		"blockExplorerUrls": []string{chain.Explorer},
		"iconUrls":          []string{chain.Logo},
	}
}

// On subscribes cb to account changes. Keep the returned listener to call Off.
func (w *WalletLink) On(event wallet.Event, cb func(account string)) (*session.Listener, error) {
	if event != wallet.EventAccount {
		return nil, unsupportedEvent(event)
	}
	s, err := w.Session()
	if err != nil {
		return nil, err
	}

	return s.On(session.EventAccountsChanged, func(payload any) {
		accounts := accountsFromPayload(payload)
		if len(accounts) == 0 {
			return
		}
		account, err := wallet.NormalizeAddress(accounts[0])
		if err != nil {
			w.logger.Error("walletlink: dropping accountsChanged with invalid account %q", accounts[0])
			return
		}
		cb(account)
	}), nil
}

// Off removes a listener returned by On.
func (w *WalletLink) Off(event wallet.Event, l *session.Listener) error {
	if event != wallet.EventAccount {
		return unsupportedEvent(event)
	}
	s, err := w.Session()
	if err != nil {
		return err
	}
	s.RemoveListener(session.EventAccountsChanged, l)
	return nil
}

// TransactionCount returns the next nonce of address on blockchain.
func (w *WalletLink) TransactionCount(ctx context.Context, blockchain, address string) (uint64, error) {
	if w.requester == nil {
		return 0, wlerr.WithSuggestion(wlerr.ErrUnsupportedOperation, "no chain request client configured")
	}
	return w.requester.TransactionCount(ctx, blockchain, address)
}

// Sign signs a plain or structured message with the primary account.
// Structured messages are only signed when the wallet is on the chain their
// domain names; otherwise Sign fails with WRONG_NETWORK without asking the wallet.
func (w *WalletLink) Sign(ctx context.Context, msg wallet.Message) (sig string, err error) {
	defer func() { w.metrics.RecordWalletOp(err) }()

	switch msg.Kind {
	case wallet.KindStructured:
		return w.signTyped(ctx, msg)
	case wallet.KindPlain:
		return w.signPlain(ctx, msg.Text)
	default:
		return "", wlerr.WithDetails(wlerr.ErrUnsupportedOperation, map[string]string{"message": msg.Kind.String()})
	}
}

func (w *WalletLink) signTyped(ctx context.Context, msg wallet.Message) (string, error) {
	chainID, ok := msg.DomainChainID()
	if !ok {
		return "", wlerr.WithSuggestion(wlerr.ErrInvalidInput, "typed data must declare domain.chainId")
	}

	chain, known := w.chains.FindByNetworkID(chainID)
	if !known {
		return "", wlerr.WithDetails(wlerr.ErrWrongNetwork, map[string]string{"chain_id": hexutil.EncodeUint64(chainID)})
	}
	connected, err := w.ConnectedTo(ctx, chain.Name)
	if err != nil {
		return "", err
	}
	if !connected {
		return "", wlerr.WithDetails(wlerr.ErrWrongNetwork, map[string]string{"expected": chain.Name})
	}

	account, ok := w.Account()
	if !ok {
		return "", wlerr.ErrNotConnected
	}

	payload, err := json.Marshal(msg.TypedData)
	if err != nil {
		return "", wlerr.Wrap(wlerr.ErrInvalidInput, "encoding typed data: %v", err)
	}

	raw, err := w.request(ctx, session.Request{
		Method: session.MethodSignTypedDataV4,
		Params: []any{account, string(payload)},
	})
	if err != nil {
		return "", err
	}
	return session.DecodeString(raw)
}

func (w *WalletLink) signPlain(ctx context.Context, text string) (string, error) {
	s, err := w.Session()
	if err != nil {
		return "", err
	}

	signer, err := session.NewProvider(s).Signer(ctx, 0)
	if err != nil {
		return "", err
	}

	start := time.Now()
	sig, err := signer.SignMessage(ctx, []byte(text))
	w.metrics.RecordSessionRequest(time.Since(start), err)
	return sig, err
}

// SendTransaction submits tx through the wallet, switching networks first if needed.
func (w *WalletLink) SendTransaction(ctx context.Context, tx *transaction.Transaction) (_ *transaction.Transaction, err error) {
	defer func() { w.metrics.RecordWalletOp(err) }()

	p := transaction.Params{Wallet: w, Transaction: tx, Chains: w.chains}
	if w.requester != nil {
		p.Nonces = w.requester
	}
	return transaction.Submit(ctx, p)
}

func (w *WalletLink) request(ctx context.Context, req session.Request) (json.RawMessage, error) {
	s, err := w.Session()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	raw, err := s.Request(ctx, req)
	w.metrics.RecordSessionRequest(time.Since(start), err)
	if err != nil {
		w.logger.Debug("walletlink: %s failed: %v", req.Method, err)
	}
	return raw, err
}

func (w *WalletLink) fetchChainID(ctx context.Context, s session.Session) (uint64, error) {
	start := time.Now()
	id, err := s.ChainID(ctx)
	w.metrics.RecordSessionRequest(time.Since(start), err)
	return id, err
}

func accountsFromPayload(payload any) []string {
	switch v := payload.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, a := range v {
			if s, ok := a.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func unsupportedEvent(event wallet.Event) error {
	return wlerr.WithDetails(wlerr.ErrUnsupportedOperation, map[string]string{"event": string(event)})
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Error(string, ...any) {}
