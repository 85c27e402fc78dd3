// Package relay implements a session that reaches the user's wallet through a
// self-hosted bridge server.
//
// The bridge speaks plain JSON-RPC 2.0: every wallet request is POSTed to
// <bridge>/rpc with the session id in the X-WalletLink-Session header, and the
// bridge answers with the wallet's result or EIP-1193 error. This is not the
// encrypted protocol of the public walletlink.org servers, so there is no
// default bridge; BridgeURL must name one.
//
// The session secret is generated here and handed to the wallet only through
// the pairing link. It is never sent to the bridge.
package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"

	"github.com/mrz1836/walletlink/internal/session"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Defaults for bridge sessions.
const (
	DefaultPollInterval = 2 * time.Second
	protocolVersion     = "1"
	secretBytes         = 32
)

// Options configures a bridge session.
type Options struct {
	// BridgeURL is the self-hosted bridge. Required.
	BridgeURL string
	// RelayURL is the base of the pairing link (default BridgeURL).
	RelayURL     string
	PollInterval time.Duration
	HTTPClient   *http.Client
	Logger       session.Logger

	// AppName and AppLogo are shown by the wallet app on the pairing screen.
	AppName string
	AppLogo string
}

var (
	_ session.Session       = (*Session)(nil)
	_ session.RelayProvider = (*Session)(nil)
)

// Session is a bridge-backed wallet session.
type Session struct {
	id     string
	secret string
	qrURL  string
	opts   Options
	client *client
	logger session.Logger

	events          session.Emitter
	connectDisabled atomic.Bool
	closed          atomic.Bool

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	accounts []string
	chainID  uint64
	known    bool
}

// New creates a bridge session with a fresh session id and secret.
func New(opts Options) (*Session, error) {
	if opts.BridgeURL == "" {
		return nil, wlerr.WithSuggestion(wlerr.ErrInvalidInput,
			"set the URL of your WalletLink bridge (wallet.bridge_url or WALLETLINK_BRIDGE_URL)")
	}
	if opts.RelayURL == "" {
		opts.RelayURL = opts.BridgeURL
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = session.NopLogger()
	}

	if _, err := url.ParseRequestURI(opts.BridgeURL); err != nil {
		return nil, wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"bridge_url": opts.BridgeURL})
	}

	secret := make([]byte, secretBytes)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}

	s := &Session{
		id:     strings.ReplaceAll(uuid.NewString(), "-", ""),
		secret: hex.EncodeToString(secret),
		opts:   opts,
		logger: opts.Logger,
	}
	s.client = newClient(strings.TrimSuffix(opts.BridgeURL, "/")+"/rpc", s.id, opts.HTTPClient)
	s.qrURL = withAppMetadata(PairingURI(opts.RelayURL, s.id, s.secret, opts.BridgeURL), opts.AppName, opts.AppLogo)

	return s, nil
}

// PairingURI builds the link the wallet app scans to join a session.
func PairingURI(relayURL, id, secret, bridgeURL string) string {
	return fmt.Sprintf("%s/#/link?id=%s&secret=%s&server=%s&v=%s",
		strings.TrimSuffix(relayURL, "/"), id, secret, url.QueryEscape(bridgeURL), protocolVersion)
}

// withAppMetadata appends the optional app name and logo to a pairing URI.
func withAppMetadata(uri, name, logo string) string {
	if name != "" {
		uri += "&name=" + url.QueryEscape(name)
	}
	if logo != "" {
		uri += "&logo=" + url.QueryEscape(logo)
	}
	return uri
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// QRURL returns the pairing URI.
func (s *Session) QRURL() string { return s.qrURL }

// RelayProvider returns the session itself; it controls its own connect gate.
func (s *Session) RelayProvider(_ context.Context) (session.RelayProvider, error) {
	if s.closed.Load() {
		return nil, wlerr.ErrSessionClosed
	}
	return s, nil
}

// SetConnectDisabled enables or disables account requests.
func (s *Session) SetConnectDisabled(disabled bool) {
	s.connectDisabled.Store(disabled)
}

// ConnectDisabled reports whether account requests are refused.
func (s *Session) ConnectDisabled() bool {
	return s.connectDisabled.Load()
}

// Enable requests account access from the paired wallet.
func (s *Session) Enable(ctx context.Context) ([]string, error) {
	if s.closed.Load() {
		return nil, wlerr.ErrSessionClosed
	}
	if s.connectDisabled.Load() {
		return nil, wlerr.ErrConnectDisabled
	}

	raw, err := s.client.call(ctx, session.MethodRequestAccounts)
	if err != nil {
		return nil, err
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("parsing accounts: %w", err)
	}

	s.mu.Lock()
	s.accounts = accounts
	s.mu.Unlock()

	s.logger.Debug("relay session %s enabled with %d account(s)", s.id, len(accounts))
	return accounts, nil
}

// ChainID returns the chain the wallet is on.
func (s *Session) ChainID(ctx context.Context) (uint64, error) {
	if s.closed.Load() {
		return 0, wlerr.ErrSessionClosed
	}

	raw, err := s.client.call(ctx, session.MethodChainID)
	if err != nil {
		return 0, err
	}
	return decodeChainID(raw)
}

// Request forwards a wallet request to the bridge.
func (s *Session) Request(ctx context.Context, req session.Request) (json.RawMessage, error) {
	if s.closed.Load() {
		return nil, wlerr.ErrSessionClosed
	}
	return s.client.call(ctx, req.Method, req.Params...)
}

// On registers an event handler. The first registration starts the watcher.
func (s *Session) On(event string, h session.Handler) *session.Listener {
	l := s.events.On(event, h)
	s.startWatcher()
	return l
}

// RemoveListener unregisters an event handler.
func (s *Session) RemoveListener(event string, l *session.Listener) {
	s.events.Remove(event, l)
}

// Close stops the watcher and refuses further requests.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	s.events.Emit(session.EventDisconnect, nil)
	s.events.Clear()
	s.logger.Debug("relay session %s closed", s.id)
	return nil
}

func (s *Session) startWatcher() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil || s.closed.Load() {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.watch(ctx)
}

func (s *Session) watch(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx)
		}
	}
}

// poll compares the wallet state with the last known state and emits changes.
func (s *Session) poll(ctx context.Context) {
	raw, err := s.client.call(ctx, session.MethodAccounts)
	if err != nil {
		s.logger.Debug("relay session %s: polling accounts: %v", s.id, err)
		return
	}
	var accounts []string
	if err = json.Unmarshal(raw, &accounts); err != nil {
		s.logger.Debug("relay session %s: parsing accounts: %v", s.id, err)
		return
	}

	raw, err = s.client.call(ctx, session.MethodChainID)
	if err != nil {
		s.logger.Debug("relay session %s: polling chain: %v", s.id, err)
		return
	}
	chainID, err := decodeChainID(raw)
	if err != nil {
		s.logger.Debug("relay session %s: %v", s.id, err)
		return
	}

	s.mu.Lock()
	first := !s.known
	accountsChanged := !first && !slices.Equal(s.accounts, accounts)
	chainChanged := !first && s.chainID != chainID
	s.accounts = accounts
	s.chainID = chainID
	s.known = true
	s.mu.Unlock()

	if ctx.Err() != nil {
		return
	}
	if accountsChanged {
		s.events.Emit(session.EventAccountsChanged, accounts)
	}
	if chainChanged {
		s.events.Emit(session.EventChainChanged, hexutil.EncodeUint64(chainID))
	}
}

func decodeChainID(raw json.RawMessage) (uint64, error) {
	var hexVal string
	if err := json.Unmarshal(raw, &hexVal); err != nil {
		return 0, fmt.Errorf("parsing chain ID: %w", err)
	}
	id, err := hexutil.DecodeUint64(hexVal)
	if err != nil {
		return 0, fmt.Errorf("parsing chain ID %q: %w", hexVal, err)
	}
	return id, nil
}
