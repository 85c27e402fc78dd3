package cli

import (
	"github.com/mrz1836/walletlink/internal/blockchains"
	"github.com/mrz1836/walletlink/internal/config"
	"github.com/mrz1836/walletlink/internal/request"
	"github.com/mrz1836/walletlink/internal/session"
	"github.com/mrz1836/walletlink/internal/session/memory"
	"github.com/mrz1836/walletlink/internal/session/relay"
	"github.com/mrz1836/walletlink/internal/wallet"
	"github.com/mrz1836/walletlink/internal/wallet/walletlink"
	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// defaultWallet is the factory name of the WalletLink backend.
const defaultWallet = "coinbase"

// newWalletFactory registers the wallet backends the CLI can drive.
func newWalletFactory(c *CommandContext) *wallet.Factory {
	f := wallet.NewFactory()
	create := func() (wallet.Wallet, error) {
		w, err := newWalletLink(c)
		if err != nil {
			return nil, err
		}
		return w, nil
	}
	f.Register(defaultWallet, create)
	f.Register("walletlink", create)
	return f
}

// newWalletLink builds an adapter. Bridge sessions go through the shared slot so
// every adapter in the process talks to the same paired wallet; development
// sessions are private to the adapter.
func newWalletLink(c *CommandContext) (*walletlink.WalletLink, error) {
	cfg := c.config()
	log := c.logger()

	opts := walletlink.Options{
		Registry:  c.Registry,
		Requester: c.Requester(),
		Logger:    log.Named("walletlink"),
	}

	if c.Dev {
		s, err := newDevSession(cfg.GetDev(), log.Named("dev"))
		if err != nil {
			return nil, err
		}
		opts.Session = s
		return walletlink.New(opts), nil
	}

	if cfg.GetBridgeURL() == "" {
		return nil, wlerr.WithSuggestion(wlerr.ErrConfigInvalid,
			"set wallet.bridge_url or "+config.EnvBridgeURL+" to your bridge, or use --dev")
	}

	appName, appLogo := cfg.GetApp()
	walletlink.SetSessionFactory(func() (session.Session, error) {
		s, err := relay.New(relay.Options{
			AppName:      appName,
			AppLogo:      appLogo,
			BridgeURL:    cfg.GetBridgeURL(),
			RelayURL:     cfg.GetRelayURL(),
			PollInterval: cfg.GetPollInterval(),
			Logger:       log.Named("relay"),
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	})
	return walletlink.New(opts), nil
}

// newDevSession opens the in-process wallet described by the dev settings.
func newDevSession(dev config.DevConfig, log session.Logger) (*memory.Session, error) {
	if dev.Mnemonic == "" {
		return nil, wlerr.WithSuggestion(wlerr.ErrInvalidMnemonic,
			"set "+config.EnvDevMnemonic+" or dev.mnemonic in the config file")
	}

	name := dev.Chain
	if name == "" {
		name = config.DefaultDevChain
	}
	chain, err := blockchains.Lookup(name)
	if err != nil {
		return nil, err
	}

	return memory.New(memory.Options{
		Mnemonic: dev.Mnemonic,
		Accounts: dev.Accounts,
		ChainID:  chain.NetworkID,
		Logger:   log,
	})
}

// newRequester builds the chain request client from the network settings.
func newRequester(cfg ConfigProvider, log *config.Logger) *request.Client {
	limiter := request.DefaultRateLimiter()
	if rate, burst := cfg.GetRateLimit(); rate > 0 && burst > 0 {
		limiter = request.NewRateLimiter(rate, burst)
	}
	return request.New(request.Options{
		RPCOverrides: cfg.GetRPCOverrides(),
		RateLimiter:  limiter,
		Logger:       log.Named("request"),
	})
}
