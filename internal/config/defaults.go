package config

import "time"

// DefaultPollInterval is how often the bridge is polled for wallet changes.
// There is no default bridge; wallet.bridge_url names a self-hosted one.
const DefaultPollInterval = 2 * time.Second

// DefaultDevChain is the chain the development wallet starts on.
const DefaultDevChain = "ethereum"

// Defaults returns the default configuration.
func Defaults() *Config {
	return &Config{
		Version: 1,
		Home:    "~/.walletlink",
		Wallet: WalletConfig{
			AppName:      "walletlink",
			PollInterval: DefaultPollInterval,
		},
		Networks: NetworksConfig{
			RPC:       map[string]string{},
			RateLimit: 5,
			Burst:     10,
		},
		Dev: DevConfig{
			Chain:    DefaultDevChain,
			Accounts: 1,
		},
		Output: OutputConfig{
			DefaultFormat: "auto",
			Color:         "auto",
			Verbose:       false,
		},
		Logging: LoggingConfig{
			Level: "error",
		},
	}
}
