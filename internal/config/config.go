// Package config provides configuration management for walletlink.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Config represents the application configuration.
type Config struct {
	Version  int            `yaml:"version"`
	Home     string         `yaml:"home"`
	Wallet   WalletConfig   `yaml:"wallet"`
	Networks NetworksConfig `yaml:"networks"`
	Dev      DevConfig      `yaml:"dev"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// WalletConfig defines how sessions with the wallet app are opened.
type WalletConfig struct {
	AppName      string        `yaml:"app_name"`
	AppLogo      string        `yaml:"app_logo"`
	BridgeURL    string        `yaml:"bridge_url"`
	RelayURL     string        `yaml:"relay_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NetworksConfig defines chain RPC settings.
type NetworksConfig struct {
	// RPC maps blockchain names to RPC URLs replacing the built-in ones.
	RPC map[string]string `yaml:"rpc,omitempty"`

	// RateLimit is requests per second per RPC endpoint.
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
}

// DevConfig configures the in-process development wallet.
type DevConfig struct {
	Mnemonic string `yaml:"mnemonic,omitempty"`
	Chain    string `yaml:"chain"`
	Accounts int    `yaml:"accounts"`
}

// OutputConfig defines output formatting settings.
type OutputConfig struct {
	DefaultFormat string `yaml:"default_format"`
	Color         string `yaml:"color"`
	Verbose       bool   `yaml:"verbose"`
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load reads configuration from the specified file.
func Load(path string) (*Config, error) {
	// #nosec G304 -- config file path is from validated user input
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wlerr.WithDetails(wlerr.ErrConfigNotFound, map[string]string{"path": path})
		}
		return nil, err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, wlerr.Wrap(wlerr.ErrConfigInvalid, "%s: %v", path, err)
	}

	return cfg, nil
}

// Save writes configuration to the specified file.
func Save(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return writeFileAtomic(path, data, 0o600)
}

// Path returns the default config file path.
func Path(home string) string {
	return filepath.Join(home, "config.yaml")
}

// GetHome returns the walletlink home directory path.
func (c *Config) GetHome() string {
	return c.Home
}

// GetApp returns the name and logo the wallet app shows when pairing.
func (c *Config) GetApp() (name, logo string) {
	return c.Wallet.AppName, c.Wallet.AppLogo
}

// GetBridgeURL returns the WalletLink bridge server URL.
func (c *Config) GetBridgeURL() string {
	return c.Wallet.BridgeURL
}

// GetRelayURL returns the URL the pairing link points at.
func (c *Config) GetRelayURL() string {
	return c.Wallet.RelayURL
}

// GetPollInterval returns how often the bridge is polled for wallet changes.
func (c *Config) GetPollInterval() time.Duration {
	return c.Wallet.PollInterval
}

// GetRPCOverrides returns the configured RPC URLs by blockchain name.
func (c *Config) GetRPCOverrides() map[string]string {
	return c.Networks.RPC
}

// GetRateLimit returns the per-endpoint request rate and burst.
func (c *Config) GetRateLimit() (float64, int) {
	return c.Networks.RateLimit, c.Networks.Burst
}

// GetDev returns the development wallet settings.
func (c *Config) GetDev() DevConfig {
	return c.Dev
}

// GetLoggingLevel returns the configured logging level.
func (c *Config) GetLoggingLevel() string {
	return c.Logging.Level
}

// GetLoggingFile returns the configured log file path.
func (c *Config) GetLoggingFile() string {
	return c.Logging.File
}

// GetOutputFormat returns the default output format.
func (c *Config) GetOutputFormat() string {
	return c.Output.DefaultFormat
}

// IsVerbose returns true if verbose output is enabled.
func (c *Config) IsVerbose() bool {
	return c.Output.Verbose
}

// DefaultHome returns the default walletlink home directory.
func DefaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletlink"
	}
	return filepath.Join(home, ".walletlink")
}
