package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Environment variable names.
const (
	EnvHome         = "WALLETLINK_HOME"
	EnvBridgeURL    = "WALLETLINK_BRIDGE_URL"
	EnvRelayURL     = "WALLETLINK_RELAY_URL"
	EnvPollInterval = "WALLETLINK_POLL_INTERVAL"
	EnvDevMnemonic  = "WALLETLINK_DEV_MNEMONIC"
	EnvDevChain     = "WALLETLINK_DEV_CHAIN"
	EnvOutputFormat = "WALLETLINK_OUTPUT_FORMAT"
	EnvVerbose      = "WALLETLINK_VERBOSE"
	EnvLogLevel     = "WALLETLINK_LOG_LEVEL"
	EnvNoColor      = "NO_COLOR"

	// EnvRPCPrefix is followed by an upper-case blockchain name, e.g. WALLETLINK_RPC_POLYGON.
	EnvRPCPrefix = "WALLETLINK_RPC_"
)

// ApplyEnvironment applies environment variable overrides to the configuration.
//
//nolint:gocognit,gocyclo // Environment variable overrides require sequential checks
func ApplyEnvironment(cfg *Config) {
	if v := os.Getenv(EnvHome); v != "" {
		cfg.Home = v
	}

	if v := os.Getenv(EnvBridgeURL); v != "" {
		cfg.Wallet.BridgeURL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvRelayURL); v != "" {
		cfg.Wallet.RelayURL = SanitizeURL(v)
	}

	if v := os.Getenv(EnvPollInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Wallet.PollInterval = d
		}
	}

	if v := os.Getenv(EnvDevMnemonic); v != "" {
		cfg.Dev.Mnemonic = strings.TrimSpace(v)
	}

	if v := os.Getenv(EnvDevChain); v != "" {
		cfg.Dev.Chain = strings.ToLower(strings.TrimSpace(v))
	}

	if v := os.Getenv(EnvOutputFormat); v != "" {
		cfg.Output.DefaultFormat = strings.ToLower(v)
	}

	if v := os.Getenv(EnvVerbose); v != "" {
		cfg.Output.Verbose = parseBool(v)
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}

	// NO_COLOR disables colored output
	if _, ok := os.LookupEnv(EnvNoColor); ok {
		cfg.Output.Color = "never"
	}

	applyRPCEnvironment(cfg, os.Environ())
}

// applyRPCEnvironment reads WALLETLINK_RPC_<NAME>=url entries.
func applyRPCEnvironment(cfg *Config, environ []string) {
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvRPCPrefix) || value == "" {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(key, EnvRPCPrefix))
		if name == "" {
			continue
		}
		if cfg.Networks.RPC == nil {
			cfg.Networks.RPC = make(map[string]string)
		}
		cfg.Networks.RPC[name] = SanitizeURL(value)
	}
}

// parseBool parses a boolean string value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "1" || s == "true" || s == "yes" || s == "on" {
		return true
	}
	b, _ := strconv.ParseBool(s)
	return b
}

// SanitizeURL strips whitespace and control characters picked up when URLs
// are pasted. Values that do not parse as absolute URLs are returned empty.
func SanitizeURL(raw string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsControl(r) {
			return -1
		}
		return r
	}, raw)

	u, err := url.ParseRequestURI(cleaned)
	if err != nil || u.Host == "" {
		return ""
	}
	return cleaned
}
