package memory

import (
	"crypto/ecdsa"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// coinTypeETH is the SLIP-44 coin type for Ethereum.
const coinTypeETH = 60

var (
	// whitespaceRegex matches one or more whitespace characters.
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// numberedListRegex matches numbered list prefixes like "1." "2)" "3:"
	numberedListRegex = regexp.MustCompile(`(?m)^\s*\d+[\.\)\:]\s*`)
)

// NormalizeMnemonic lowercases the phrase, strips list numbering and commas,
// and collapses whitespace.
func NormalizeMnemonic(input string) string {
	input = strings.ToLower(input)
	input = numberedListRegex.ReplaceAllString(input, " ")
	input = strings.ReplaceAll(input, ",", " ")
	input = whitespaceRegex.ReplaceAllString(input, " ")
	return strings.TrimSpace(input)
}

// ValidateMnemonic checks word count and BIP39 checksum.
func ValidateMnemonic(mnemonic string) error {
	normalized := NormalizeMnemonic(mnemonic)

	words := strings.Fields(normalized)
	if len(words) != 12 && len(words) != 24 {
		return wlerr.WithDetails(wlerr.ErrInvalidMnemonic, map[string]string{
			"words": fmt.Sprint(len(words)),
		})
	}

	if _, err := bip39.MnemonicToByteArray(normalized); err != nil {
		return wlerr.ErrInvalidMnemonic
	}
	return nil
}

// GenerateMnemonic returns a new 12-word mnemonic.
func GenerateMnemonic() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// DerivationPath returns the BIP44 path of the account at index.
func DerivationPath(index uint32) string {
	return fmt.Sprintf("m/44'/%d'/0'/0/%d", coinTypeETH, index)
}

// DeriveKeys derives count secp256k1 keys along m/44'/60'/0'/0/i.
func DeriveKeys(mnemonic, passphrase string, count int) ([]*ecdsa.PrivateKey, error) {
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(NormalizeMnemonic(mnemonic), passphrase)

	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	// m/44'/60'/0'/0
	parent := master
	for _, idx := range []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + coinTypeETH,
		bip32.FirstHardenedChild,
		0,
	} {
		if parent, err = parent.NewChildKey(idx); err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
	}

	keys := make([]*ecdsa.PrivateKey, 0, count)
	for i := 0; i < count; i++ {
		child, err := parent.NewChildKey(uint32(i)) //nolint:gosec // count is small and non-negative
		if err != nil {
			return nil, fmt.Errorf("failed to derive account %d: %w", i, err)
		}
		key, err := crypto.ToECDSA(child.Key)
		if err != nil {
			return nil, fmt.Errorf("invalid private key for account %d: %w", i, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}
