package wallet

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// IsValidAddress checks the 0x-prefixed 40 hex character format. The checksum is not verified.
func IsValidAddress(address string) bool {
	if len(address) != 42 || (!strings.HasPrefix(address, "0x") && !strings.HasPrefix(address, "0X")) {
		return false
	}
	for _, c := range address[2:] {
		if !isHexChar(c) {
			return false
		}
	}
	return true
}

// ChecksumAddress converts an address to EIP-55 mixed case.
// Invalid input is returned unchanged.
func ChecksumAddress(address string) string {
	if !IsValidAddress(address) {
		return address
	}

	addr := strings.ToLower(address[2:])

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(addr))
	hash := hex.EncodeToString(hasher.Sum(nil))

	result := make([]byte, 42)
	result[0] = '0'
	result[1] = 'x'

	for i := 0; i < 40; i++ {
		c := addr[i]
		if hash[i] >= '8' && c >= 'a' && c <= 'f' {
			result[i+2] = c - 32 //nolint:gosec // i bounded by loop [0,40)
		} else {
			result[i+2] = c //nolint:gosec // i bounded by loop [0,40)
		}
	}

	return string(result)
}

// ValidateChecksum accepts all-lower, all-upper, or correctly checksummed addresses.
func ValidateChecksum(address string) error {
	if !IsValidAddress(address) {
		return wlerr.WithDetails(wlerr.ErrInvalidAddress, map[string]string{"address": address})
	}

	part := address[2:]
	if part == strings.ToLower(part) || part == strings.ToUpper(part) {
		return nil
	}

	if expected := ChecksumAddress(address); address != expected {
		return wlerr.WithDetails(wlerr.ErrInvalidAddress, map[string]string{
			"expected": expected,
			"actual":   address,
		})
	}
	return nil
}

// NormalizeAddress validates an address and returns its checksummed form.
func NormalizeAddress(address string) (string, error) {
	if !IsValidAddress(address) {
		return "", wlerr.WithDetails(wlerr.ErrInvalidAddress, map[string]string{"address": address})
	}
	return ChecksumAddress(address), nil
}

func isHexChar(c rune) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
