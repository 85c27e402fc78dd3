package wallet

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// RecoverSigner returns the checksummed address that produced a personal_sign signature over message.
func RecoverSigner(message []byte, signature string) (string, error) {
	return recoverFromHash(accounts.TextHash(message), signature)
}

// RecoverTypedDataSigner returns the checksummed address that signed td with eth_signTypedData_v4.
func RecoverTypedDataSigner(td apitypes.TypedData, signature string) (string, error) {
	hash, _, err := apitypes.TypedDataAndHash(td)
	if err != nil {
		return "", wlerr.Wrap(wlerr.ErrInvalidInput, "hashing typed data: %v", err)
	}
	return recoverFromHash(hash, signature)
}

func recoverFromHash(hash []byte, signature string) (string, error) {
	sig, err := hexutil.Decode(signature)
	if err != nil || len(sig) != crypto.SignatureLength {
		return "", wlerr.WithDetails(wlerr.ErrInvalidInput, map[string]string{"signature": signature})
	}

	// Wallets return V as 27/28.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return "", wlerr.Wrap(wlerr.ErrInvalidInput, "recovering signer: %v", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}
