package wallet

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Kind tells the variants of Message apart.
type Kind int

// Message kinds.
const (
	KindPlain Kind = iota + 1
	KindStructured
)

func (k Kind) String() string {
	switch k {
	case KindPlain:
		return "plain"
	case KindStructured:
		return "structured"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// Message is what Sign accepts: either plain text or EIP-712 typed data.
type Message struct {
	Kind      Kind
	Text      string
	TypedData *apitypes.TypedData
}

// PlainMessage returns a message signed with personal_sign.
func PlainMessage(text string) Message {
	return Message{Kind: KindPlain, Text: text}
}

// StructuredMessage returns a message signed with eth_signTypedData_v4.
func StructuredMessage(td apitypes.TypedData) Message {
	return Message{Kind: KindStructured, TypedData: &td}
}

// ParseStructuredMessage decodes an EIP-712 JSON document.
func ParseStructuredMessage(data []byte) (Message, error) {
	var td apitypes.TypedData
	if err := json.Unmarshal(data, &td); err != nil {
		return Message{}, wlerr.Wrap(wlerr.ErrInvalidInput, "parsing typed data: %v", err)
	}
	if td.PrimaryType == "" || len(td.Types) == 0 {
		return Message{}, wlerr.WithSuggestion(wlerr.ErrInvalidInput, "typed data needs types and primaryType")
	}
	return StructuredMessage(td), nil
}

// DomainChainID returns the chain id declared in a structured message's domain.
func (m Message) DomainChainID() (uint64, bool) {
	if m.Kind != KindStructured || m.TypedData == nil || m.TypedData.Domain.ChainId == nil {
		return 0, false
	}
	b := (*big.Int)(m.TypedData.Domain.ChainId)
	if b.Sign() < 0 || !b.IsUint64() {
		return 0, false
	}
	return b.Uint64(), true
}
