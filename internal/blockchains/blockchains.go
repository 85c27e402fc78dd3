// Package blockchains provides metadata for the EVM networks a wallet can be
// connected to: chain ids, display names, native currencies, RPC endpoints,
// explorers and logos.
package blockchains

import (
	_ "embed"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// MaxTypoDistance is the maximum Levenshtein distance for a name suggestion.
const MaxTypoDistance = 2

//go:embed blockchains.yaml
var table []byte

// Currency describes the native currency of a blockchain.
type Currency struct {
	Name     string `yaml:"name" json:"name"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Decimals int    `yaml:"decimals" json:"decimals"`
}

// Blockchain holds the metadata of a single network.
type Blockchain struct {
	Name      string   `yaml:"name" json:"name"`
	ID        string   `yaml:"id" json:"id"` // hex chain id, e.g. "0x1"
	NetworkID uint64   `yaml:"network_id" json:"network_id"`
	FullName  string   `yaml:"full_name" json:"full_name"`
	Currency  Currency `yaml:"currency" json:"currency"`
	RPC       string   `yaml:"rpc" json:"rpc"`
	Explorer  string   `yaml:"explorer" json:"explorer"`
	Logo      string   `yaml:"logo" json:"logo"`
}

// TransactionURL returns the explorer link for a transaction hash.
func (b *Blockchain) TransactionURL(hash string) string {
	return strings.TrimSuffix(b.Explorer, "/") + "/tx/" + hash
}

// AddressURL returns the explorer link for an address.
func (b *Blockchain) AddressURL(address string) string {
	return strings.TrimSuffix(b.Explorer, "/") + "/address/" + address
}

// Registry indexes blockchain metadata by name and network id.
type Registry struct {
	ordered   []*Blockchain
	byName    map[string]*Blockchain
	byNetwork map[uint64]*Blockchain
}

// Parse builds a registry from a YAML table.
func Parse(data []byte) (*Registry, error) {
	var list []*Blockchain
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing blockchain table: %w", err)
	}

	r := &Registry{
		ordered:   make([]*Blockchain, 0, len(list)),
		byName:    make(map[string]*Blockchain, len(list)),
		byNetwork: make(map[uint64]*Blockchain, len(list)),
	}

	for _, b := range list {
		if b.Name == "" || b.NetworkID == 0 {
			return nil, fmt.Errorf("blockchain entry missing name or network id: %+v", b)
		}
		if b.ID == "" {
			b.ID = HexID(b.NetworkID)
		}
		key := strings.ToLower(b.Name)
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("duplicate blockchain name: %s", b.Name)
		}
		r.byName[key] = b
		r.byNetwork[b.NetworkID] = b
		r.ordered = append(r.ordered, b)
	}

	return r, nil
}

// FindByNetworkID returns the blockchain with the given numeric chain id.
func (r *Registry) FindByNetworkID(id uint64) (*Blockchain, bool) {
	b, ok := r.byNetwork[id]
	return b, ok
}

// FindByID returns the blockchain with the given hex (or decimal) chain id.
func (r *Registry) FindByID(id string) (*Blockchain, bool) {
	n, err := ParseChainID(id)
	if err != nil {
		return nil, false
	}
	return r.FindByNetworkID(n)
}

// FindByName returns the blockchain with the given name, ignoring case.
func (r *Registry) FindByName(name string) (*Blockchain, bool) {
	b, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return b, ok
}

// Lookup is FindByName returning ErrUnknownBlockchain with a suggestion
// when the name is close to a known one.
func (r *Registry) Lookup(name string) (*Blockchain, error) {
	if b, ok := r.FindByName(name); ok {
		return b, nil
	}

	err := wlerr.WithDetails(wlerr.ErrUnknownBlockchain, map[string]string{"name": name})
	if s := r.Suggest(name); s != "" {
		return nil, wlerr.WithSuggestion(err, fmt.Sprintf("did you mean '%s'?", s))
	}
	return nil, err
}

// Suggest returns the closest known blockchain name, or "" if none is close enough.
func (r *Registry) Suggest(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	minDist := math.MaxInt
	var suggestion string

	for _, b := range r.ordered {
		dist := levenshtein.ComputeDistance(name, b.Name)
		if dist < minDist {
			minDist = dist
			suggestion = b.Name
		}
	}

	if minDist <= MaxTypoDistance {
		return suggestion
	}
	return ""
}

// All returns every blockchain in table order.
func (r *Registry) All() []*Blockchain {
	out := make([]*Blockchain, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Names returns all blockchain names sorted alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ordered))
	for _, b := range r.ordered {
		names = append(names, b.Name)
	}
	sort.Strings(names)
	return names
}

// Default is the registry built from the embedded table.
//
//nolint:gochecknoglobals // Immutable lookup table
var Default = mustParse(table)

func mustParse(data []byte) *Registry {
	r, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return r
}

// FindByNetworkID looks up a chain id in the default registry.
func FindByNetworkID(id uint64) (*Blockchain, bool) {
	return Default.FindByNetworkID(id)
}

// FindByID looks up a hex chain id in the default registry.
func FindByID(id string) (*Blockchain, bool) {
	return Default.FindByID(id)
}

// FindByName looks up a name in the default registry.
func FindByName(name string) (*Blockchain, bool) {
	return Default.FindByName(name)
}

// Lookup looks up a name in the default registry, with suggestions on failure.
func Lookup(name string) (*Blockchain, error) {
	return Default.Lookup(name)
}

// SupportedEVM returns the names of all EVM blockchains in table order.
func SupportedEVM() []string {
	names := make([]string, 0, len(Default.ordered))
	for _, b := range Default.ordered {
		names = append(names, b.Name)
	}
	return names
}

// HexID formats a numeric chain id the way wallets expect it ("0x" + lowercase hex).
func HexID(id uint64) string {
	return "0x" + strconv.FormatUint(id, 16)
}

// ParseChainID parses a chain id given as "0x"-prefixed hex or as decimal.
func ParseChainID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
