package wallet

import (
	"sort"
	"strings"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

// Creator builds a wallet backend.
type Creator func() (Wallet, error)

// Factory creates wallet backends by name.
type Factory struct {
	creators map[string]Creator
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{creators: make(map[string]Creator)}
}

// Register adds a creator for name.
func (f *Factory) Register(name string, creator Creator) {
	f.creators[name] = creator
}

// New creates the backend registered under name.
func (f *Factory) New(name string) (Wallet, error) {
	creator, ok := f.creators[name]
	if !ok {
		return nil, wlerr.WithSuggestion(
			wlerr.WithDetails(wlerr.ErrNotFound, map[string]string{"wallet": name}),
			"available wallets: "+strings.Join(f.Names(), ", "),
		)
	}
	return creator()
}

// Names returns the registered names, sorted.
func (f *Factory) Names() []string {
	names := make([]string, 0, len(f.creators))
	for name := range f.creators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
