package blockchains

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wlerr "github.com/mrz1836/walletlink/pkg/errors"
)

func TestDefaultTable(t *testing.T) {
	t.Parallel()

	all := Default.All()
	require.NotEmpty(t, all)

	for _, b := range all {
		assert.NotEmpty(t, b.Name)
		assert.NotEmpty(t, b.FullName, b.Name)
		assert.NotEmpty(t, b.Currency.Symbol, b.Name)
		assert.Equal(t, 18, b.Currency.Decimals, b.Name)
		assert.Contains(t, b.RPC, "https://", b.Name)
		assert.Contains(t, b.Explorer, "https://", b.Name)
		assert.Equal(t, HexID(b.NetworkID), b.ID, "hex id must match network id for %s", b.Name)
	}
}

func TestFindByNetworkID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		id       uint64
		expected string
		found    bool
	}{
		{1, "ethereum", true},
		{56, "bsc", true},
		{137, "polygon", true},
		{8453, "base", true},
		{42161, "arbitrum", true},
		{999999, "", false},
		{0, "", false},
	}

	for _, tt := range tests {
		b, ok := FindByNetworkID(tt.id)
		assert.Equal(t, tt.found, ok, "id %d", tt.id)
		if tt.found {
			assert.Equal(t, tt.expected, b.Name)
		}
	}
}

func TestFindByID(t *testing.T) {
	t.Parallel()

	b, ok := FindByID("0x89")
	require.True(t, ok)
	assert.Equal(t, "polygon", b.Name)

	b, ok = FindByID("137")
	require.True(t, ok)
	assert.Equal(t, "polygon", b.Name)

	_, ok = FindByID("0xzz")
	assert.False(t, ok)
}

func TestFindByName(t *testing.T) {
	t.Parallel()

	b, ok := FindByName("Ethereum")
	require.True(t, ok)
	assert.Equal(t, "0x1", b.ID)
	assert.Equal(t, "Ether", b.Currency.Name)

	_, ok = FindByName("solana")
	assert.False(t, ok)
}

func TestLookupSuggestion(t *testing.T) {
	t.Parallel()

	_, err := Lookup("etherum")
	require.ErrorIs(t, err, wlerr.ErrUnknownBlockchain)

	var we *wlerr.WalletError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "did you mean 'ethereum'?", we.Suggestion)
	assert.Equal(t, "etherum", we.Details["name"])

	_, err = Lookup("zzzzzzzzzz")
	require.ErrorAs(t, err, &we)
	assert.Empty(t, we.Suggestion)
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("- name: a\n  network_id: 1\n- name: A\n  network_id: 2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")

	_, err = Parse([]byte("- name: missing-id\n"))
	require.Error(t, err)

	_, err = Parse([]byte("not: [valid"))
	require.Error(t, err)

	r, err := Parse([]byte("- name: devnet\n  network_id: 1337\n"))
	require.NoError(t, err)
	b, ok := r.FindByName("devnet")
	require.True(t, ok)
	assert.Equal(t, "0x539", b.ID)
}

func TestExplorerURLs(t *testing.T) {
	t.Parallel()

	b, ok := FindByName("ethereum")
	require.True(t, ok)
	assert.Equal(t, "https://etherscan.io/tx/0xabc", b.TransactionURL("0xabc"))
	assert.Equal(t, "https://etherscan.io/address/0xdef", b.AddressURL("0xdef"))
}

func TestSupportedEVM(t *testing.T) {
	t.Parallel()

	names := SupportedEVM()
	assert.Equal(t, "ethereum", names[0])
	assert.Contains(t, names, "polygon")
	assert.Len(t, names, len(Default.All()))
	assert.IsNonDecreasing(t, Default.Names())
}

func TestParseChainID(t *testing.T) {
	t.Parallel()

	n, err := ParseChainID("0xa4b1")
	require.NoError(t, err)
	assert.Equal(t, uint64(42161), n)

	n, err = ParseChainID(" 10 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), n)

	_, err = ParseChainID("")
	require.Error(t, err)
}
