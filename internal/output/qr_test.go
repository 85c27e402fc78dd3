package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"rsc.io/qr"
)

const pairingURI = "https://bridge.example.com/#/link?id=0f1e2d3c4b5a69788796a5b4c3d2e1f0&secret=abc&server=https%3A%2F%2Fbridge.example.com&v=1"

func TestDefaultQRConfig(t *testing.T) {
	cfg := DefaultQRConfig()

	assert.Equal(t, qr.M, cfg.Level)
	assert.Equal(t, 1, cfg.QuietZone)
	assert.True(t, cfg.HalfBlocks)
	assert.False(t, cfg.Force)
}

func TestCanRenderQR(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, CanRenderQR(&buf), "bytes.Buffer should not be a terminal")
	assert.False(t, CanRenderQR(nil), "nil writer should not be a terminal")
}

func TestRenderQR_NonTerminal(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, RenderQR(&buf, pairingURI, DefaultQRConfig()))
	assert.Empty(t, buf.String(), "no output should be produced for non-terminal")
}

func TestRenderQR_Forced(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultQRConfig()
	cfg.Force = true

	require.NoError(t, RenderQR(&buf, pairingURI, cfg))
	assert.NotEmpty(t, buf.String())
	require.NoError(t, RenderQR(nil, pairingURI, cfg))
}

func TestRenderPairing(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, RenderPairing(&buf, pairingURI, DefaultQRConfig()))
	assert.Equal(t, "Scan with your wallet app or open:\n"+pairingURI+"\n", buf.String())
}
