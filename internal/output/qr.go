package output

import (
	"fmt"
	"io"

	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// QRConfig configures QR code rendering.
type QRConfig struct {
	// Level is the error correction level.
	Level qr.Level
	// QuietZone is the number of empty blocks around the QR code.
	QuietZone int
	// HalfBlocks uses half-height blocks for a more compact display.
	HalfBlocks bool
	// Force renders even when the writer is not a terminal.
	Force bool
}

// DefaultQRConfig returns defaults suited to pairing links scanned from a terminal.
func DefaultQRConfig() QRConfig {
	return QRConfig{
		Level:      qr.M,
		QuietZone:  1,
		HalfBlocks: true,
	}
}

// CanRenderQR checks if the output writer is a terminal suitable for QR rendering.
func CanRenderQR(w io.Writer) bool {
	return isTerminal(w)
}

// RenderQR renders data as a QR code. Nothing is written to non-terminals unless cfg.Force is set.
func RenderQR(w io.Writer, data string, cfg QRConfig) error {
	if w == nil || (!cfg.Force && !CanRenderQR(w)) {
		return nil
	}

	qrterminal.GenerateWithConfig(data, qrterminal.Config{
		Level:          cfg.Level,
		Writer:         w,
		QuietZone:      cfg.QuietZone,
		HalfBlocks:     cfg.HalfBlocks,
		BlackChar:      qrterminal.BLACK_BLACK,
		WhiteChar:      qrterminal.WHITE_WHITE,
		WhiteBlackChar: qrterminal.WHITE_BLACK,
		BlackWhiteChar: qrterminal.BLACK_WHITE,
	})
	return nil
}

// RenderPairing shows a pairing URI: a QR code on terminals, then the URI itself.
func RenderPairing(w io.Writer, uri string, cfg QRConfig) error {
	if err := RenderQR(w, uri, cfg); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Scan with your wallet app or open:\n%s\n", uri)
	return err
}
