package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

// contextOf returns the command context, or Background for commands run outside Execute.
func contextOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// contextWithTimeout bounds a wallet or chain call by d. The result still ends
// on interrupt because it derives from the command context. A d of zero or
// less sets no deadline.
func contextWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(contextOf(cmd))
	}
	return context.WithTimeout(contextOf(cmd), d)
}
