package closers

import (
	"context"
	"io"

	"github.com/folioshop/storefront/libs/logging"
)

// Log calls Close on the specified closer, logging on error
func Log(ctx context.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.Logger(ctx, "closers.Log").Error().Err(err).Msg("error attempting to close")
	}
}
