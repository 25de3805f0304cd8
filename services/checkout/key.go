package checkout

import (
	"context"
	"strings"

	"github.com/folioshop/storefront/libs/logging"

	errorutils "github.com/folioshop/storefront/libs/errors"
)

type keySource interface {
	ResolveKey(ctx context.Context) (string, error)
}

// KeyResolver yields the public gateway key, preferring the one built into the client.
type KeyResolver struct {
	embedded string
	src      keySource
}

func NewKeyResolver(embedded string, src keySource) *KeyResolver {
	return &KeyResolver{embedded: strings.TrimSpace(embedded), src: src}
}

func (r *KeyResolver) Resolve(ctx context.Context) (string, error) {
	if r.embedded != "" {
		return r.embedded, nil
	}

	if r.src == nil {
		return "", errorutils.NewFault(errorutils.ErrNotConfigured, msgKeyNotConfigured, nil)
	}

	key, err := r.src.ResolveKey(ctx)
	if err != nil {
		lg := logging.Logger(ctx, "checkout").With().Str("func", "ResolveKey").Logger()
		lg.Error().Err(err).Msg("failed to fetch gateway key")

		return "", errorutils.NewFault(errorutils.ErrNotConfigured, msgKeyNotConfigured, err)
	}

	if key = strings.TrimSpace(key); key == "" {
		return "", errorutils.NewFault(errorutils.ErrNotConfigured, msgKeyNotConfigured, nil)
	}

	return key, nil
}
