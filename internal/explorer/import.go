package explorer

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// HeaderStore receives imported headers
type HeaderStore interface {
	PutHeader(height uint32, raw []byte) error
}

// Import copies count headers starting at from into store and returns how many
// were written. Headers are stored as fetched; validation happens when they are proven.
func Import(ctx context.Context, fetcher Fetcher, store HeaderStore, from, count uint32, prefetch int, logger zerolog.Logger) (uint32, error) {
	src := NewSource(ctx, fetcher, from, count, prefetch)
	defer src.Close()

	var imported uint32
	for imported < count {
		raw, err := src.ReadHeader(ctx)
		if err != nil {
			return imported, err
		}

		height := from + imported
		if err := store.PutHeader(height, raw); err != nil {
			return imported, fmt.Errorf("failed to store header %d: %w", height, err)
		}
		imported++

		if imported%1000 == 0 {
			logger.Info().Uint32("height", height).Uint32("imported", imported).Msg("import progress")
		}
	}

	logger.Info().Uint32("from", from).Uint32("count", imported).Msg("import complete")

	return imported, nil
}
