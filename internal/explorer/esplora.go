package explorer

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// DefaultEsploraURL is the public Blockstream API
const DefaultEsploraURL = "https://blockstream.info/api"

// Esplora resolves a height to a block id, then downloads that block's header
type Esplora struct {
	url    string
	client *http.Client
	logger zerolog.Logger
}

// NewEsplora returns an Esplora client rooted at url. A nil client uses http.DefaultClient.
func NewEsplora(url string, client *http.Client, logger zerolog.Logger) *Esplora {
	if client == nil {
		client = http.DefaultClient
	}
	return &Esplora{
		url:    strings.TrimRight(url, "/"),
		client: client,
		logger: logger.With().Str("component", "esplora").Logger(),
	}
}

// HeaderAt fetches the raw 80-byte header at height
func (e *Esplora) HeaderAt(ctx context.Context, height uint32) ([]byte, error) {
	id, err := get(ctx, e.client, fmt.Sprintf("%s/block-height/%d", e.url, height), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve height %d: %w", height, err)
	}

	blockID := strings.TrimSpace(string(id))
	body, err := get(ctx, e.client, fmt.Sprintf("%s/block/%s/header", e.url, blockID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch header %s: %w", blockID, err)
	}

	raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode header %s: %w", blockID, err)
	}

	e.logger.Debug().Uint32("height", height).Str("block", blockID).Msg("fetched header")

	return raw, nil
}
