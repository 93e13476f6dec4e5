package explorer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	sdkhash "github.com/bsv-blockchain/go-sdk/chainhash"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/rs/zerolog"
	"github.com/yourusername/headerproof/pkg/types"
)

// BlockHeader is a header as returned by a Block Headers Service
type BlockHeader struct {
	Height        uint32       `json:"height"`
	Hash          sdkhash.Hash `json:"hash"`
	Version       uint32       `json:"version"`
	MerkleRoot    sdkhash.Hash `json:"merkleRoot"`
	Timestamp     uint32       `json:"creationTimestamp"`
	Bits          uint32       `json:"difficultyTarget"`
	Nonce         uint32       `json:"nonce"`
	PreviousBlock sdkhash.Hash `json:"prevBlockHash"`
}

// Serialize rebuilds the 80-byte header
func (h *BlockHeader) Serialize() []byte {
	fields := types.HeaderFields{
		Version:    h.Version,
		PrevBlock:  chainhash.Hash(h.PreviousBlock),
		MerkleRoot: chainhash.Hash(h.MerkleRoot),
		Timestamp:  h.Timestamp,
		Bits:       h.Bits,
		Nonce:      h.Nonce,
	}
	return fields.Serialize()
}

// HeadersService talks to a Block Headers Service with a bearer token
type HeadersService struct {
	url    string
	apiKey string
	client *http.Client
	logger zerolog.Logger
}

// NewHeadersService returns a Block Headers Service client that sends apiKey as a bearer token
func NewHeadersService(url, apiKey string, client *http.Client, logger zerolog.Logger) *HeadersService {
	if client == nil {
		client = http.DefaultClient
	}
	return &HeadersService{
		url:    strings.TrimRight(url, "/"),
		apiKey: apiKey,
		client: client,
		logger: logger.With().Str("component", "headers-service").Logger(),
	}
}

// BlockByHeight returns the first header the service reports at height
func (s *HeadersService) BlockByHeight(ctx context.Context, height uint32) (*BlockHeader, error) {
	url := fmt.Sprintf("%s/api/v1/chain/header/byHeight?height=%d", s.url, height)
	body, err := get(ctx, s.client, url, http.Header{"Authorization": {"Bearer " + s.apiKey}})
	if err != nil {
		return nil, err
	}

	var headers []BlockHeader
	if err := json.Unmarshal(body, &headers); err != nil {
		return nil, fmt.Errorf("failed to decode headers at %d: %w", height, err)
	}
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: height %d", ErrNotFound, height)
	}

	header := &headers[0]
	header.Height = height

	return header, nil
}

func (s *HeadersService) HeaderAt(ctx context.Context, height uint32) ([]byte, error) {
	header, err := s.BlockByHeight(ctx, height)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch header %d: %w", height, err)
	}

	s.logger.Debug().Uint32("height", height).Str("block", header.Hash.String()).Msg("fetched header")

	return header.Serialize(), nil
}
