package types

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

const (
	// HeaderSize is the serialized size of a block header
	HeaderSize = 80

	versionOffset    = 0
	prevBlockOffset  = 4
	merkleRootOffset = 36
	timestampOffset  = 68
	bitsOffset       = 72
	nonceOffset      = 76
)

// ErrMalformedHeader is returned when a header record is not exactly HeaderSize bytes
var ErrMalformedHeader = errors.New("malformed header")

// Commitment is the double hash of the last header of a validated chain
type Commitment = chainhash.Hash

// BlockHeader is a read-only view over a serialized 80-byte header.
// Integer fields are little-endian; hash fields are returned in the byte order
// they were serialized in.
type BlockHeader struct {
	raw [HeaderSize]byte
}

// NewBlockHeader decodes a header record
func NewBlockHeader(b []byte) (*BlockHeader, error) {
	if len(b) != HeaderSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrMalformedHeader, len(b), HeaderSize)
	}

	h := &BlockHeader{}
	copy(h.raw[:], b)

	return h, nil
}

// Version returns the header version
func (h *BlockHeader) Version() uint32 {
	return binary.LittleEndian.Uint32(h.raw[versionOffset:prevBlockOffset])
}

// PrevBlockHash returns the hash of the previous header
func (h *BlockHeader) PrevBlockHash() chainhash.Hash {
	var hash chainhash.Hash
	copy(hash[:], h.raw[prevBlockOffset:merkleRootOffset])
	return hash
}

// MerkleRoot returns the transaction merkle root. It is never checked.
func (h *BlockHeader) MerkleRoot() chainhash.Hash {
	var hash chainhash.Hash
	copy(hash[:], h.raw[merkleRootOffset:timestampOffset])
	return hash
}

// Timestamp returns the block time in unix seconds
func (h *BlockHeader) Timestamp() uint32 {
	return binary.LittleEndian.Uint32(h.raw[timestampOffset:bitsOffset])
}

// Bits returns the compact difficulty exactly as serialized
func (h *BlockHeader) Bits() [4]byte {
	var bits [4]byte
	copy(bits[:], h.raw[bitsOffset:nonceOffset])
	return bits
}

// Nonce returns the proof-of-work nonce
func (h *BlockHeader) Nonce() uint32 {
	return binary.LittleEndian.Uint32(h.raw[nonceOffset:])
}

// Bytes returns a copy of the serialized header
func (h *BlockHeader) Bytes() []byte {
	b := make([]byte, HeaderSize)
	copy(b, h.raw[:])
	return b
}

// Hash returns the double SHA-256 of the serialized header
func (h *BlockHeader) Hash() chainhash.Hash {
	return chainhash.DoubleHashH(h.raw[:])
}

// HeaderFields holds header values for building a serialized header
type HeaderFields struct {
	Version    uint32
	PrevBlock  chainhash.Hash
	MerkleRoot chainhash.Hash
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32
}

// Serialize converts the fields to the 80-byte wire layout
func (f *HeaderFields) Serialize() []byte {
	b := make([]byte, HeaderSize)

	binary.LittleEndian.PutUint32(b[versionOffset:], f.Version)
	copy(b[prevBlockOffset:merkleRootOffset], f.PrevBlock[:])
	copy(b[merkleRootOffset:timestampOffset], f.MerkleRoot[:])
	binary.LittleEndian.PutUint32(b[timestampOffset:], f.Timestamp)
	binary.LittleEndian.PutUint32(b[bitsOffset:], f.Bits)
	binary.LittleEndian.PutUint32(b[nonceOffset:], f.Nonce)

	return b
}
