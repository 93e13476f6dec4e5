package crypto

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// DoubleHash returns SHA-256 applied twice, the second pass over the raw digest
func DoubleHash(data []byte) chainhash.Hash {
	return chainhash.DoubleHashH(data)
}

// Checksum returns the first ChecksumLength bytes of the double hash
func Checksum(payload []byte) []byte {
	hash := DoubleHash(payload)
	return hash[:ChecksumLength]
}
