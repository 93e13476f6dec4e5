// Package testutil provides header fixtures shared by package tests.
package testutil

import (
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/headerproof/internal/pow"
	"github.com/yourusername/headerproof/pkg/types"
)

// EasyBits is the regtest compact target; about one nonce in two satisfies it
const EasyBits uint32 = 0x207fffff

// MainnetHeaderHex are the serialized main chain headers at heights 0, 1 and 2
var MainnetHeaderHex = []string{
	"0100000000000000000000000000000000000000000000000000000000000000000000003ba3edfd7a7b12b27ac72c3e67768f617fc81bc3888a51323a9fb8aa4b1e5e4a29ab5f49ffff001d1dac2b7c",
	"010000006fe28c0ab6f1b372c1a6a246ae63f74f931e8365e15a089c68d6190000000000982051fd1e4ba744bbbe680e1fee14677ba1a3c3540bf7b1cdb606e857233e0e61bc6649ffff001d01e36299",
	"010000004860eb18bf1b1620e37e9490fc8a427514416fd75159ab86688e9a8300000000d5fdcc541e25de1c7a5addedf24858b8bb665c9f36ef744ee42c316022c90f9bb0bc6649ffff001d08d2bd61",
}

// MainnetHashes are the block hashes of MainnetHeaderHex in display order
var MainnetHashes = []string{
	"000000000019d6689c085ae165831e934ff763ae46a2a6c172b3f1b60a8ce26f",
	"00000000839a8e6886ab5951d76f411475428afc90947ee320161bbf18eb6048",
	"000000006a625f06636b8bb6ac7b960a8d03705d1ace08b1a19da3fdcc99ddbd",
}

// MainnetHeaders returns the first n main chain headers (n <= 3)
func MainnetHeaders(t testing.TB, n int) [][]byte {
	t.Helper()

	headers := make([][]byte, 0, n)
	for _, s := range MainnetHeaderHex[:n] {
		b, err := hex.DecodeString(s)
		require.NoError(t, err)
		headers = append(headers, b)
	}

	return headers
}

// MainnetHash returns the hash of the main chain header at height
func MainnetHash(t testing.TB, height int) chainhash.Hash {
	t.Helper()

	hash, err := chainhash.NewHashFromStr(MainnetHashes[height])
	require.NoError(t, err)

	return *hash
}

// BuildChain mines a linked chain of version 1 headers with the given timestamps
// against EasyBits. It returns the headers and their hashes.
func BuildChain(t testing.TB, timestamps []uint32) ([][]byte, []chainhash.Hash) {
	t.Helper()

	return BuildChainFrom(t, chainhash.Hash{}, timestamps)
}

// BuildChainFrom is BuildChain with the first header linked to prev
func BuildChainFrom(t testing.TB, prev chainhash.Hash, timestamps []uint32) ([][]byte, []chainhash.Hash) {
	t.Helper()

	headers := make([][]byte, 0, len(timestamps))
	hashes := make([]chainhash.Hash, 0, len(timestamps))

	for i, ts := range timestamps {
		fields := types.HeaderFields{
			Version:    1,
			PrevBlock:  prev,
			MerkleRoot: chainhash.DoubleHashH([]byte{byte(i), byte(i >> 8)}),
			Timestamp:  ts,
			Bits:       EasyBits,
		}

		hash, ok := pow.Mine(&fields)
		require.True(t, ok, "failed to mine header %d", i)

		headers = append(headers, fields.Serialize())
		hashes = append(hashes, hash)
		prev = hash
	}

	return headers, hashes
}

// Timestamps returns n timestamps starting at start, step seconds apart
func Timestamps(start uint32, step uint32, n int) []uint32 {
	timestamps := make([]uint32, n)
	for i := range timestamps {
		timestamps[i] = start + uint32(i)*step
	}
	return timestamps
}

// Mutate returns a copy of header with fn applied
func Mutate(header []byte, fn func(b []byte)) []byte {
	b := make([]byte, len(header))
	copy(b, header)
	fn(b)
	return b
}
