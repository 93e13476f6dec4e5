package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddressKnownVector(t *testing.T) {
	// pubkey hash of the key paid by the genesis coinbase
	hash, _ := hex.DecodeString("62e907b15cbf27d5425399ebf6f0fb50ebb88f18")

	address := EncodeAddress(hash)
	assert.Equal(t, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa", address)

	decoded, err := DecodeAddress(address)
	require.NoError(t, err)
	assert.Equal(t, hash, decoded)
}

func TestDecodeAddressErrors(t *testing.T) {
	tests := []struct {
		name    string
		address string
	}{
		{"not base58", "0OIl"},
		{"too short", "1"},
		{"bad checksum", "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAddress(tt.address)
			require.ErrorIs(t, err, ErrInvalidAddress)
		})
	}
}

func TestProverKeySignVerify(t *testing.T) {
	key, err := NewProverKey()
	require.NoError(t, err)

	digest := DoubleHash([]byte("commitment"))
	sig := key.Sign(digest[:])

	assert.True(t, VerifySignature(key.PublicKey(), digest[:], sig))

	other := DoubleHash([]byte("other"))
	assert.False(t, VerifySignature(key.PublicKey(), other[:], sig))

	otherKey, err := NewProverKey()
	require.NoError(t, err)
	assert.False(t, VerifySignature(otherKey.PublicKey(), digest[:], sig))

	assert.False(t, VerifySignature([]byte{0x02}, digest[:], sig))
	assert.False(t, VerifySignature(key.PublicKey(), digest[:], []byte{0x30}))
}

func TestProverKeyAddress(t *testing.T) {
	key, err := NewProverKey()
	require.NoError(t, err)

	assert.Len(t, key.PublicKey(), 33)
	assert.True(t, AddressMatchesPubKey(key.Address(), key.PublicKey()))
	assert.False(t, AddressMatchesPubKey("not-an-address", key.PublicKey()))
}

func TestProverKeyHexRoundTrip(t *testing.T) {
	key, err := NewProverKey()
	require.NoError(t, err)

	parsed, err := ProverKeyFromHex(key.Hex())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), parsed.PublicKey())

	_, err = ProverKeyFromHex("zz")
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = ProverKeyFromHex("0102")
	require.ErrorIs(t, err, ErrInvalidKey)
}

func TestLoadOrCreateProverKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prover.key")

	created, err := LoadOrCreateProverKey(path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := LoadOrCreateProverKey(path)
	require.NoError(t, err)
	assert.Equal(t, created.Address(), loaded.Address())
}

func TestLoadProverKeyMissing(t *testing.T) {
	_, err := LoadProverKey(filepath.Join(t.TempDir(), "missing.key"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
