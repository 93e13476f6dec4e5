package crypto

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"
)

const (
	// AddressVersion is prepended to the public key hash of an address
	AddressVersion = 0x00

	// ChecksumLength is the length of address checksum
	ChecksumLength = 4
)

var (
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidKey     = errors.New("invalid key")
)

// ProverKey is the secp256k1 key a prover seals receipts with
type ProverKey struct {
	priv *btcec.PrivateKey
}

// NewProverKey generates a fresh key
func NewProverKey() (*ProverKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate private key: %w", err)
	}

	return &ProverKey{priv: priv}, nil
}

// ProverKeyFromHex parses a hex encoded 32-byte private key
func ProverKeyFromHex(s string) (*ProverKey, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	if len(b) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidKey, len(b), btcec.PrivKeyBytesLen)
	}

	priv, _ := btcec.PrivKeyFromBytes(b)

	return &ProverKey{priv: priv}, nil
}

// LoadProverKey reads a key file written by Save
func LoadProverKey(path string) (*ProverKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	return ProverKeyFromHex(string(data))
}

// LoadOrCreateProverKey loads the key at path, creating it when missing
func LoadOrCreateProverKey(path string) (*ProverKey, error) {
	key, err := LoadProverKey(path)
	if err == nil {
		return key, nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	if key, err = NewProverKey(); err != nil {
		return nil, err
	}

	if err := key.Save(path); err != nil {
		return nil, err
	}

	return key, nil
}

// Save writes the private key as hex, readable by the owner only
func (k *ProverKey) Save(path string) error {
	if err := os.WriteFile(path, []byte(k.Hex()+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return nil
}

// Hex returns the private key as hex
func (k *ProverKey) Hex() string {
	return hex.EncodeToString(k.priv.Serialize())
}

// PublicKey returns the compressed public key
func (k *ProverKey) PublicKey() []byte {
	return k.priv.PubKey().SerializeCompressed()
}

// Address returns the base58check address of the public key
func (k *ProverKey) Address() string {
	return AddressFromPubKey(k.PublicKey())
}

// Sign returns a DER signature over a 32-byte digest
func (k *ProverKey) Sign(digest []byte) []byte {
	return ecdsa.Sign(k.priv, digest).Serialize()
}

// VerifySignature checks a DER signature over digest against a compressed or
// uncompressed public key
func VerifySignature(pubKey, digest, signature []byte) bool {
	pub, err := btcec.ParsePubKey(pubKey)
	if err != nil {
		return false
	}

	sig, err := ecdsa.ParseDERSignature(signature)
	if err != nil {
		return false
	}

	return sig.Verify(digest, pub)
}

// PublicKeyHash returns the RIPEMD160(SHA256(pubKey))
func PublicKeyHash(pubKey []byte) []byte {
	sha256Hash := sha256.Sum256(pubKey)
	ripemd160Hasher := ripemd160.New()
	ripemd160Hasher.Write(sha256Hash[:])
	return ripemd160Hasher.Sum(nil)
}

// AddressFromPubKey generates an address from a public key
func AddressFromPubKey(pubKey []byte) string {
	return EncodeAddress(PublicKeyHash(pubKey))
}

// EncodeAddress encodes a public key hash as Base58(version + hash + checksum)
func EncodeAddress(pubKeyHash []byte) string {
	payload := make([]byte, 0, 1+len(pubKeyHash)+ChecksumLength)
	payload = append(payload, AddressVersion)
	payload = append(payload, pubKeyHash...)
	payload = append(payload, Checksum(payload)...)

	return base58.Encode(payload)
}

// DecodeAddress returns the public key hash of an address
func DecodeAddress(address string) ([]byte, error) {
	decoded, err := base58.Decode(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if len(decoded) < ChecksumLength+1 {
		return nil, fmt.Errorf("%w: too short", ErrInvalidAddress)
	}

	payload := decoded[:len(decoded)-ChecksumLength]
	if !bytes.Equal(Checksum(payload), decoded[len(decoded)-ChecksumLength:]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidAddress)
	}

	if payload[0] != AddressVersion {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidAddress, payload[0])
	}

	return payload[1:], nil
}

// AddressMatchesPubKey reports whether address was derived from pubKey
func AddressMatchesPubKey(address string, pubKey []byte) bool {
	hash, err := DecodeAddress(address)
	if err != nil {
		return false
	}
	return bytes.Equal(hash, PublicKeyHash(pubKey))
}
