package pow

import (
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/pkg/types"
)

const (
	// TargetSize is the width of an expanded target in bytes
	TargetSize = 32

	// MinExponent is the smallest compact exponent accepted
	MinExponent = 3

	// MaxExponent is the largest exponent whose mantissa still fits the target
	MaxExponent = TargetSize
)

// Target is a 256-bit magnitude stored least significant byte first,
// the same layout as a header hash.
type Target [TargetSize]byte

// ExpandTarget expands compact difficulty bits, as serialized in a header,
// into a target. bits[3] is the exponent e; bits[0..3] are copied verbatim to
// target[e-3 : e].
func ExpandTarget(bits [4]byte) (Target, error) {
	var target Target

	exponent := int(bits[3])
	if exponent < MinExponent || exponent > MaxExponent {
		return target, fmt.Errorf("%w: exponent %d", consensus.ErrInvalidDifficultyEncoding, exponent)
	}

	copy(target[exponent-MinExponent:exponent], bits[0:3])

	return target, nil
}

// Compare compares two equal-length magnitudes stored least significant byte
// first, walking from the highest index down. It returns -1, 0 or +1.
func Compare(a, b []byte) int {
	if len(a) != len(b) {
		panic(fmt.Sprintf("pow: comparing %d bytes with %d bytes", len(a), len(b)))
	}

	for i := len(a) - 1; i >= 0; i-- {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}

	return 0
}

// HashMeetsTarget reports whether hash <= target
func HashMeetsTarget(hash chainhash.Hash, target Target) bool {
	return Compare(hash[:], target[:]) <= 0
}

// CheckProofOfWork verifies that hash, the double hash of header, does not exceed
// the target expanded from the header's bits
func CheckProofOfWork(header *types.BlockHeader, hash chainhash.Hash) error {
	target, err := ExpandTarget(header.Bits())
	if err != nil {
		return err
	}

	if !HashMeetsTarget(hash, target) {
		return fmt.Errorf("%w: hash %s above target %x", consensus.ErrInsufficientWork, hash, target)
	}

	return nil
}

// Mine increments the nonce of fields until the header meets its own target.
// It returns false when the nonce space is exhausted.
func Mine(fields *types.HeaderFields) (chainhash.Hash, bool) {
	var bits [4]byte
	binary.LittleEndian.PutUint32(bits[:], fields.Bits)
	if _, err := ExpandTarget(bits); err != nil {
		return chainhash.Hash{}, false
	}

	for {
		raw := fields.Serialize()
		header, err := types.NewBlockHeader(raw)
		if err != nil {
			return chainhash.Hash{}, false
		}

		hash := header.Hash()
		if CheckProofOfWork(header, hash) == nil {
			return hash, true
		}

		if fields.Nonce == ^uint32(0) {
			return chainhash.Hash{}, false
		}
		fields.Nonce++
	}
}
