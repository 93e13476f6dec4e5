package consensus

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/yourusername/headerproof/pkg/types"
)

const (
	// SupportedVersion is the only header version accepted (bytes 01 00 00 00)
	SupportedVersion uint32 = 1

	// DriftMultiplier bounds a timestamp relative to the trailing median
	DriftMultiplier = 2

	// DefaultBaselineTime seeds the previous timestamp before the first header (2009-01-03)
	DefaultBaselineTime uint32 = 0x495f5340
)

// CheckVersion rejects every version except SupportedVersion
func CheckVersion(header *types.BlockHeader) error {
	if v := header.Version(); v != SupportedVersion {
		return fmt.Errorf("%w: version %d", ErrUnsupportedVersion, v)
	}
	return nil
}

// CheckLinkage verifies the header points at the expected previous hash
func CheckLinkage(header *types.BlockHeader, prev chainhash.Hash) error {
	if got := header.PrevBlockHash(); got != prev {
		return fmt.Errorf("%w: previous hash %s, expected %s", ErrBrokenChain, got, prev)
	}
	return nil
}

// CheckMonotonicTime requires timestamp >= prev.
// Comparing the little-endian fields from the highest byte down is the same as
// comparing them as unsigned integers.
func CheckMonotonicTime(timestamp, prev uint32) error {
	if timestamp < prev {
		return fmt.Errorf("%w: %d is before %d", ErrTimeNotMonotonic, timestamp, prev)
	}
	return nil
}

// CheckTimeDrift rejects a timestamp above DriftMultiplier times the median of
// the window. The check only applies once the window is full.
func CheckTimeDrift(timestamp uint32, window *TimeWindow) error {
	if !window.Full() {
		return nil
	}

	median := window.Median()
	if uint64(timestamp) > DriftMultiplier*uint64(median) {
		return fmt.Errorf("%w: %d exceeds %d x median %d", ErrExcessiveTimeDrift, timestamp, DriftMultiplier, median)
	}

	return nil
}
