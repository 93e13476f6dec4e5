package blockchain

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/internal/pow"
	"github.com/yourusername/headerproof/pkg/types"
)

// ChainState is the accumulator carried from one header to the next.
// It belongs to a single validation run.
type ChainState struct {
	// PrevHash is the double hash of the last accepted header, zero before the first
	PrevHash chainhash.Hash

	// PrevTime is the timestamp of the last accepted header, the baseline before the first
	PrevTime uint32

	// RecentTimes holds the trailing timestamps for the drift check
	RecentTimes consensus.TimeWindow
}

// NewChainState creates the state for a run starting from genesis
func NewChainState(baselineTime uint32) *ChainState {
	return &ChainState{PrevTime: baselineTime}
}

// Apply runs every check on one serialized header and, when all pass, advances
// the state. On error the state is left untouched.
func (s *ChainState) Apply(raw []byte) (chainhash.Hash, error) {
	header, err := types.NewBlockHeader(raw)
	if err != nil {
		return chainhash.Hash{}, err
	}

	if err := consensus.CheckVersion(header); err != nil {
		return chainhash.Hash{}, err
	}

	if err := consensus.CheckLinkage(header, s.PrevHash); err != nil {
		return chainhash.Hash{}, err
	}

	hash := header.Hash()

	if err := pow.CheckProofOfWork(header, hash); err != nil {
		return chainhash.Hash{}, err
	}

	timestamp := header.Timestamp()

	if err := consensus.CheckMonotonicTime(timestamp, s.PrevTime); err != nil {
		return chainhash.Hash{}, err
	}

	if err := consensus.CheckTimeDrift(timestamp, &s.RecentTimes); err != nil {
		return chainhash.Hash{}, err
	}

	s.PrevHash = hash
	s.PrevTime = timestamp
	s.RecentTimes.Push(timestamp)

	return hash, nil
}
