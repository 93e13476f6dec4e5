package pow

import (
	"bytes"
	"encoding/binary"
	"math/big"
	"math/rand"
	"testing"

	"github.com/btcsuite/btcd/blockchain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/pkg/types"
)

func bitsBytes(compact uint32) [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], compact)
	return b
}

// toBig reads a least-significant-first buffer as an unsigned integer
func toBig(le []byte) *big.Int {
	be := make([]byte, len(le))
	for i := range le {
		be[len(le)-1-i] = le[i]
	}
	return new(big.Int).SetBytes(be)
}

func genesisHeader(t testing.TB) *types.BlockHeader {
	var buf bytes.Buffer
	require.NoError(t, chaincfg.MainNetParams.GenesisBlock.Header.Serialize(&buf))

	header, err := types.NewBlockHeader(buf.Bytes())
	require.NoError(t, err)

	return header
}

func TestExpandTargetGenesisBits(t *testing.T) {
	target, err := ExpandTarget(bitsBytes(0x1d00ffff))
	require.NoError(t, err)

	var expected Target
	expected[26] = 0xff
	expected[27] = 0xff
	assert.Equal(t, expected, target)
}

func TestExpandTargetRejectsLowExponents(t *testing.T) {
	mantissas := []uint32{0x000000, 0x000001, 0x00ffff, 0x7fffff, 0xffffff}

	for exponent := uint32(0); exponent < MinExponent; exponent++ {
		for _, mantissa := range mantissas {
			_, err := ExpandTarget(bitsBytes(exponent<<24 | mantissa))
			require.ErrorIs(t, err, consensus.ErrInvalidDifficultyEncoding, "exponent %d mantissa %06x", exponent, mantissa)
		}
	}
}

func TestExpandTargetRejectsOverflowingExponents(t *testing.T) {
	for _, exponent := range []uint32{33, 34, 0x80, 0xff} {
		_, err := ExpandTarget(bitsBytes(exponent<<24 | 0x00ffff))
		require.ErrorIs(t, err, consensus.ErrInvalidDifficultyEncoding)
	}
}

func TestExpandTargetBoundaries(t *testing.T) {
	target, err := ExpandTarget(bitsBytes(0x03123456))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x56, 0x34, 0x12}, target[0:3])
	assert.Equal(t, make([]byte, 29), target[3:])

	target, err = ExpandTarget(bitsBytes(0x20123456))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x56, 0x34, 0x12}, target[29:32])
	assert.Equal(t, make([]byte, 29), target[:29])
}

func TestExpandTargetMatchesCompactToBig(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for exponent := uint32(MinExponent); exponent <= MaxExponent; exponent++ {
		for i := 0; i < 50; i++ {
			// the sign bit is copied verbatim here, btcd treats it as negative
			mantissa := uint32(rng.Intn(0x800000))
			compact := exponent<<24 | mantissa

			target, err := ExpandTarget(bitsBytes(compact))
			require.NoError(t, err)
			require.Zero(t, toBig(target[:]).Cmp(blockchain.CompactToBig(compact)), "compact %08x", compact)
		}
	}
}

func TestExpandTargetDeterministic(t *testing.T) {
	bits := bitsBytes(0x1b0404cb)

	first, err := ExpandTarget(bits)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		again, err := ExpandTarget(bits)
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []byte
		expected int
	}{
		{"equal", []byte{1, 2, 3, 4}, []byte{1, 2, 3, 4}, 0},
		{"high byte wins", []byte{0xff, 0xff, 0xff, 0x00}, []byte{0x00, 0x00, 0x00, 0x01}, -1},
		{"low byte breaks tie", []byte{0x02, 0, 0, 1}, []byte{0x01, 0, 0, 1}, 1},
		{"zero", make([]byte, 32), make([]byte, 32), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Compare(tt.a, tt.b))
			assert.Equal(t, -tt.expected, Compare(tt.b, tt.a))
		})
	}
}

func TestCompareMatchesBigInt(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		a := make([]byte, TargetSize)
		b := make([]byte, TargetSize)
		rng.Read(a)
		rng.Read(b)

		// share a random number of high bytes to exercise ties
		shared := rng.Intn(TargetSize)
		copy(b[TargetSize-shared:], a[TargetSize-shared:])

		require.Equal(t, toBig(a).Cmp(toBig(b)), Compare(a, b))
	}
}

func TestComparePanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() { Compare([]byte{1}, []byte{1, 2}) })
}

func TestHashMeetsTargetAcceptsTie(t *testing.T) {
	target, err := ExpandTarget(bitsBytes(0x1d00ffff))
	require.NoError(t, err)

	var hash chainhash.Hash
	copy(hash[:], target[:])
	assert.True(t, HashMeetsTarget(hash, target))

	hash[0] = 0x01
	assert.False(t, HashMeetsTarget(hash, target))
}

func TestCheckProofOfWorkGenesis(t *testing.T) {
	header := genesisHeader(t)

	hash := header.Hash()
	require.Equal(t, *chaincfg.MainNetParams.GenesisHash, hash)
	require.NoError(t, CheckProofOfWork(header, hash))
}

func TestCheckProofOfWorkInsufficient(t *testing.T) {
	fields := types.HeaderFields{Version: 1, Timestamp: 1231006505, Bits: 0x03000001}
	header, err := types.NewBlockHeader(fields.Serialize())
	require.NoError(t, err)

	err = CheckProofOfWork(header, header.Hash())
	require.ErrorIs(t, err, consensus.ErrInsufficientWork)
}

func TestCheckProofOfWorkInvalidBits(t *testing.T) {
	fields := types.HeaderFields{Version: 1, Bits: 0x02ffffff}
	header, err := types.NewBlockHeader(fields.Serialize())
	require.NoError(t, err)

	err = CheckProofOfWork(header, header.Hash())
	require.ErrorIs(t, err, consensus.ErrInvalidDifficultyEncoding)
}

func TestMine(t *testing.T) {
	fields := types.HeaderFields{Version: 1, Timestamp: 1231006505, Bits: 0x1f7fffff}

	hash, ok := Mine(&fields)
	require.True(t, ok)

	header, err := types.NewBlockHeader(fields.Serialize())
	require.NoError(t, err)
	require.Equal(t, header.Hash(), hash)
	require.NoError(t, CheckProofOfWork(header, hash))
}

func TestMineInvalidBits(t *testing.T) {
	fields := types.HeaderFields{Version: 1, Bits: 0x01ffffff}

	_, ok := Mine(&fields)
	require.False(t, ok)
}

func BenchmarkExpandTarget(b *testing.B) {
	bits := bitsBytes(0x1d00ffff)
	for i := 0; i < b.N; i++ {
		_, _ = ExpandTarget(bits)
	}
}

func BenchmarkCheckProofOfWork(b *testing.B) {
	header := genesisHeader(b)
	hash := header.Hash()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = CheckProofOfWork(header, hash)
	}
}
