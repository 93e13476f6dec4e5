package consensus

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/headerproof/pkg/types"
)

func newHeader(t *testing.T, fields types.HeaderFields) *types.BlockHeader {
	t.Helper()

	header, err := types.NewBlockHeader(fields.Serialize())
	require.NoError(t, err)

	return header
}

func TestCheckVersion(t *testing.T) {
	tests := []struct {
		name    string
		version uint32
		wantErr bool
	}{
		{"version 1", 1, false},
		{"version 0", 0, true},
		{"version 2", 2, true},
		{"version bits", 0x20000000, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckVersion(newHeader(t, types.HeaderFields{Version: tt.version}))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsupportedVersion)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestCheckLinkage(t *testing.T) {
	prev := chainhash.DoubleHashH([]byte("previous"))

	require.NoError(t, CheckLinkage(newHeader(t, types.HeaderFields{Version: 1, PrevBlock: prev}), prev))
	require.NoError(t, CheckLinkage(newHeader(t, types.HeaderFields{Version: 1}), chainhash.Hash{}))

	err := CheckLinkage(newHeader(t, types.HeaderFields{Version: 1}), prev)
	require.ErrorIs(t, err, ErrBrokenChain)

	err = CheckLinkage(newHeader(t, types.HeaderFields{Version: 1, PrevBlock: prev}), chainhash.Hash{})
	require.ErrorIs(t, err, ErrBrokenChain)
}

func TestCheckMonotonicTime(t *testing.T) {
	require.NoError(t, CheckMonotonicTime(DefaultBaselineTime, DefaultBaselineTime))
	require.NoError(t, CheckMonotonicTime(1231006505, DefaultBaselineTime))
	require.ErrorIs(t, CheckMonotonicTime(DefaultBaselineTime-1, DefaultBaselineTime), ErrTimeNotMonotonic)

	// the high byte decides before the low bytes do
	require.ErrorIs(t, CheckMonotonicTime(0x00ffffff, 0x01000000), ErrTimeNotMonotonic)
	require.NoError(t, CheckMonotonicTime(0x01000000, 0x00ffffff))
}

func TestDefaultBaselineTime(t *testing.T) {
	// 03/Jan/2009, serialized as 40 53 5f 49
	assert.Equal(t, uint32(1230984000), DefaultBaselineTime)
}

func TestMedian(t *testing.T) {
	tests := []struct {
		name       string
		timestamps []uint32
		expected   uint32
	}{
		{"empty", nil, 0},
		{"single", []uint32{7}, 7},
		{"odd unsorted", []uint32{1231470988, 1231470173, 1231469744, 1231469665, 1231006505}, 1231469744},
		{"even averages middle two", []uint32{4, 1, 3, 2}, 2},
		{"even exact average", []uint32{10, 20, 30, 40}, 25},
		{"even no overflow", []uint32{0xffffffff, 0xfffffffd}, 0xfffffffe},
		{
			"eleven",
			[]uint32{
				1686609209, 1686608789, 1686608129, 1686606869, 1686606449, 1686603569,
				1686603509, 1686603449, 1686603089, 1686601469, 1686600089,
			},
			1686603569,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Median(tt.timestamps))
		})
	}
}

func TestMedianDoesNotReorderInput(t *testing.T) {
	timestamps := []uint32{3, 1, 2}
	Median(timestamps)
	assert.Equal(t, []uint32{3, 1, 2}, timestamps)
}

func TestTimeWindow(t *testing.T) {
	var w TimeWindow

	assert.Equal(t, 0, w.Len())
	assert.False(t, w.Full())
	assert.Empty(t, w.Values())

	for i := uint32(1); i <= MedianTimeBlocks; i++ {
		w.Push(i * 100)
	}

	assert.True(t, w.Full())
	assert.Equal(t, MedianTimeBlocks, w.Len())
	assert.Equal(t, []uint32{100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100}, w.Values())
	assert.Equal(t, uint32(600), w.Median())

	w.Push(1200)

	assert.Equal(t, MedianTimeBlocks, w.Len())
	assert.NotContains(t, w.Values(), uint32(100))
	assert.Equal(t, []uint32{200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200}, w.Values())
	assert.Equal(t, uint32(700), w.Median())
}

func TestTimeWindowWrapsRepeatedly(t *testing.T) {
	var w TimeWindow

	for i := uint32(0); i < 100; i++ {
		w.Push(i)
	}

	values := w.Values()
	require.Len(t, values, MedianTimeBlocks)
	for i, v := range values {
		assert.Equal(t, uint32(89+i), v)
	}
}

func TestCheckTimeDrift(t *testing.T) {
	var w TimeWindow

	// below capacity the check is skipped whatever the value
	for i := 0; i < MedianTimeBlocks-1; i++ {
		w.Push(1000)
		require.NoError(t, CheckTimeDrift(0xffffffff, &w))
	}

	w.Push(1000)
	require.True(t, w.Full())

	require.NoError(t, CheckTimeDrift(2000, &w))
	require.ErrorIs(t, CheckTimeDrift(2001, &w), ErrExcessiveTimeDrift)
}

func TestCheckTimeDriftLargeMedian(t *testing.T) {
	var w TimeWindow
	for i := 0; i < MedianTimeBlocks; i++ {
		w.Push(0xf0000000)
	}

	// twice the median does not fit in 32 bits
	require.NoError(t, CheckTimeDrift(0xffffffff, &w))
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind string
	}{
		{nil, ""},
		{fmt.Errorf("io: %w", fmt.Errorf("plain")), ""},
		{ErrMalformedHeader, "MalformedHeader"},
		{fmt.Errorf("%w: version 0", ErrUnsupportedVersion), "UnsupportedVersion"},
		{fmt.Errorf("height 3: %w", ErrBrokenChain), "BrokenChain"},
		{ErrInvalidDifficultyEncoding, "InvalidDifficultyEncoding"},
		{ErrInsufficientWork, "InsufficientWork"},
		{ErrTimeNotMonotonic, "TimeNotMonotonic"},
		{ErrExcessiveTimeDrift, "ExcessiveTimeDrift"},
		{ErrEmptyChain, "EmptyChain"},
		{ErrCancelled, "Cancelled"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
		})
	}

	assert.True(t, IsRuleViolation(ErrBrokenChain))
	assert.False(t, IsRuleViolation(ErrCancelled))
	assert.False(t, IsRuleViolation(nil))
}

func TestErrorForKind(t *testing.T) {
	for _, k := range kinds {
		assert.Same(t, k.err, ErrorForKind(k.name))
		assert.Equal(t, k.name, KindOf(ErrorForKind(k.name)))
	}
	assert.Nil(t, ErrorForKind("Unknown"))
}
