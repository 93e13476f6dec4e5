package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/headerproof/internal/blockchain"
	"github.com/yourusername/headerproof/internal/consensus"
	"github.com/yourusername/headerproof/internal/crypto"
	"github.com/yourusername/headerproof/internal/receipt"
	"github.com/yourusername/headerproof/internal/testutil"
	"github.com/yourusername/headerproof/pkg/types"
)

func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	s, err := NewStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	return s
}

func TestPutGetHeader(t *testing.T) {
	s := setupTestStorage(t)
	headers := testutil.MainnetHeaders(t, 3)

	_, ok, err := s.Tip()
	require.NoError(t, err)
	assert.False(t, ok)

	for i, header := range headers {
		require.NoError(t, s.PutHeader(uint32(i), header))
	}

	tip, ok, err := s.Tip()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(2), tip)

	got, err := s.GetHeader(1)
	require.NoError(t, err)
	assert.Equal(t, headers[1], got)
	assert.True(t, s.HasHeader(2))
	assert.False(t, s.HasHeader(3))

	height, err := s.HeightOf(testutil.MainnetHash(t, 2))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), height)

	_, err = s.GetHeader(9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPutHeaderKeepsHighestTip(t *testing.T) {
	s := setupTestStorage(t)
	headers := testutil.MainnetHeaders(t, 3)

	require.NoError(t, s.PutHeader(2, headers[2]))
	require.NoError(t, s.PutHeader(0, headers[0]))

	tip, _, err := s.Tip()
	require.NoError(t, err)
	assert.Equal(t, uint32(2), tip)
}

func TestPutHeaderRejectsMalformed(t *testing.T) {
	s := setupTestStorage(t)
	require.ErrorIs(t, s.PutHeader(0, make([]byte, 79)), types.ErrMalformedHeader)
}

func TestRangeFeedsValidator(t *testing.T) {
	s := setupTestStorage(t)
	for i, header := range testutil.MainnetHeaders(t, 3) {
		require.NoError(t, s.PutHeader(uint32(i), header))
	}

	commitment, err := blockchain.Validate(context.Background(), blockchain.DefaultOptions(), s.Range(0, 3), s)
	require.NoError(t, err)
	assert.Equal(t, testutil.MainnetHash(t, 2), commitment)

	latest, err := s.LatestCommitment()
	require.NoError(t, err)
	assert.Equal(t, commitment, latest)
}

func TestRangeGap(t *testing.T) {
	s := setupTestStorage(t)
	headers := testutil.MainnetHeaders(t, 3)
	require.NoError(t, s.PutHeader(0, headers[0]))
	require.NoError(t, s.PutHeader(2, headers[2]))

	src := s.Range(0, 3)
	ctx := context.Background()

	count, err := src.ReadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)

	_, err = src.ReadHeader(ctx)
	require.NoError(t, err)

	_, err = src.ReadHeader(ctx)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRangePastEnd(t *testing.T) {
	s := setupTestStorage(t)
	require.NoError(t, s.PutHeader(0, testutil.MainnetHeaders(t, 1)[0]))

	src := s.Range(0, 2)
	defer src.Close()

	_, err := src.ReadHeader(context.Background())
	require.NoError(t, err)

	_, err = src.ReadHeader(context.Background())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRangeFromMiddle(t *testing.T) {
	s := setupTestStorage(t)
	headers := testutil.MainnetHeaders(t, 3)
	for i, header := range headers {
		require.NoError(t, s.PutHeader(uint32(i), header))
	}

	src := s.Range(1, 2)
	for _, expected := range headers[1:] {
		got, err := src.ReadHeader(context.Background())
		require.NoError(t, err)
		assert.Equal(t, expected, got)
	}
}

func TestCommitmentMissing(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.LatestCommitment()
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReceiptLog(t *testing.T) {
	s := setupTestStorage(t)

	_, err := s.LatestReceipt()
	require.ErrorIs(t, err, ErrNotFound)

	key, err := crypto.NewProverKey()
	require.NoError(t, err)

	imageID := receipt.ImageID(consensus.DefaultBaselineTime)
	first := receipt.Seal(key, imageID, 1, testutil.MainnetHash(t, 0))
	second := receipt.Seal(key, imageID, 3, testutil.MainnetHash(t, 2))

	seq, err := s.AppendReceipt(first)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq)

	seq, err = s.AppendReceipt(second)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)

	latest, err := s.LatestReceipt()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), latest.Seq)
	assert.Equal(t, second.Journal, latest.Receipt.Journal)
	require.NoError(t, receipt.Verify(latest.Receipt, imageID))

	got, err := s.GetReceipt(1)
	require.NoError(t, err)
	assert.Equal(t, first.Journal, got.Receipt.Journal)

	all, err := s.Receipts()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1), all[0].Seq)
	assert.Equal(t, uint64(2), all[1].Seq)
}
