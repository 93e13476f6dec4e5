package stream

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/headerproof/pkg/types"
)

func record(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, types.HeaderSize)
}

func TestEncodeRead(t *testing.T) {
	headers := [][]byte{record(1), record(2), record(3)}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, headers))
	assert.Equal(t, CountSize+3*types.HeaderSize, buf.Len())
	assert.Equal(t, []byte{3, 0, 0, 0}, buf.Bytes()[:CountSize])

	r := NewReader(&buf)
	ctx := context.Background()

	count, err := r.ReadCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint32(3), count)

	for _, expected := range headers {
		header, err := r.ReadHeader(ctx)
		require.NoError(t, err)
		assert.Equal(t, expected, header)
	}

	_, err = r.ReadHeader(ctx)
	require.ErrorIs(t, err, types.ErrMalformedHeader)
}

func TestReaderShortRecord(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{1, 0, 0, 0})
	buf.Write(record(7)[:79])

	r := NewReader(&buf)
	_, err := r.ReadCount(context.Background())
	require.NoError(t, err)

	_, err = r.ReadHeader(context.Background())
	require.ErrorIs(t, err, types.ErrMalformedHeader)
	assert.Contains(t, err.Error(), "79 of 80")
}

func TestReaderMissingCount(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{1, 0}))

	_, err := r.ReadCount(context.Background())
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestReaderTransportError(t *testing.T) {
	r := NewReader(io.MultiReader(bytes.NewReader([]byte{1, 0, 0, 0}), failingReader{}))

	_, err := r.ReadCount(context.Background())
	require.NoError(t, err)

	_, err = r.ReadHeader(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrMalformedHeader)
}

func TestWriterRejectsWrongSize(t *testing.T) {
	w := NewWriter(io.Discard)
	require.ErrorIs(t, w.WriteHeader(make([]byte, 81)), types.ErrMalformedHeader)
}

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([][]byte{record(1), {0x01}})
	ctx := context.Background()

	count, err := src.ReadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)

	header, err := src.ReadHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, record(1), header)

	// wrong-sized records pass through untouched
	header, err = src.ReadHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, header)

	_, err = src.ReadHeader(ctx)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSliceSourceWithCount(t *testing.T) {
	src := NewSliceSourceWithCount(5, nil)

	count, err := src.ReadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(5), count)
}
