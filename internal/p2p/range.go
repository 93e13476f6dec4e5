package p2p

import (
	"context"
	"fmt"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/yourusername/headerproof/internal/stream"
)

// RangeReader reads a header range served by a peer
type RangeReader struct {
	s      network.Stream
	reader *stream.Reader
	want   uint32
}

// ReadCount returns the count the peer announced. It must match the request.
func (r *RangeReader) ReadCount(ctx context.Context) (uint32, error) {
	count, err := r.reader.ReadCount(ctx)
	if err != nil {
		return 0, err
	}
	if count != r.want {
		return 0, fmt.Errorf("peer announced %d headers, requested %d", count, r.want)
	}
	return count, nil
}

func (r *RangeReader) ReadHeader(ctx context.Context) ([]byte, error) {
	return r.reader.ReadHeader(ctx)
}

func (r *RangeReader) Close() error {
	return r.s.Close()
}
