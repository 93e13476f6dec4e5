package storage

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb/iterator"
)

// RangeSource streams stored headers in height order without loading the
// range into memory. It releases its iterator once exhausted or on error.
type RangeSource struct {
	iter     iterator.Iterator
	next     uint32
	count    uint32
	read     uint32
	released bool
}

// ReadCount returns the number of headers requested
func (r *RangeSource) ReadCount(_ context.Context) (uint32, error) {
	return r.count, nil
}

// ReadHeader returns the next header; a gap in the stored heights is an error
func (r *RangeSource) ReadHeader(_ context.Context) ([]byte, error) {
	if r.released || r.read >= r.count {
		return nil, fmt.Errorf("header %d: %w", r.next, ErrNotFound)
	}

	if !r.iter.Next() {
		err := r.iter.Error()
		r.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read header %d: %w", r.next, err)
		}
		return nil, fmt.Errorf("header %d: %w", r.next, ErrNotFound)
	}

	key := r.iter.Key()
	height := binary.BigEndian.Uint32(key[len(key)-4:])
	if height != r.next {
		r.Close()
		return nil, fmt.Errorf("header %d: %w", r.next, ErrNotFound)
	}

	// the iterator reuses its buffers
	header := make([]byte, len(r.iter.Value()))
	copy(header, r.iter.Value())

	r.next++
	r.read++
	if r.read == r.count {
		r.Close()
	}

	return header, nil
}

// Close releases the underlying iterator
func (r *RangeSource) Close() {
	if !r.released {
		r.iter.Release()
		r.released = true
	}
}
