// Package stream implements the input record stream: a little-endian uint32
// header count followed by that many 80-byte header records.
package stream

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/yourusername/headerproof/pkg/types"
)

// CountSize is the size of the count prefix
const CountSize = 4

// Reader reads a record stream from an io.Reader
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a Reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReaderSize(r, 64*types.HeaderSize)}
}

// ReadCount reads the header count
func (r *Reader) ReadCount(_ context.Context) (uint32, error) {
	var buf [CountSize]byte
	if _, err := io.ReadFull(r.r, buf[:]); err != nil {
		return 0, fmt.Errorf("failed to read header count: %w", err)
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}

// ReadHeader reads the next record. A truncated record is a malformed header.
func (r *Reader) ReadHeader(_ context.Context) ([]byte, error) {
	header := make([]byte, types.HeaderSize)

	n, err := io.ReadFull(r.r, header)
	switch {
	case err == nil:
		return header, nil
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return nil, fmt.Errorf("%w: stream ended after %d of %d bytes", types.ErrMalformedHeader, n, types.HeaderSize)
	default:
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
}

// Writer writes a record stream
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a Writer. Flush must be called once all records are written.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteCount writes the header count
func (w *Writer) WriteCount(count uint32) error {
	var buf [CountSize]byte
	binary.LittleEndian.PutUint32(buf[:], count)

	_, err := w.w.Write(buf[:])
	return err
}

// WriteHeader writes one header record
func (w *Writer) WriteHeader(header []byte) error {
	if len(header) != types.HeaderSize {
		return fmt.Errorf("%w: got %d bytes, want %d", types.ErrMalformedHeader, len(header), types.HeaderSize)
	}

	_, err := w.w.Write(header)
	return err
}

// Flush flushes buffered records
func (w *Writer) Flush() error {
	return w.w.Flush()
}

// Encode writes count and records in one go
func Encode(w io.Writer, headers [][]byte) error {
	sw := NewWriter(w)

	if err := sw.WriteCount(uint32(len(headers))); err != nil {
		return err
	}

	for _, header := range headers {
		if err := sw.WriteHeader(header); err != nil {
			return err
		}
	}

	return sw.Flush()
}

// SliceSource serves records held in memory. Records are handed out as is so
// that a wrong-sized record reaches the header decoder.
type SliceSource struct {
	count   uint32
	headers [][]byte
	next    int
}

// NewSliceSource announces len(headers) records
func NewSliceSource(headers [][]byte) *SliceSource {
	return &SliceSource{count: uint32(len(headers)), headers: headers}
}

// NewSliceSourceWithCount announces count records regardless of how many are held
func NewSliceSourceWithCount(count uint32, headers [][]byte) *SliceSource {
	return &SliceSource{count: count, headers: headers}
}

// ReadCount returns the announced count
func (s *SliceSource) ReadCount(_ context.Context) (uint32, error) {
	return s.count, nil
}

// ReadHeader returns the next record
func (s *SliceSource) ReadHeader(_ context.Context) ([]byte, error) {
	if s.next >= len(s.headers) {
		return nil, fmt.Errorf("failed to read header %d: %w", s.next, io.ErrUnexpectedEOF)
	}

	header := s.headers[s.next]
	s.next++

	return header, nil
}
