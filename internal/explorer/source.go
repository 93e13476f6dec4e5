package explorer

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

type fetched struct {
	raw []byte
	err error
}

// Source streams count headers starting at from. Up to prefetch headers are
// fetched concurrently ahead of the reader; they are still delivered in height order.
type Source struct {
	count  uint32
	ctx    context.Context
	slots  chan chan fetched
	done   chan struct{}
	group  *errgroup.Group
	cancel context.CancelFunc
}

// NewSource starts fetching immediately. Close releases the workers.
func NewSource(ctx context.Context, fetcher Fetcher, from, count uint32, prefetch int) *Source {
	if prefetch < 1 {
		prefetch = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetch)

	s := &Source{
		count:  count,
		ctx:    gctx,
		slots:  make(chan chan fetched, prefetch),
		done:   make(chan struct{}),
		group:  g,
		cancel: cancel,
	}

	go s.produce(gctx, fetcher, from)

	return s
}

func (s *Source) produce(ctx context.Context, fetcher Fetcher, from uint32) {
	defer close(s.done)
	defer close(s.slots)

	for i := uint32(0); i < s.count; i++ {
		if ctx.Err() != nil {
			return
		}

		slot := make(chan fetched, 1)

		select {
		case s.slots <- slot:
		case <-ctx.Done():
			return
		}

		height := from + i
		s.group.Go(func() error {
			raw, err := fetcher.HeaderAt(ctx, height)
			slot <- fetched{raw: raw, err: err}
			return err
		})
	}
}

func (s *Source) ReadCount(_ context.Context) (uint32, error) {
	return s.count, nil
}

func (s *Source) ReadHeader(ctx context.Context) ([]byte, error) {
	var slot chan fetched
	var ok bool

	select {
	case slot, ok = <-s.slots:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !ok {
		// read past count, a fetch failed, or the source was closed
		closed := s.ctx.Err()
		if err := s.wait(); err != nil {
			return nil, err
		}
		if closed != nil {
			return nil, closed
		}
		return nil, io.ErrUnexpectedEOF
	}

	select {
	case res := <-slot:
		if res.err != nil {
			// report the failure that cancelled the group, not a knock-on cancellation
			if err := s.wait(); err != nil {
				return nil, err
			}
			return nil, res.err
		}
		return res.raw, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// wait returns the first fetch error once the producer and every worker have stopped
func (s *Source) wait() error {
	<-s.done
	return s.group.Wait()
}

// Close stops outstanding fetches
func (s *Source) Close() {
	s.cancel()
}
