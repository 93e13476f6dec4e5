package grpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/yourusername/headerproof/internal/prover"
	"github.com/yourusername/headerproof/internal/receipt"
	"github.com/yourusername/headerproof/internal/stream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// subscriberBuffer is how many receipts a slow subscriber may lag behind
const subscriberBuffer = 16

// Server implements the Prover gRPC service
type Server struct {
	prover *prover.Service
	logger zerolog.Logger

	// Streaming subscriptions
	subs   map[chan *receipt.Receipt]struct{}
	subsMu sync.RWMutex

	grpcServer *grpc.Server
}

// NewServer creates a new gRPC server
func NewServer(p *prover.Service, logger zerolog.Logger) *Server {
	return &Server{
		prover: p,
		logger: logger.With().Str("component", "grpc").Logger(),
		subs:   make(map[chan *receipt.Receipt]struct{}),
	}
}

// Start listens on address and serves until Stop is called
func (s *Server) Start(address string) error {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	return s.Serve(lis)
}

// Serve serves on an existing listener
func (s *Server) Serve(lis net.Listener) error {
	s.grpcServer = grpc.NewServer()
	RegisterProverServer(s.grpcServer, s)

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	return s.grpcServer.Serve(lis)
}

// Stop stops the gRPC server
func (s *Server) Stop() {
	if s.grpcServer != nil {
		s.grpcServer.GracefulStop()
	}
}

// recordStream adapts the Prove client stream to a blockchain.RecordSource
type recordStream struct {
	stream ProveStream
	read   uint32
}

func (r *recordStream) ReadCount(_ context.Context) (uint32, error) {
	m, err := r.stream.Recv()
	if errors.Is(err, io.EOF) {
		return 0, status.Error(codes.InvalidArgument, "missing header count")
	}
	if err != nil {
		return 0, err
	}

	if len(m.GetValue()) != stream.CountSize {
		return 0, status.Errorf(codes.InvalidArgument, "count message must be %d bytes, got %d", stream.CountSize, len(m.GetValue()))
	}

	return binary.LittleEndian.Uint32(m.GetValue()), nil
}

func (r *recordStream) ReadHeader(_ context.Context) ([]byte, error) {
	m, err := r.stream.Recv()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("stream ended after %d headers: %w", r.read, io.ErrUnexpectedEOF)
	}
	if err != nil {
		return nil, err
	}

	r.read++
	return m.GetValue(), nil
}

// Prove validates the streamed headers and replies with the sealed receipt
func (s *Server) Prove(ps ProveStream) error {
	r, err := s.prover.Prove(ps.Context(), &recordStream{stream: ps})
	if err != nil {
		return toStatus(err)
	}

	data, err := r.MarshalBinary()
	if err != nil {
		return status.Errorf(codes.Internal, "failed to marshal receipt: %v", err)
	}

	if err := ps.SendAndClose(wrapperspb.Bytes(data)); err != nil {
		return err
	}

	s.notifySubscribers(r)

	return nil
}

// Verify reports whether a receipt was sealed under this server's rule set
func (s *Server) Verify(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error) {
	var r receipt.Receipt
	if err := r.UnmarshalBinary(in.GetValue()); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "invalid receipt: %v", err)
	}

	if err := s.prover.Verify(ctx, &r); err != nil {
		s.logger.Debug().Err(err).Msg("receipt rejected")
		return wrapperspb.Bool(false), nil
	}

	return wrapperspb.Bool(true), nil
}

// Subscribe streams every receipt sealed after the call
func (s *Server) Subscribe(_ *emptypb.Empty, ss SubscribeStream) error {
	ch := make(chan *receipt.Receipt, subscriberBuffer)

	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	defer func() {
		s.subsMu.Lock()
		delete(s.subs, ch)
		s.subsMu.Unlock()
	}()

	// headers tell the client the subscription is registered
	if err := ss.SendHeader(metadata.Pairs("subscribed", "true")); err != nil {
		return err
	}

	for {
		select {
		case r := <-ch:
			data, err := r.MarshalBinary()
			if err != nil {
				return status.Errorf(codes.Internal, "failed to marshal receipt: %v", err)
			}
			if err := ss.Send(wrapperspb.Bytes(data)); err != nil {
				return err
			}
		case <-ss.Context().Done():
			return nil
		}
	}
}

func (s *Server) notifySubscribers(r *receipt.Receipt) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	for ch := range s.subs {
		select {
		case ch <- r:
		default:
			s.logger.Warn().Msg("subscriber lagging, receipt dropped")
		}
	}
}
