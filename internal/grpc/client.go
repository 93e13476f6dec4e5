package grpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/yourusername/headerproof/internal/blockchain"
	"github.com/yourusername/headerproof/internal/receipt"
	"github.com/yourusername/headerproof/internal/stream"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls a remote Prover service
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to target. Without options the connection is plaintext.
func Dial(ctx context.Context, target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}

	conn, err := grpc.DialContext(ctx, target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}

	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Prove streams every header from src to the server and returns its receipt.
// Rule violations come back as errors matching the consensus sentinels.
func (c *Client) Prove(ctx context.Context, src blockchain.RecordSource) (*receipt.Receipt, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cs, err := c.conn.NewStream(ctx, &ProverServiceDesc.Streams[0], proveMethod)
	if err != nil {
		return nil, fromStatus(err)
	}

	count, err := src.ReadCount(ctx)
	if err != nil {
		return nil, err
	}

	var buf [stream.CountSize]byte
	binary.LittleEndian.PutUint32(buf[:], count)

	// io.EOF from SendMsg means the server already answered; RecvMsg returns its status
	sendErr := cs.SendMsg(wrapperspb.Bytes(buf[:]))
	for i := uint32(0); i < count && sendErr == nil; i++ {
		raw, err := src.ReadHeader(ctx)
		if err != nil {
			return nil, err
		}
		sendErr = cs.SendMsg(wrapperspb.Bytes(raw))
	}
	if sendErr != nil && !errors.Is(sendErr, io.EOF) {
		return nil, fromStatus(sendErr)
	}

	if err := cs.CloseSend(); err != nil {
		return nil, fromStatus(err)
	}

	reply := new(wrapperspb.BytesValue)
	if err := cs.RecvMsg(reply); err != nil {
		return nil, fromStatus(err)
	}

	var r receipt.Receipt
	if err := r.UnmarshalBinary(reply.GetValue()); err != nil {
		return nil, err
	}

	return &r, nil
}

// Verify asks the server whether r was sealed under its rule set
func (c *Client) Verify(ctx context.Context, r *receipt.Receipt) (bool, error) {
	data, err := r.MarshalBinary()
	if err != nil {
		return false, err
	}

	out := new(wrapperspb.BoolValue)
	if err := c.conn.Invoke(ctx, verifyMethod, wrapperspb.Bytes(data), out); err != nil {
		return false, fromStatus(err)
	}

	return out.GetValue(), nil
}

// Subscription receives receipts sealed by the server
type Subscription struct {
	cs grpc.ClientStream
}

// Subscribe returns once the server has registered the subscription
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	cs, err := c.conn.NewStream(ctx, &ProverServiceDesc.Streams[1], subscribeMethod)
	if err != nil {
		return nil, err
	}

	if err := cs.SendMsg(&emptypb.Empty{}); err != nil {
		return nil, err
	}
	if err := cs.CloseSend(); err != nil {
		return nil, err
	}

	if _, err := cs.Header(); err != nil {
		return nil, err
	}

	return &Subscription{cs: cs}, nil
}

// Recv blocks for the next receipt
func (s *Subscription) Recv() (*receipt.Receipt, error) {
	m := new(wrapperspb.BytesValue)
	if err := s.cs.RecvMsg(m); err != nil {
		return nil, err
	}

	var r receipt.Receipt
	if err := r.UnmarshalBinary(m.GetValue()); err != nil {
		return nil, err
	}

	return &r, nil
}
