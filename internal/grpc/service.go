package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "headerproof.v1.Prover"

const (
	proveMethod     = "/" + ServiceName + "/Prove"
	verifyMethod    = "/" + ServiceName + "/Verify"
	subscribeMethod = "/" + ServiceName + "/Subscribe"
)

// ProverServer is the server API for the Prover service.
//
// Prove is client streaming: the first message carries the 4-byte little-endian
// header count, every following message one 80-byte header. The reply is a
// marshalled receipt. Verify takes a marshalled receipt. Subscribe streams every
// receipt the server seals from then on.
type ProverServer interface {
	Prove(ProveStream) error
	Verify(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
	Subscribe(*emptypb.Empty, SubscribeStream) error
}

type ProveStream interface {
	Recv() (*wrapperspb.BytesValue, error)
	SendAndClose(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type proveStream struct {
	grpc.ServerStream
}

func (x *proveStream) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ServerStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (x *proveStream) SendAndClose(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

type SubscribeStream interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type subscribeStream struct {
	grpc.ServerStream
}

func (x *subscribeStream) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

func proveHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(ProverServer).Prove(&proveStream{stream})
}

func verifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: verifyMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServer).Verify(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(emptypb.Empty)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(ProverServer).Subscribe(m, &subscribeStream{stream})
}

// ProverServiceDesc describes the Prover service for grpc.Server.RegisterService
var ProverServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Verify",
			Handler:    verifyHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Prove",
			Handler:       proveHandler,
			ClientStreams: true,
		},
		{
			StreamName:    "Subscribe",
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "headerproof/v1/prover.proto",
}

// RegisterProverServer registers srv with s
func RegisterProverServer(s grpc.ServiceRegistrar, srv ProverServer) {
	s.RegisterService(&ProverServiceDesc, srv)
}
