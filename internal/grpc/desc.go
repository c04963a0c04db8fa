package grpc

import (
	"context"

	"google.golang.org/grpc"
)

// Fully qualified method names of the arbiter.v1.Arbiter service.
const (
	ServiceName        = "arbiter.v1.Arbiter"
	SimulateMethod     = "/" + ServiceName + "/Simulate"
	VerifyMethod       = "/" + ServiceName + "/Verify"
	StreamEventsMethod = "/" + ServiceName + "/StreamEvents"
)

// ArbiterServer is the server API for the arbiter.v1.Arbiter service.
type ArbiterServer interface {
	Simulate(context.Context, *SimulateRequest) (*SimulateResponse, error)
	Verify(context.Context, *VerifyRequest) (*VerifyResponse, error)
	StreamEvents(*StreamEventsRequest, grpc.ServerStreamingServer[EventBatch]) error
}

// RegisterArbiterServer attaches srv to a gRPC server.
func RegisterArbiterServer(registrar grpc.ServiceRegistrar, srv ArbiterServer) {
	registrar.RegisterService(&ArbiterServiceDesc, srv)
}

func simulateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(SimulateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArbiterServer).Simulate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SimulateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArbiterServer).Simulate(ctx, req.(*SimulateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func verifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(VerifyRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ArbiterServer).Verify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: VerifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ArbiterServer).Verify(ctx, req.(*VerifyRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func streamEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(StreamEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ArbiterServer).StreamEvents(in, &grpc.GenericServerStream[StreamEventsRequest, EventBatch]{ServerStream: stream})
}

// ArbiterServiceDesc describes arbiter.v1.Arbiter for grpc.Server.RegisterService.
var ArbiterServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ArbiterServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Simulate", Handler: simulateHandler},
		{MethodName: "Verify", Handler: verifyHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "StreamEvents", Handler: streamEventsHandler, ServerStreams: true},
	},
	Metadata: "arbiter/v1/arbiter",
}

// Client calls the arbiter.v1.Arbiter service with the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func withCodec(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

// Simulate resolves one round remotely.
func (c *Client) Simulate(ctx context.Context, in *SimulateRequest, opts ...grpc.CallOption) (*SimulateResponse, error) {
	out := new(SimulateResponse)
	if err := c.cc.Invoke(ctx, SimulateMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// Verify checks a claimed commitment remotely.
func (c *Client) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*VerifyResponse, error) {
	out := new(VerifyResponse)
	if err := c.cc.Invoke(ctx, VerifyMethod, in, out, withCodec(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// StreamEvents opens the server stream of event batches.
func (c *Client) StreamEvents(ctx context.Context, in *StreamEventsRequest, opts ...grpc.CallOption) (grpc.ServerStreamingClient[EventBatch], error) {
	stream, err := c.cc.NewStream(ctx, &ArbiterServiceDesc.Streams[0], StreamEventsMethod, withCodec(opts)...)
	if err != nil {
		return nil, err
	}
	client := &grpc.GenericClientStream[StreamEventsRequest, EventBatch]{ClientStream: stream}
	if err := client.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := client.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return client, nil
}
