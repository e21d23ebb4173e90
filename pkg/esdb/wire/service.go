package wire

import (
	"context"

	"google.golang.org/grpc"
)

const (
	StreamsServiceName                 = "event_store.client.streams.Streams"
	PersistentSubscriptionsServiceName = "event_store.client.persistent_subscriptions.PersistentSubscriptions"
)

// callOptions make every stub independent of how the channel was dialed.
var callOptions = []grpc.CallOption{grpc.ForceCodec(Codec{})}

// ServerOption installs the wire codec on a gRPC server.
func ServerOption() grpc.ServerOption {
	return grpc.ForceServerCodec(Codec{})
}

//
// Streams
//

type StreamsClient interface {
	Read(ctx context.Context, in *ReadReq, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ReadResp], error)
	Append(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[AppendReq, AppendResp], error)
}

type streamsClient struct {
	cc grpc.ClientConnInterface
}

func NewStreamsClient(cc grpc.ClientConnInterface) StreamsClient {
	return &streamsClient{cc}
}

func (c *streamsClient) Read(ctx context.Context, in *ReadReq, opts ...grpc.CallOption) (grpc.ServerStreamingClient[ReadResp], error) {
	stream, err := c.cc.NewStream(ctx, &StreamsServiceDesc.Streams[0], "/"+StreamsServiceName+"/Read",
		append(callOptions, opts...)...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[ReadReq, ReadResp]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *streamsClient) Append(ctx context.Context, opts ...grpc.CallOption) (grpc.ClientStreamingClient[AppendReq, AppendResp], error) {
	stream, err := c.cc.NewStream(ctx, &StreamsServiceDesc.Streams[1], "/"+StreamsServiceName+"/Append",
		append(callOptions, opts...)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[AppendReq, AppendResp]{ClientStream: stream}, nil
}

type StreamsServer interface {
	Read(*ReadReq, grpc.ServerStreamingServer[ReadResp]) error
	Append(grpc.ClientStreamingServer[AppendReq, AppendResp]) error
}

func RegisterStreamsServer(s grpc.ServiceRegistrar, srv StreamsServer) {
	s.RegisterService(&StreamsServiceDesc, srv)
}

func streamsReadHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(ReadReq)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(StreamsServer).Read(m, &grpc.GenericServerStream[ReadReq, ReadResp]{ServerStream: stream})
}

func streamsAppendHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(StreamsServer).Append(&grpc.GenericServerStream[AppendReq, AppendResp]{ServerStream: stream})
}

var StreamsServiceDesc = grpc.ServiceDesc{
	ServiceName: StreamsServiceName,
	HandlerType: (*StreamsServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Read",
			Handler:       streamsReadHandler,
			ServerStreams: true,
		},
		{
			StreamName:    "Append",
			Handler:       streamsAppendHandler,
			ClientStreams: true,
		},
	},
	Metadata: "streams.proto",
}

//
// PersistentSubscriptions
//

type PersistentSubscriptionsClient interface {
	Create(ctx context.Context, in *CreateReq, opts ...grpc.CallOption) (*Empty, error)
	Update(ctx context.Context, in *UpdateReq, opts ...grpc.CallOption) (*Empty, error)
	Delete(ctx context.Context, in *DeleteReq, opts ...grpc.CallOption) (*Empty, error)
	GetInfo(ctx context.Context, in *GetInfoReq, opts ...grpc.CallOption) (*GetInfoResp, error)
	Read(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[PersistentReadReq, PersistentReadResp], error)
}

type persistentSubscriptionsClient struct {
	cc grpc.ClientConnInterface
}

func NewPersistentSubscriptionsClient(cc grpc.ClientConnInterface) PersistentSubscriptionsClient {
	return &persistentSubscriptionsClient{cc}
}

func (c *persistentSubscriptionsClient) invoke(ctx context.Context, method string, in, out Message,
	opts []grpc.CallOption) error {
	return c.cc.Invoke(ctx, "/"+PersistentSubscriptionsServiceName+"/"+method, in, out, append(callOptions, opts...)...)
}

func (c *persistentSubscriptionsClient) Create(ctx context.Context, in *CreateReq, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Create", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *persistentSubscriptionsClient) Update(ctx context.Context, in *UpdateReq, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Update", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *persistentSubscriptionsClient) Delete(ctx context.Context, in *DeleteReq, opts ...grpc.CallOption) (*Empty, error) {
	out := new(Empty)
	if err := c.invoke(ctx, "Delete", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *persistentSubscriptionsClient) GetInfo(ctx context.Context, in *GetInfoReq, opts ...grpc.CallOption) (*GetInfoResp, error) {
	out := new(GetInfoResp)
	if err := c.invoke(ctx, "GetInfo", in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *persistentSubscriptionsClient) Read(ctx context.Context, opts ...grpc.CallOption) (grpc.BidiStreamingClient[PersistentReadReq, PersistentReadResp], error) {
	stream, err := c.cc.NewStream(ctx, &PersistentSubscriptionsServiceDesc.Streams[0],
		"/"+PersistentSubscriptionsServiceName+"/Read", append(callOptions, opts...)...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[PersistentReadReq, PersistentReadResp]{ClientStream: stream}, nil
}

type PersistentSubscriptionsServer interface {
	Create(context.Context, *CreateReq) (*Empty, error)
	Update(context.Context, *UpdateReq) (*Empty, error)
	Delete(context.Context, *DeleteReq) (*Empty, error)
	GetInfo(context.Context, *GetInfoReq) (*GetInfoResp, error)
	Read(grpc.BidiStreamingServer[PersistentReadReq, PersistentReadResp]) error
}

func RegisterPersistentSubscriptionsServer(s grpc.ServiceRegistrar, srv PersistentSubscriptionsServer) {
	s.RegisterService(&PersistentSubscriptionsServiceDesc, srv)
}

// unaryHandler adapts a typed unary method to a grpc.MethodDesc handler.
func unaryHandler[Req any, PReq interface {
	*Req
	Message
}, Resp Message](method string, call func(srv PersistentSubscriptionsServer, ctx context.Context, in PReq) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error,
			interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(PersistentSubscriptionsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + PersistentSubscriptionsServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(PersistentSubscriptionsServer), ctx, req.(PReq))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func persistentReadHandler(srv interface{}, stream grpc.ServerStream) error {
	return srv.(PersistentSubscriptionsServer).Read(
		&grpc.GenericServerStream[PersistentReadReq, PersistentReadResp]{ServerStream: stream})
}

var PersistentSubscriptionsServiceDesc = grpc.ServiceDesc{
	ServiceName: PersistentSubscriptionsServiceName,
	HandlerType: (*PersistentSubscriptionsServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Create", PersistentSubscriptionsServer.Create),
		unaryHandler("Update", PersistentSubscriptionsServer.Update),
		unaryHandler("Delete", PersistentSubscriptionsServer.Delete),
		unaryHandler("GetInfo", PersistentSubscriptionsServer.GetInfo),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Read",
			Handler:       persistentReadHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "persistent.proto",
}
