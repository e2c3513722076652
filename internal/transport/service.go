package transport

import (
	"context"

	"google.golang.org/grpc"

	"dotclock/internal/codec"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "dotclock.Clock"

// Full method names, as they appear in grpc.UnaryServerInfo.
const (
	SyncMethod = "/" + ServiceName + "/Sync"
	SeenMethod = "/" + ServiceName + "/Seen"
	PutMethod  = "/" + ServiceName + "/Put"
	GetMethod  = "/" + ServiceName + "/Get"
)

// ClockServer is the server API for the dotclock.Clock service.
type ClockServer interface {
	// Sync merges the caller's clock and answers with the merged clock.
	Sync(context.Context, *codec.SyncRequest) (*codec.SyncReply, error)
	// Seen reports whether the server clock has observed a dot.
	Seen(context.Context, *codec.SeenRequest) (*codec.SeenReply, error)
	// Put writes a value under a causal context.
	Put(context.Context, *codec.PutRequest) (*codec.PutReply, error)
	// Get reads the siblings stored under a key.
	Get(context.Context, *codec.GetRequest) (*codec.GetReply, error)
}

// RegisterClockServer registers srv on s.
func RegisterClockServer(s grpc.ServiceRegistrar, srv ClockServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the dotclock.Clock service.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ClockServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Sync", Handler: syncHandler},
		{MethodName: "Seen", Handler: seenHandler},
		{MethodName: "Put", Handler: putHandler},
		{MethodName: "Get", Handler: getHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "dotclock/clock",
}

func syncHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(codec.SyncRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServer).Sync(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SyncMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClockServer).Sync(ctx, req.(*codec.SyncRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func seenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(codec.SeenRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServer).Seen(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: SeenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClockServer).Seen(ctx, req.(*codec.SeenRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func putHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(codec.PutRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServer).Put(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PutMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClockServer).Put(ctx, req.(*codec.PutRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(codec.GetRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClockServer).Get(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: GetMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ClockServer).Get(ctx, req.(*codec.GetRequest))
	}
	return interceptor(ctx, in, info, handler)
}
