package cdcrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// WatermarkService is the interface grpc.ServiceDesc dispatches to,
// named the way the teacher names its own hand-rolled TinySQLServer
// interface (cmd/server/main.go) rather than a protoc-generated one.
type WatermarkService interface {
	Watermarks(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

// RegisterWatermarkService wires srv into s under the
// "reifydb.cdc.WatermarkService" name, mirroring the teacher's
// registerTinySQLServer: a manually-built grpc.ServiceDesc plus a
// method handler, with no protoc-generated _grpc.pb.go in the loop.
func RegisterWatermarkService(s *grpc.Server, srv WatermarkService) {
	s.RegisterService(&grpc.ServiceDesc{
		ServiceName: "reifydb.cdc.WatermarkService",
		HandlerType: (*WatermarkService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "Watermarks", Handler: _WatermarkService_Watermarks_Handler},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "cdcrpc",
	}, srv)
}

func _WatermarkService_Watermarks_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(WatermarkService).Watermarks(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/reifydb.cdc.WatermarkService/Watermarks"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(WatermarkService).Watermarks(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}
