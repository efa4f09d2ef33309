package cdcrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// FetchWatermarks dials addr and invokes WatermarkService.Watermarks,
// the same plain grpc.Dial-and-Invoke shape as the teacher's
// grpcQuery helper (cmd/server/main.go), but against the default proto
// codec instead of the teacher's custom JSON codec since
// emptypb.Empty/structpb.Struct already round-trip through it without
// help.
func FetchWatermarks(ctx context.Context, addr string) (*structpb.Struct, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	out := new(structpb.Struct)
	if err := conn.Invoke(ctx, "/reifydb.cdc.WatermarkService/Watermarks", &emptypb.Empty{}, out); err != nil {
		return nil, err
	}
	return out, nil
}
