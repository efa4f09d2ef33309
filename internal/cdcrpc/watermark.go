// Package cdcrpc exposes CDC shard-watermark introspection over gRPC:
// one unary RPC an operator (or cmd/reifydb cdc-status) can poll to see
// how far each commitlog.Dispatcher shard has drained: the global
// watermark plus each shard's watermark and state. Modeled on the teacher's
// cmd/server/main.go, which registers its gRPC service by hand
// (registerTinySQLServer/grpc.ServiceDesc) rather than through
// protoc-generated stubs; this package does the same, but uses the
// well-known emptypb/structpb message types in place of a hand-rolled
// request/response pair so there is still a real proto.Message wire
// format without checking in generated code.
package cdcrpc

import (
	"context"

	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"reifydb/internal/commitlog"
)

// WatermarkProvider is the minimal surface of commitlog.Dispatcher this
// service needs, kept as an interface so tests can fake shard state
// without standing up a real CDC backend.
type WatermarkProvider interface {
	GlobalWatermark() uint64
	ShardWatermarks() []uint64
	ShardStates() []string
}

var _ WatermarkProvider = (*commitlog.Dispatcher)(nil)

// WatermarkServer implements WatermarkService against a live
// WatermarkProvider.
type WatermarkServer struct {
	provider WatermarkProvider
}

func NewWatermarkServer(provider WatermarkProvider) *WatermarkServer {
	return &WatermarkServer{provider: provider}
}

// Watermarks reports the dispatcher's global watermark plus each
// shard's individual watermark and batching state, shaped as a
// structpb.Struct so the wire schema needs no dedicated .proto message:
//
//	{
//	  "global_watermark": <uint64 as number>,
//	  "shards": [{"shard": <index>, "watermark": <uint64>, "state": "idle"|"batching"|"processing"}, ...]
//	}
func (s *WatermarkServer) Watermarks(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	watermarks := s.provider.ShardWatermarks()
	states := s.provider.ShardStates()

	shards := make([]*structpb.Value, len(watermarks))
	for i, wm := range watermarks {
		state := ""
		if i < len(states) {
			state = states[i]
		}
		shards[i] = structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"shard":     structpb.NewNumberValue(float64(i)),
				"watermark": structpb.NewNumberValue(float64(wm)),
				"state":     structpb.NewStringValue(state),
			},
		})
	}

	return &structpb.Struct{
		Fields: map[string]*structpb.Value{
			"global_watermark": structpb.NewNumberValue(float64(s.provider.GlobalWatermark())),
			"shards":           structpb.NewListValue(&structpb.ListValue{Values: shards}),
		},
	}, nil
}
