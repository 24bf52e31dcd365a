package api

import (
	grpc_recovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc"
)

const codecName = "msgpack"

// msgpackCodec carries the plain Go request and response types over gRPC
type msgpackCodec struct{}

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling message")
	}

	return b, nil
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

func (msgpackCodec) Name() string {
	return codecName
}

func newGRPCServer() *grpc.Server {
	streamInterceptors := []grpc.StreamServerInterceptor{
		grpc_recovery.StreamServerInterceptor(),
	}
	unaryInterceptors := []grpc.UnaryServerInterceptor{
		grpc_recovery.UnaryServerInterceptor(),
	}

	return grpc.NewServer(
		grpc.ForceServerCodec(msgpackCodec{}),
		grpc.ChainStreamInterceptor(streamInterceptors...),
		grpc.ChainUnaryInterceptor(unaryInterceptors...),
	)
}
