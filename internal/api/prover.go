package api

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tcfw/chainprover/internal/proofio"
	"github.com/tcfw/chainprover/pkg/chain"
	"github.com/tcfw/chainprover/pkg/leader"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/storage"
	"github.com/tcfw/chainprover/pkg/trace"
)

func init() {
	reg = append(reg, func() APIHandler { return &proverApi{} })
}

const (
	proverServiceName = "chainprover.v1.Prover"

	proveMethod  = "/" + proverServiceName + "/Prove"
	latestMethod = "/" + proverServiceName + "/Latest"
)

type ProveRequest struct {
	Input *leader.BlockProverInput `msgpack:"i"`

	// Previous is the proof to chain onto. When nil and UseStored is set the
	// stored proof of the parent block is used.
	Previous  *proof.BlockProof `msgpack:"p,omitempty"`
	UseStored bool              `msgpack:"s"`
}

type ProveResponse struct {
	Proof *proof.BlockProof `msgpack:"p"`
	ID    string            `msgpack:"id"`
}

type LatestRequest struct{}

type ProverServer interface {
	Prove(context.Context, *ProveRequest) (*ProveResponse, error)
	Latest(context.Context, *LatestRequest) (*ProveResponse, error)
}

var Prover_ServiceDesc = grpc.ServiceDesc{
	ServiceName: proverServiceName,
	HandlerType: (*ProverServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Prove",
			Handler:    proveHandler,
		},
		{
			MethodName: "Latest",
			Handler:    latestHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chainprover/v1/prover",
}

func proveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ProveRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServer).Prove(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: proveMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServer).Prove(ctx, req.(*ProveRequest))
	}

	return interceptor(ctx, in, info, handler)
}

func latestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(LatestRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ProverServer).Latest(ctx, in)
	}

	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: latestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ProverServer).Latest(ctx, req.(*LatestRequest))
	}

	return interceptor(ctx, in, info, handler)
}

type proverApi struct {
	BaseHandler
}

func (pa *proverApi) Desc() *grpc.ServiceDesc {
	return &Prover_ServiceDesc
}

func (pa *proverApi) Prove(ctx context.Context, req *ProveRequest) (*ProveResponse, error) {
	if req.Input == nil {
		return nil, status.Error(codes.InvalidArgument, "missing prover input")
	}

	n, err := req.Input.BlockNumber()
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	l := pa.a.logger.WithField("block", n)

	prev := req.Previous
	if prev == nil && req.UseStored {
		prev, err = storage.PreviousProof(ctx, pa.a.store, n)
		if err != nil {
			return nil, status.Error(codes.Internal, errors.Wrap(err, "loading previous proof").Error())
		}
	}

	bp, err := pa.a.p.ProveBlock(ctx, req.Input, chain.Resolved(prev))
	if err != nil {
		l.WithError(err).Error("proving block")
		return nil, status.Error(errorCode(err), err.Error())
	}

	resp := &ProveResponse{Proof: bp}

	id, err := pa.a.store.PutProof(ctx, bp)
	if err != nil {
		l.WithError(err).Error("storing proof")
		return nil, status.Error(codes.Internal, errors.Wrap(err, "storing proof").Error())
	}
	resp.ID = id.String()

	if pa.a.outputDir != "" {
		if _, err := proofio.Write(pa.a.outputDir, nil, bp); err != nil {
			l.WithError(err).Error("writing proof file")
		}
	}

	return resp, nil
}

func (pa *proverApi) Latest(ctx context.Context, _ *LatestRequest) (*ProveResponse, error) {
	bp, err := pa.a.store.Latest(ctx)
	if err == storage.ErrNotFound {
		return nil, status.Error(codes.NotFound, "no proofs stored")
	} else if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	_, id, err := storage.EncodeProof(bp)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &ProveResponse{Proof: bp, ID: id.String()}, nil
}

func errorCode(err error) codes.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, chain.ErrChainLinkage), errors.Is(err, trace.ErrBlockNumberOverflow):
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
