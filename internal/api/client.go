package api

import (
	"context"

	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type Client struct {
	cc *grpc.ClientConn
}

func (a *Client) Close() error {
	return a.cc.Close()
}

func (a *Client) Prove(ctx context.Context, req *ProveRequest) (*ProveResponse, error) {
	resp := &ProveResponse{}
	if err := a.cc.Invoke(ctx, proveMethod, req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func (a *Client) Latest(ctx context.Context) (*ProveResponse, error) {
	resp := &ProveResponse{}
	if err := a.cc.Invoke(ctx, latestMethod, &LatestRequest{}, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(msgpackCodec{})),
	}, opts...)

	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to prover")
	}

	return &Client{cc: cc}, nil
}
