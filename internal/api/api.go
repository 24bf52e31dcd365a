package api

import (
	"context"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/tcfw/chainprover/pkg/leader"
	"github.com/tcfw/chainprover/pkg/storage"
)

type APIHandler interface {
	Setup(*Api) error
	Desc() *grpc.ServiceDesc
}

var (
	reg = []func() APIHandler{}
)

type BaseHandler struct {
	a *Api
}

func (b *BaseHandler) Setup(a *Api) error {
	b.a = a
	return nil
}

type Option func(*Api)

func WithLogger(l *logrus.Logger) Option {
	return func(a *Api) {
		a.logger = l
	}
}

// WithOutputDir also writes every proof served to dir
func WithOutputDir(dir string) Option {
	return func(a *Api) {
		a.outputDir = dir
	}
}

type Api struct {
	p     *leader.Prover
	store storage.ProofStore
	g     *grpc.Server

	outputDir string
	logger    *logrus.Logger
}

func NewAPI(p *leader.Prover, store storage.ProofStore, opts ...Option) (*Api, error) {
	a := &Api{
		p:      p,
		store:  store,
		g:      newGRPCServer(),
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(a)
	}

	for _, newHandler := range reg {
		s := newHandler()
		a.g.RegisterService(s.Desc(), s)
		if err := s.Setup(a); err != nil {
			return nil, errors.Wrap(err, "registering service")
		}
	}

	return a, nil
}

func (a *Api) ListenAndServe(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	return a.Serve(lis)
}

func (a *Api) Serve(lis net.Listener) error {
	a.logger.WithField("addr", lis.Addr().String()).Info("serving api")

	return a.g.Serve(lis)
}

func (a *Api) Shutdown(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		a.g.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		a.g.Stop()
	}

	return nil
}
