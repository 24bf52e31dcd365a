package cli

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/tcfw/chainprover/internal/config"
	"github.com/tcfw/chainprover/internal/metrics"
	"github.com/tcfw/chainprover/internal/node"
	internalStorage "github.com/tcfw/chainprover/internal/storage"
	"github.com/tcfw/chainprover/internal/utils/logging"
	"github.com/tcfw/chainprover/pkg/leader"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/prover/hashprover"
	"github.com/tcfw/chainprover/pkg/prover/snark"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/storage"
)

// state is everything a proving command needs, built from config
type state struct {
	rt     runtime.Runtime
	store  storage.ProofStore
	prover *leader.Prover

	closers []func() error
}

func initCapability(cfg *config.Config) error {
	var c prover.Capability

	switch cfg.Prover().Backend {
	case config.BackendGroth16:
		p, err := snark.New(
			snark.WithPersistence(snark.Persistence(cfg.Prover().Persistence), cfg.Prover().KeyDir),
			snark.WithLogger(logging.Logger()),
		)
		if err != nil {
			return errors.Wrap(err, "setting up groth16 prover")
		}
		c = p
	default:
		c = hashprover.New()
	}

	return prover.Init(c)
}

func newRegistry() *runtime.Registry {
	reg := runtime.NewRegistry()
	ops.Register(reg)
	return reg
}

func openStore(cfg *config.Config) (storage.ProofStore, error) {
	switch cfg.Storage().Kind {
	case config.StoragePebble:
		return internalStorage.NewPebbleStore(cfg.Storage().Dir)
	default:
		return storage.NewMemStore(), nil
	}
}

func newRuntime(ctx context.Context, cfg *config.Config) (runtime.Runtime, func() error, error) {
	if cfg.Runtime().Mode == config.RuntimeP2P {
		n, err := node.NewNode(ctx, cfg.P2P(), node.WithLogger(logging.Logger()))
		if err != nil {
			return nil, nil, errors.Wrap(err, "initing node")
		}

		d, err := node.DialWorkers(ctx, n, cfg.Runtime().Peers)
		if err != nil {
			n.Close()
			return nil, nil, errors.Wrap(err, "connecting to workers")
		}

		logging.Entry().WithField("workers", d.Workers()).Info("dispatching to remote workers")

		return d, n.Close, nil
	}

	if err := initCapability(cfg); err != nil {
		return nil, nil, err
	}

	rt := runtime.NewInMemory(newRegistry(), cfg.Runtime().Workers, runtime.WithLogger(logging.Logger()))

	return rt, func() error { return nil }, nil
}

func buildState(ctx context.Context, cfg *config.Config) (*state, error) {
	s := &state{}

	store, err := openStore(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "opening store")
	}
	s.store = store
	s.closers = append(s.closers, store.Close)

	rt, closeRt, err := newRuntime(ctx, cfg)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.rt = rt
	s.closers = append(s.closers, rt.Close, closeRt)

	if cfg.Runtime().Mode == config.RuntimeP2P && cfg.Proving().TestOnly {
		// test only blocks end in a dummy proof made locally
		if err := prover.Init(hashprover.New()); err != nil && err != prover.ErrAlreadyInitialized {
			s.Close()
			return nil, err
		}
	}

	if addr := cfg.API().MetricsListen; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}

		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logging.WithError(err).Error("serving metrics")
			}
		}()

		s.closers = append(s.closers, srv.Close)
	}

	p := cfg.Proving()
	s.prover = leader.New(rt, leader.Config{
		MaxCPULenLog:     p.MaxCPULenLog,
		BatchSize:        p.BatchSize,
		SegmentsInFlight: p.SegmentsInFlight,
		TxnsInFlight:     p.TxnsInFlight,
		BlocksInFlight:   p.BlocksInFlight,
		TestOnly:         p.TestOnly,
		Debug: ops.Debug{
			SaveInputsOnError: p.SaveInputsOnError,
			Dir:               p.DebugDir,
		},
	}, leader.WithLogger(logging.Logger()))

	return s, nil
}

// Close releases resources in reverse order of acquisition
func (s *state) Close() error {
	var first error

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && first == nil {
			first = err
		}
	}

	return first
}
