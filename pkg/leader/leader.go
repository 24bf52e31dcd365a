package leader

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/chainprover/internal/metrics"
	"github.com/tcfw/chainprover/pkg/aggregation"
	"github.com/tcfw/chainprover/pkg/chain"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/trace"
)

type Config struct {
	MaxCPULenLog     int
	BatchSize        int
	SegmentsInFlight int
	TxnsInFlight     int
	BlocksInFlight   int

	// TestOnly only replays segment execution and emits dummy proofs
	TestOnly bool

	Debug ops.Debug
}

type Option func(*Prover)

func WithLogger(l *logrus.Logger) Option {
	return func(p *Prover) {
		p.logger = l
	}
}

// Prover drives blocks through the aggregation tree and chains their proofs
type Prover struct {
	rt     runtime.Runtime
	cfg    Config
	tree   *aggregation.Tree
	linker *chain.Linker
	logger *logrus.Logger
}

// BlockResult is the outcome of proving one block of a range
type BlockResult struct {
	Number uint64
	Proof  *proof.BlockProof
	Err    error
}

func New(rt runtime.Runtime, cfg Config, opts ...Option) *Prover {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if cfg.BlocksInFlight < 1 {
		cfg.BlocksInFlight = 1
	}

	p := &Prover{
		rt:     rt,
		cfg:    cfg,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.tree = aggregation.New(rt, aggregation.Config{
		MaxCPULenLog:     cfg.MaxCPULenLog,
		SegmentsInFlight: cfg.SegmentsInFlight,
		TxnsInFlight:     cfg.TxnsInFlight,
		Debug:            cfg.Debug,
	}, aggregation.WithLogger(p.logger))

	p.linker = chain.NewLinker(rt, chain.WithLogger(p.logger), chain.WithDebug(cfg.Debug))

	return p
}

// ProveBlock proves a single block. Transactions are proven without waiting
// on prev; only the final linking step does. Any failure cancels the rest of
// this block's work.
func (p *Prover) ProveBlock(ctx context.Context, in *BlockProverInput, prev *chain.Handoff) (*proof.BlockProof, error) {
	start := time.Now()

	bp, err := p.proveBlock(ctx, in, prev)
	metrics.ObserveBlock(time.Since(start), err)

	return bp, err
}

func (p *Prover) proveBlock(ctx context.Context, in *BlockProverInput, prev *chain.Handoff) (*proof.BlockProof, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n, err := in.BlockNumber()
	if err != nil {
		return nil, err
	}

	l := p.logger.WithField("block", n)

	inputs, err := trace.Decode(&in.BlockTrace, &in.OtherData, p.cfg.BatchSize)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding block %d", n)
	}

	l.WithField("txns", len(in.BlockTrace.Txns)).WithField("batches", len(inputs)).Info("proving block")

	if p.cfg.TestOnly {
		return p.simulateBlock(ctx, n, inputs, prev)
	}

	agg, err := p.tree.ProveBlockTxns(ctx, inputs)
	if err != nil {
		l.WithError(err).Error("failed to aggregate block txns")
		return nil, errors.Wrapf(err, "block %d", n)
	}

	bp, err := p.linker.Link(ctx, n, prev, agg)
	if err != nil {
		l.WithError(err).Error("failed to link block proof")
		return nil, err
	}

	l.Info("proved block")

	return bp, nil
}

func (p *Prover) simulateBlock(ctx context.Context, n uint64, inputs []*trace.TxnProofInput, prev *chain.Handoff) (*proof.BlockProof, error) {
	s := runtime.MapFunc(ctx, runtime.SliceIter(inputs), func(ctx context.Context, _ int, in *trace.TxnProofInput) (int, error) {
		it, err := p.tree.Segments(in)
		if err != nil {
			return 0, err
		}

		segs, err := runtime.Collect(runtime.Map[ops.SegmentInput, trace.Registers](ctx, p.rt, &ops.SegmentSimulation{Debug: p.cfg.Debug}, it))
		if err != nil {
			return 0, errors.Wrapf(err, "txn %d", in.TxnIndex)
		}

		return len(segs), nil
	}, runtime.WithLimit(p.cfg.TxnsInFlight))

	counts, err := runtime.Collect(s)
	if err != nil {
		return nil, errors.Wrapf(err, "simulating block %d", n)
	}

	var total int
	for _, c := range counts {
		total += c
	}

	if prev != nil {
		if _, err := prev.Await(ctx); err != nil {
			return nil, errors.Wrapf(chain.ErrChainLinkage, "block %d: previous proof unavailable: %s", n, err)
		}
	}

	c, err := prover.Global()
	if err != nil {
		return nil, err
	}

	p.logger.WithField("block", n).WithField("segments", total).Info("simulated block")

	return &proof.BlockProof{Height: n, Intern: c.Dummy(), PV: proof.PublicValues{BlockNumber: n}}, nil
}

// ProveRange proves blocks in order, overlapping the proving of up to
// BlocksInFlight blocks. Each block's proof is handed to the next block for
// linking. Results reach sink in block order. After the first failure no new
// blocks are started and the first failure is returned.
func (p *Prover) ProveRange(ctx context.Context, it runtime.Iterator[*BlockProverInput], prev *proof.BlockProof, sink func(BlockResult) error) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()

	sem := make(chan struct{}, p.cfg.BlocksInFlight)
	results := make(chan chan BlockResult, p.cfg.BlocksInFlight)

	go func() {
		defer close(results)

		handoff := chain.Resolved(prev)

		var expected uint64
		if prev != nil {
			expected = prev.Height + 1
		}

		fail := func(n uint64, err error) {
			<-sem
			stopFeed()
			resCh := make(chan BlockResult, 1)
			resCh <- BlockResult{Number: n, Err: err}
			results <- resCh
		}

		for {
			select {
			case sem <- struct{}{}:
			case <-feedCtx.Done():
				return
			}

			if feedCtx.Err() != nil {
				<-sem
				return
			}

			in, err := it.Next()
			if err == io.EOF {
				<-sem
				return
			} else if err != nil {
				if c, ok := it.(interface{ Cursor() uint64 }); ok {
					expected = c.Cursor()
				}
				fail(expected, err)
				return
			}

			n, err := in.BlockNumber()
			if err != nil {
				fail(expected, err)
				return
			}
			expected = n + 1

			resCh := make(chan BlockResult, 1)
			next := chain.NewHandoff()

			wg.Add(1)
			go func(in *BlockProverInput, prev *chain.Handoff) {
				defer wg.Done()

				bp, err := p.ProveBlock(ctx, in, prev)
				if err != nil {
					stopFeed()
				}
				next.Publish(bp, err)
				resCh <- BlockResult{Number: n, Proof: bp, Err: err}
				<-sem
			}(in, handoff)

			handoff = next

			// results holds BlocksInFlight entries and is always drained
			results <- resCh
		}
	}()

	var firstErr error

	for resCh := range results {
		r := <-resCh

		if r.Err != nil && firstErr == nil {
			firstErr = r.Err
			stopFeed()
		}

		if err := sink(r); err != nil {
			cancel()
			for range results {
			}
			return errors.Wrap(err, "handling block result")
		}
	}

	return firstErr
}
