package aggregation

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
)

type Config struct {
	MaxCPULenLog int
	// SegmentsInFlight bounds how far ahead of proving the segment source is pulled
	SegmentsInFlight int
	TxnsInFlight     int
	Debug            ops.Debug
}

type Option func(*Tree)

func WithLogger(l *logrus.Logger) Option {
	return func(t *Tree) {
		t.logger = l
	}
}

// Tree reduces segment proofs into transaction proofs and transaction
// proofs into a single block aggregate
type Tree struct {
	rt     runtime.Runtime
	cfg    Config
	logger *logrus.Logger
}

func New(rt runtime.Runtime, cfg Config, opts ...Option) *Tree {
	t := &Tree{
		rt:     rt,
		cfg:    cfg,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

type segmentIter struct {
	input *trace.TxnProofInput
	src   *segment.Source
}

func (s *segmentIter) Next() (ops.SegmentInput, error) {
	d, err := s.src.Next()
	if err != nil {
		return ops.SegmentInput{}, err
	}

	return ops.SegmentInput{Txn: s.input, Segment: d}, nil
}

// Segments returns a lazy iterator over a transaction's segments
func (t *Tree) Segments(input *trace.TxnProofInput) (runtime.Iterator[ops.SegmentInput], error) {
	src, err := segment.NewSource(input, t.cfg.MaxCPULenLog)
	if err != nil {
		return nil, runtime.Fatal(err, runtime.Terminate)
	}

	return &segmentIter{input: input, src: src}, nil
}

// ProveTxn proves every segment of a transaction in parallel and folds them
// in segment order. The result is always an aggregate, a lone segment is
// combined with itself.
func (t *Tree) ProveTxn(ctx context.Context, input *trace.TxnProofInput) (*proof.SegmentAggProof, error) {
	it, err := t.Segments(input)
	if err != nil {
		return nil, err
	}

	s := runtime.Map[ops.SegmentInput, proof.SegmentAggregatable](ctx, t.rt,
		&ops.SegmentProof{Debug: t.cfg.Debug}, &fatalIter[ops.SegmentInput]{it},
		runtime.WithLimit(t.cfg.SegmentsInFlight),
	)

	acc, err := runtime.Fold[proof.SegmentAggregatable](ctx, t.rt, &ops.SegmentAggProof{Debug: t.cfg.Debug}, s)
	if err != nil {
		return nil, errors.Wrapf(err, "txn %d", input.TxnIndex)
	}

	switch acc.Kind {
	case proof.SegmentLeafKind:
		acc, err = runtime.Apply[proof.SegmentAggregatable, proof.SegmentAggregatable](ctx, t.rt, &ops.SegmentSelfAggProof{Debug: t.cfg.Debug}, acc)
		if err != nil {
			return nil, errors.Wrapf(err, "txn %d", input.TxnIndex)
		}
	case proof.SegmentAggKind:
	default:
		return nil, runtime.Fatal(errors.Wrapf(proof.ErrShape, "txn %d folded to %s", input.TxnIndex, acc.Kind), runtime.Terminate)
	}

	agg, err := acc.AsAgg()
	if err != nil {
		return nil, runtime.Fatal(err, runtime.Terminate)
	}

	t.logger.WithField("txn", input.TxnIndex).WithField("block", agg.PV.BlockNumber).Debug("proved txn")

	return agg, nil
}

// ProveBlockTxns proves every transaction of a block concurrently and folds
// them in transaction order. The first transaction seeds the aggregate so the
// fold only ever combines an aggregate with the next transaction.
func (t *Tree) ProveBlockTxns(ctx context.Context, inputs []*trace.TxnProofInput) (*proof.TxnAggProof, error) {
	if len(inputs) == 0 {
		return nil, runtime.Fatal(errors.New("block has no transaction inputs"), runtime.Terminate)
	}

	s := runtime.MapFunc(ctx, runtime.SliceIter(inputs), func(ctx context.Context, idx int, in *trace.TxnProofInput) (proof.TxnAggregatable, error) {
		p, err := t.ProveTxn(ctx, in)
		if err != nil {
			return proof.TxnAggregatable{}, err
		}

		if idx == 0 {
			return runtime.Apply[*proof.SegmentAggProof, proof.TxnAggregatable](ctx, t.rt, &ops.TxnSeedProof{Debug: t.cfg.Debug}, p)
		}

		return proof.TxnLeaf(p), nil
	}, runtime.WithLimit(t.cfg.TxnsInFlight))

	acc, err := runtime.Fold[proof.TxnAggregatable](ctx, t.rt, &ops.TxnAggProof{Debug: t.cfg.Debug}, s)
	if err != nil {
		return nil, err
	}

	agg, err := acc.AsAgg()
	if err != nil {
		return nil, runtime.Fatal(err, runtime.Terminate)
	}

	return agg, nil
}

// fatalIter marks source failures as fatal
type fatalIter[T any] struct {
	runtime.Iterator[T]
}

func (f *fatalIter[T]) Next() (T, error) {
	v, err := f.Iterator.Next()
	if err != nil && err != io.EOF {
		return v, runtime.Fatal(err, runtime.Terminate)
	}
	return v, err
}
