package chain

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/runtime"
)

var (
	ErrChainLinkage = errors.New("chain linkage failed")
)

type Option func(*Linker)

func WithLogger(l *logrus.Logger) Option {
	return func(lk *Linker) {
		lk.logger = l
	}
}

func WithDebug(d ops.Debug) Option {
	return func(lk *Linker) {
		lk.debug = d
	}
}

// Linker turns a block's transaction aggregate into a block proof chained
// onto the previous block's proof
type Linker struct {
	rt     runtime.Runtime
	debug  ops.Debug
	logger *logrus.Logger
}

func NewLinker(rt runtime.Runtime, opts ...Option) *Linker {
	l := &Linker{
		rt:     rt,
		logger: logrus.StandardLogger(),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Link waits for the previous block's proof and produces the proof of the
// block at height. A nil prev starts a new chain from a checkpoint.
func (l *Linker) Link(ctx context.Context, height uint64, prev *Handoff, agg *proof.TxnAggProof) (*proof.BlockProof, error) {
	var prevProof *proof.BlockProof

	if prev != nil {
		p, err := prev.Await(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, errors.Wrapf(ErrChainLinkage, "block %d: previous proof unavailable: %s", height, err)
		}
		prevProof = p
	}

	if prevProof != nil && prevProof.Height+1 != height {
		return nil, errors.Wrapf(ErrChainLinkage, "block %d cannot follow proof of block %d", height, prevProof.Height)
	}

	if agg.PV.BlockNumber != height {
		return nil, errors.Wrapf(ErrChainLinkage, "aggregate is for block %d, expected %d", agg.PV.BlockNumber, height)
	}

	p, err := runtime.Apply[*proof.TxnAggProof, *proof.BlockProof](ctx, l.rt, &ops.BlockProof{Prev: prevProof, Debug: l.debug}, agg)
	if err != nil {
		return nil, errors.Wrapf(err, "proving block %d", height)
	}

	if p.Height != height {
		return nil, errors.Wrapf(ErrChainLinkage, "block proof has height %d, expected %d", p.Height, height)
	}

	l.logger.WithField("height", height).WithField("checkpoint", prevProof == nil).Debug("linked block proof")

	return p, nil
}
