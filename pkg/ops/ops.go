package ops

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
)

const (
	SegmentProofOp        = "segment_proof"
	SegmentAggProofOp     = "segment_agg_proof"
	SegmentSelfAggProofOp = "segment_self_agg_proof"
	TxnSeedProofOp        = "txn_seed_proof"
	TxnAggProofOp         = "txn_agg_proof"
	BlockProofOp          = "block_proof"
	SegmentSimulationOp   = "segment_simulation"
)

var (
	_ runtime.Operation[SegmentInput, proof.SegmentAggregatable]              = (*SegmentProof)(nil)
	_ runtime.Monoid[proof.SegmentAggregatable]                               = (*SegmentAggProof)(nil)
	_ runtime.Operation[proof.SegmentAggregatable, proof.SegmentAggregatable] = (*SegmentSelfAggProof)(nil)
	_ runtime.Operation[*proof.SegmentAggProof, proof.TxnAggregatable]        = (*TxnSeedProof)(nil)
	_ runtime.Monoid[proof.TxnAggregatable]                                   = (*TxnAggProof)(nil)
	_ runtime.Operation[*proof.TxnAggProof, *proof.BlockProof]                = (*BlockProof)(nil)
	_ runtime.Operation[SegmentInput, trace.Registers]                        = (*SegmentSimulation)(nil)
)

// Register exposes every proving operation to a worker registry
func Register(r *runtime.Registry) {
	runtime.RegisterOperation(r, func() runtime.Operation[SegmentInput, proof.SegmentAggregatable] { return &SegmentProof{} })
	runtime.RegisterMonoid(r, func() runtime.Monoid[proof.SegmentAggregatable] { return &SegmentAggProof{} })
	runtime.RegisterOperation(r, func() runtime.Operation[proof.SegmentAggregatable, proof.SegmentAggregatable] {
		return &SegmentSelfAggProof{}
	})
	runtime.RegisterOperation(r, func() runtime.Operation[*proof.SegmentAggProof, proof.TxnAggregatable] { return &TxnSeedProof{} })
	runtime.RegisterMonoid(r, func() runtime.Monoid[proof.TxnAggregatable] { return &TxnAggProof{} })
	runtime.RegisterOperation(r, func() runtime.Operation[*proof.TxnAggProof, *proof.BlockProof] { return &BlockProof{} })
	runtime.RegisterOperation(r, func() runtime.Operation[SegmentInput, trace.Registers] { return &SegmentSimulation{} })
}

func capability() (prover.Capability, error) {
	c, err := prover.Global()
	if err != nil {
		return nil, runtime.Fatal(err, runtime.Terminate)
	}
	return c, nil
}

// failed classifies an operation error. Inputs are only saved when the
// failure was not caused by cancellation.
func failed(ctx context.Context, err error, save func()) error {
	if ctx.Err() == nil {
		save()
	}

	return runtime.Fatal(err, runtime.Terminate)
}

// SegmentInput pairs a segment with the transaction it was cut from
type SegmentInput struct {
	Txn     *trace.TxnProofInput `msgpack:"t"`
	Segment *segment.Data        `msgpack:"s"`
}

func (in SegmentInput) blockNumber() uint64 {
	if in.Txn == nil {
		return 0
	}
	n, _ := in.Txn.Meta.BlockNumber()
	return n
}

func (in SegmentInput) validate() error {
	if in.Txn == nil || in.Segment == nil {
		return errors.New("incomplete segment input")
	}
	return nil
}

// SegmentProof proves a single segment
type SegmentProof struct {
	Debug Debug `msgpack:"dbg"`
}

func (o *SegmentProof) Name() string { return SegmentProofOp }

func (o *SegmentProof) Execute(ctx context.Context, in SegmentInput) (proof.SegmentAggregatable, error) {
	if err := in.validate(); err != nil {
		return proof.SegmentAggregatable{}, runtime.Fatal(err, runtime.Terminate)
	}

	c, err := capability()
	if err != nil {
		return proof.SegmentAggregatable{}, err
	}

	p, err := c.ProveSegment(ctx, in.Txn, in.Segment)
	if err != nil {
		err = errors.Wrapf(err, "proving segment %d of txn %d", in.Segment.Index, in.Txn.TxnIndex)
		return proof.SegmentAggregatable{}, failed(ctx, err, func() {
			seg := in.Segment.Index
			n := in.blockNumber()
			o.Debug.dump(fmt.Sprintf("b%d_txn_%d_seg_%d", n, in.Txn.TxnIndex, seg), DumpInfo{
				Op:      SegmentProofOp,
				Block:   n,
				Txn:     fmt.Sprint(in.Txn.TxnIndex),
				Segment: &seg,
				Error:   err.Error(),
			}, in)
		})
	}

	return proof.SegmentLeaf(p), nil
}

// SegmentAggProof combines adjacent segment proofs of one transaction
type SegmentAggProof struct {
	Debug Debug `msgpack:"dbg"`
}

func (o *SegmentAggProof) Name() string { return SegmentAggProofOp }

func (o *SegmentAggProof) Combine(ctx context.Context, a, b proof.SegmentAggregatable) (proof.SegmentAggregatable, error) {
	return aggregateSegments(ctx, o.Debug, SegmentAggProofOp, a, b, false)
}

// Empty panics: every transaction yields at least one segment
func (o *SegmentAggProof) Empty() proof.SegmentAggregatable {
	panic("segment aggregation has no identity")
}

// SegmentSelfAggProof turns the only segment of a transaction into an
// aggregate by combining it with itself
type SegmentSelfAggProof struct {
	Debug Debug `msgpack:"dbg"`
}

func (o *SegmentSelfAggProof) Name() string { return SegmentSelfAggProofOp }

func (o *SegmentSelfAggProof) Execute(ctx context.Context, in proof.SegmentAggregatable) (proof.SegmentAggregatable, error) {
	return aggregateSegments(ctx, o.Debug, SegmentSelfAggProofOp, in, in, true)
}

func aggregateSegments(ctx context.Context, dbg Debug, op string, a, b proof.SegmentAggregatable, isDummyTail bool) (proof.SegmentAggregatable, error) {
	c, err := capability()
	if err != nil {
		return proof.SegmentAggregatable{}, err
	}

	p, err := c.AggregateSegments(ctx, a, b, isDummyTail)
	if err != nil {
		err = errors.Wrap(err, "aggregating segments")
		return proof.SegmentAggregatable{}, failed(ctx, err, func() {
			lpv, _ := a.PublicValues()
			rpv, _ := b.PublicValues()
			dbg.dump(fmt.Sprintf("b%d_txn_%d_seg_agg_%d-%d", lpv.BlockNumber, lpv.TxnStart, lpv.Start.Cycle, rpv.End.Cycle), DumpInfo{
				Op:    op,
				Block: lpv.BlockNumber,
				Txn:   fmt.Sprint(lpv.TxnStart),
				Error: err.Error(),
			}, &runtime.Pair[proof.SegmentAggregatable]{A: a, B: b})
		})
	}

	return proof.SegmentAgg(p), nil
}

// TxnSeedProof starts the transaction aggregate of a block from its first
// transaction
type TxnSeedProof struct {
	Debug Debug `msgpack:"dbg"`
}

func (o *TxnSeedProof) Name() string { return TxnSeedProofOp }

func (o *TxnSeedProof) Execute(ctx context.Context, in *proof.SegmentAggProof) (proof.TxnAggregatable, error) {
	if in == nil {
		return proof.TxnAggregatable{}, runtime.Fatal(errors.Wrap(proof.ErrShape, "missing txn proof"), runtime.Terminate)
	}

	c, err := capability()
	if err != nil {
		return proof.TxnAggregatable{}, err
	}

	p, err := c.AggregateTxns(ctx, nil, in)
	if err != nil {
		err = errors.Wrapf(err, "seeding txn aggregate with txn %d", in.PV.TxnStart)
		return proof.TxnAggregatable{}, failed(ctx, err, func() {
			o.Debug.dump(fmt.Sprintf("b%d_txn_%d_seed", in.PV.BlockNumber, in.PV.TxnStart), DumpInfo{
				Op:    TxnSeedProofOp,
				Block: in.PV.BlockNumber,
				Txn:   fmt.Sprint(in.PV.TxnStart),
				Error: err.Error(),
			}, in.PV)
		})
	}

	return proof.TxnAgg(p), nil
}

// TxnAggProof folds the next transaction into the block's aggregate. The
// accumulator must be an aggregate and the next value a single transaction.
type TxnAggProof struct {
	Debug Debug `msgpack:"dbg"`
}

type txnAggDump struct {
	Lhs proof.PublicValues `msgpack:"l"`
	Rhs proof.PublicValues `msgpack:"r"`
}

func (o *TxnAggProof) Name() string { return TxnAggProofOp }

func (o *TxnAggProof) Combine(ctx context.Context, a, b proof.TxnAggregatable) (proof.TxnAggregatable, error) {
	prev, err := a.AsAgg()
	if err != nil {
		return proof.TxnAggregatable{}, runtime.Fatal(errors.Wrap(err, "lhs"), runtime.Terminate)
	}

	cur, err := b.AsLeaf()
	if err != nil {
		return proof.TxnAggregatable{}, runtime.Fatal(errors.Wrap(err, "rhs"), runtime.Terminate)
	}

	c, err := capability()
	if err != nil {
		return proof.TxnAggregatable{}, err
	}

	p, err := c.AggregateTxns(ctx, prev, cur)
	if err != nil {
		err = errors.Wrapf(err, "aggregating txns [%d,%d) and [%d,%d)", prev.PV.TxnStart, prev.PV.TxnEnd, cur.PV.TxnStart, cur.PV.TxnEnd)
		return proof.TxnAggregatable{}, failed(ctx, err, func() {
			o.Debug.dump(fmt.Sprintf("b%d_txn_%d-%d_agg", prev.PV.BlockNumber, prev.PV.TxnStart, cur.PV.TxnEnd), DumpInfo{
				Op:    TxnAggProofOp,
				Block: prev.PV.BlockNumber,
				Txn:   fmt.Sprintf("%d-%d", prev.PV.TxnStart, cur.PV.TxnEnd),
				Error: err.Error(),
			}, &txnAggDump{Lhs: prev.PV, Rhs: cur.PV})
		})
	}

	return proof.TxnAgg(p), nil
}

// Empty panics: every block has at least one transaction input
func (o *TxnAggProof) Empty() proof.TxnAggregatable {
	panic("txn aggregation has no identity")
}

// BlockProof wraps a block's transaction aggregate into a block proof chained
// to Prev. A nil Prev marks the first block after a checkpoint.
type BlockProof struct {
	Prev  *proof.BlockProof `msgpack:"p"`
	Debug Debug             `msgpack:"dbg"`
}

func (o *BlockProof) Name() string { return BlockProofOp }

func (o *BlockProof) Execute(ctx context.Context, agg *proof.TxnAggProof) (*proof.BlockProof, error) {
	if agg == nil {
		return nil, runtime.Fatal(errors.Wrap(proof.ErrShape, "missing txn aggregate"), runtime.Terminate)
	}

	c, err := capability()
	if err != nil {
		return nil, err
	}

	p, err := c.ProveBlock(ctx, o.Prev, agg)
	if err != nil {
		err = errors.Wrapf(err, "proving block %d", agg.PV.BlockNumber)
		return nil, failed(ctx, err, func() {
			o.Debug.dump(fmt.Sprintf("b%d_block", agg.PV.BlockNumber), DumpInfo{
				Op:    BlockProofOp,
				Block: agg.PV.BlockNumber,
				Error: err.Error(),
			}, agg.PV)
		})
	}

	return p, nil
}

// SegmentSimulation replays a segment without proving it
type SegmentSimulation struct {
	Debug Debug `msgpack:"dbg"`
}

func (o *SegmentSimulation) Name() string { return SegmentSimulationOp }

func (o *SegmentSimulation) Execute(ctx context.Context, in SegmentInput) (trace.Registers, error) {
	if err := in.validate(); err != nil {
		return trace.Registers{}, runtime.Fatal(err, runtime.Terminate)
	}

	end, err := segment.Execute(in.Txn, in.Segment)
	if err == nil && end != in.Segment.End {
		err = errors.Wrapf(prover.ErrVerify, "segment %d end registers differ from execution", in.Segment.Index)
	}

	if err != nil {
		err = errors.Wrapf(err, "simulating segment %d of txn %d", in.Segment.Index, in.Txn.TxnIndex)
		return trace.Registers{}, failed(ctx, err, func() {
			seg := in.Segment.Index
			n := in.blockNumber()
			o.Debug.dump(fmt.Sprintf("b%d_txn_%d_seg_%d_sim", n, in.Txn.TxnIndex, seg), DumpInfo{
				Op:      SegmentSimulationOp,
				Block:   n,
				Txn:     fmt.Sprint(in.Txn.TxnIndex),
				Segment: &seg,
				Error:   err.Error(),
			}, in)
		})
	}

	return end, nil
}
