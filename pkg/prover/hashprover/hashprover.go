// Package hashprover implements a proving capability that commits to public
// values with SHA3 instead of producing succinct proofs. It enforces the same
// consistency rules as a real prover and is used for development and tests.
package hashprover

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/sha3"
)

const (
	tagSegment    = "segment"
	tagSegmentAgg = "segment_agg"
	tagTxnAgg     = "txn_agg"
	tagBlock      = "block"
	tagDummy      = "dummy"

	digestLen = 32
)

var (
	_ prover.Capability = (*Prover)(nil)
)

type Prover struct{}

func New() *Prover {
	return &Prover{}
}

func (p *Prover) ProveSegment(ctx context.Context, input *trace.TxnProofInput, seg *segment.Data) (*proof.SegmentProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end, err := segment.Execute(input, seg)
	if err != nil {
		return nil, err
	}
	if end != seg.End {
		return nil, errors.Wrapf(prover.ErrVerify, "segment %d end registers differ from execution", seg.Index)
	}

	n, err := input.Meta.BlockNumber()
	if err != nil {
		return nil, err
	}

	pv := proof.PublicValues{
		BlockNumber: n,
		TxnStart:    input.TxnIndex,
		TxnEnd:      input.TxnEnd(),
		Start:       seg.Start,
		End:         end,
	}

	intern, err := seal(tagSegment, pv)
	if err != nil {
		return nil, err
	}

	return &proof.SegmentProof{Intern: intern, PV: pv}, nil
}

func (p *Prover) AggregateSegments(ctx context.Context, lhs, rhs proof.SegmentAggregatable, isDummyTail bool) (*proof.SegmentAggProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lpv, lIntern, err := openSegment(lhs)
	if err != nil {
		return nil, errors.Wrap(err, "lhs")
	}
	rpv, rIntern, err := openSegment(rhs)
	if err != nil {
		return nil, errors.Wrap(err, "rhs")
	}

	if err := prover.CheckSegmentContinuity(lpv, rpv, isDummyTail); err != nil {
		return nil, err
	}

	pv := prover.CombineSegmentValues(lpv, rpv)
	intern, err := seal(tagSegmentAgg, pv, lIntern, rIntern)
	if err != nil {
		return nil, err
	}

	return &proof.SegmentAggProof{Intern: intern, PV: pv}, nil
}

func (p *Prover) AggregateTxns(ctx context.Context, prev *proof.TxnAggProof, cur *proof.SegmentAggProof) (*proof.TxnAggProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := verify(tagSegmentAgg, cur.PV, cur.Intern); err != nil {
		return nil, errors.Wrap(err, "txn proof")
	}

	if prev == nil {
		intern, err := seal(tagTxnAgg, cur.PV, cur.Intern)
		if err != nil {
			return nil, err
		}
		return &proof.TxnAggProof{Intern: intern, PV: cur.PV}, nil
	}

	if err := verify(tagTxnAgg, prev.PV, prev.Intern); err != nil {
		return nil, errors.Wrap(err, "txn aggregate")
	}

	if err := prover.CheckTxnContinuity(prev.PV, cur.PV); err != nil {
		return nil, err
	}

	pv := prover.CombineTxnValues(prev.PV, cur.PV)
	intern, err := seal(tagTxnAgg, pv, prev.Intern, cur.Intern)
	if err != nil {
		return nil, err
	}

	return &proof.TxnAggProof{Intern: intern, PV: pv}, nil
}

func (p *Prover) ProveBlock(ctx context.Context, prev *proof.BlockProof, agg *proof.TxnAggProof) (*proof.BlockProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := verify(tagTxnAgg, agg.PV, agg.Intern); err != nil {
		return nil, errors.Wrap(err, "txn aggregate")
	}

	if err := prover.CheckBlockHeight(prev, agg.PV); err != nil {
		return nil, err
	}

	children := [][]byte{agg.Intern}
	if prev != nil {
		if err := verify(tagBlock, prev.PV, prev.Intern); err != nil {
			return nil, errors.Wrap(err, "previous block proof")
		}
		children = append(children, prev.Intern)
	}

	intern, err := seal(tagBlock, agg.PV, children...)
	if err != nil {
		return nil, err
	}

	return &proof.BlockProof{Height: agg.PV.BlockNumber, Intern: intern, PV: agg.PV}, nil
}

func (p *Prover) Dummy() proof.Intern {
	h := sha3.Sum256([]byte(tagDummy))
	return proof.Intern(h[:])
}

func openSegment(s proof.SegmentAggregatable) (proof.PublicValues, proof.Intern, error) {
	pv, err := s.PublicValues()
	if err != nil {
		return pv, nil, err
	}
	intern, err := s.Intern()
	if err != nil {
		return pv, nil, err
	}

	tag := tagSegment
	if s.Kind == proof.SegmentAggKind {
		tag = tagSegmentAgg
	}

	return pv, intern, verify(tag, pv, intern)
}

// seal produces commitment || children digest
func seal(tag string, pv proof.PublicValues, children ...[]byte) (proof.Intern, error) {
	ch := sha3.New256()
	for _, c := range children {
		ch.Write(c)
	}
	childDigest := ch.Sum(nil)

	c, err := commitment(tag, pv, childDigest)
	if err != nil {
		return nil, err
	}

	return proof.Intern(append(c, childDigest...)), nil
}

func verify(tag string, pv proof.PublicValues, intern proof.Intern) error {
	if len(intern) != 2*digestLen {
		return errors.Wrapf(prover.ErrVerify, "%s proof has length %d", tag, len(intern))
	}

	c, err := commitment(tag, pv, intern[digestLen:])
	if err != nil {
		return err
	}

	if !bytes.Equal(c, intern[:digestLen]) {
		return errors.Wrapf(prover.ErrVerify, "%s commitment mismatch", tag)
	}

	return nil
}

func commitment(tag string, pv proof.PublicValues, childDigest []byte) ([]byte, error) {
	b, err := msgpack.Marshal(pv)
	if err != nil {
		return nil, errors.Wrap(err, "encoding public values")
	}

	h := sha3.New256()
	h.Write([]byte(tag))
	h.Write(b)
	h.Write(childDigest)

	return h.Sum(nil), nil
}
