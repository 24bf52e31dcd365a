package hashprover

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
)

func testInputs(t *testing.T, block uint64, txns int) []*trace.TxnProofInput {
	bt := &trace.BlockTrace{}
	for i := 0; i < txns; i++ {
		bt.Txns = append(bt.Txns, trace.TxnTrace{
			Hash:  common.BigToHash(uint256.NewInt(uint64(i + 1)).ToBig()),
			Steps: []trace.Step{{Cycles: 2, Data: []byte{byte(i)}}, {Cycles: 3, Data: []byte{byte(i), 1}}},
		})
	}

	inputs, err := trace.Decode(bt, &trace.OtherBlockData{Meta: trace.BlockMetadata{Number: uint256.NewInt(block)}}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return inputs
}

func proveTxn(t *testing.T, p *Prover, in *trace.TxnProofInput) *proof.SegmentAggProof {
	ctx := context.Background()

	segs, err := segment.All(in, 2)
	if err != nil {
		t.Fatal(err)
	}

	var acc proof.SegmentAggregatable
	for i, s := range segs {
		sp, err := p.ProveSegment(ctx, in, s)
		if err != nil {
			t.Fatal(err)
		}
		if i == 0 {
			acc = proof.SegmentLeaf(sp)
			continue
		}
		agg, err := p.AggregateSegments(ctx, acc, proof.SegmentLeaf(sp), false)
		if err != nil {
			t.Fatal(err)
		}
		acc = proof.SegmentAgg(agg)
	}

	if acc.Kind == proof.SegmentLeafKind {
		agg, err := p.AggregateSegments(ctx, acc, acc, true)
		if err != nil {
			t.Fatal(err)
		}
		acc = proof.SegmentAgg(agg)
	}

	return acc.Agg
}

func TestHashProverChain(t *testing.T) {
	ctx := context.Background()
	p := New()

	var prev *proof.BlockProof
	for _, height := range []uint64{7, 8} {
		inputs := testInputs(t, height, 3)

		var agg *proof.TxnAggProof
		for _, in := range inputs {
			txn := proveTxn(t, p, in)
			var err error
			agg, err = p.AggregateTxns(ctx, agg, txn)
			if err != nil {
				t.Fatal(err)
			}
		}

		assert.Equal(t, 0, agg.PV.TxnStart)
		assert.Equal(t, 3, agg.PV.TxnEnd)

		b, err := p.ProveBlock(ctx, prev, agg)
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, height, b.Height)
		prev = b
	}
}

func TestHashProverRejectsTampering(t *testing.T) {
	ctx := context.Background()
	p := New()

	in := testInputs(t, 1, 1)[0]
	segs, err := segment.All(in, 2)
	if err != nil {
		t.Fatal(err)
	}

	bad := *segs[0]
	bad.End.StateRoot = common.HexToHash("0xdead")
	_, err = p.ProveSegment(ctx, in, &bad)
	assert.ErrorIs(t, err, prover.ErrVerify)

	sp, err := p.ProveSegment(ctx, in, segs[0])
	if err != nil {
		t.Fatal(err)
	}
	sp.PV.End.Cycle++
	_, err = p.AggregateSegments(ctx, proof.SegmentLeaf(sp), proof.SegmentLeaf(sp), true)
	assert.ErrorIs(t, err, prover.ErrVerify)
}

func TestHashProverHeightCheck(t *testing.T) {
	ctx := context.Background()
	p := New()

	agg, err := p.AggregateTxns(ctx, nil, proveTxn(t, p, testInputs(t, 5, 1)[0]))
	if err != nil {
		t.Fatal(err)
	}

	prev, err := p.ProveBlock(ctx, nil, agg)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.ProveBlock(ctx, prev, agg)
	assert.ErrorIs(t, err, prover.ErrHeight)
}

func TestHashProverSegmentOrder(t *testing.T) {
	ctx := context.Background()
	p := New()

	in := testInputs(t, 1, 1)[0]
	segs, err := segment.All(in, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !assert.Len(t, segs, 2) {
		return
	}

	a, err := p.ProveSegment(ctx, in, segs[0])
	if err != nil {
		t.Fatal(err)
	}
	b, err := p.ProveSegment(ctx, in, segs[1])
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.AggregateSegments(ctx, proof.SegmentLeaf(b), proof.SegmentLeaf(a), false)
	assert.ErrorIs(t, err, prover.ErrDiscontinuity)
}
