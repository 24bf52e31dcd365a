package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/prover/mocks"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
)

func withCapability(t *testing.T) *mocks.Capability {
	c := mocks.NewCapability(t)
	restore := prover.Override(c)
	t.Cleanup(restore)
	return c
}

func testSegmentInput() SegmentInput {
	return SegmentInput{
		Txn: &trace.TxnProofInput{
			TxnIndex: 3,
			Steps:    []trace.Step{{Cycles: 1, Data: []byte{1}}},
			Meta:     trace.BlockMetadata{Number: uint256.NewInt(12)},
		},
		Segment: &segment.Data{Index: 2, StepStart: 0, StepEnd: 1},
	}
}

func TestSegmentProof(t *testing.T) {
	c := withCapability(t)
	in := testSegmentInput()

	sp := &proof.SegmentProof{Intern: proof.Intern{1}}
	c.On("ProveSegment", mock.Anything, in.Txn, in.Segment).Return(sp, nil)

	out, err := (&SegmentProof{}).Execute(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, proof.SegmentLeafKind, out.Kind)
	assert.Equal(t, sp, out.Leaf)
}

func TestSegmentProofDumpsInputs(t *testing.T) {
	c := withCapability(t)
	in := testSegmentInput()
	dir := t.TempDir()

	boom := errors.New("boom")
	c.On("ProveSegment", mock.Anything, in.Txn, in.Segment).Return(nil, boom)

	_, err := (&SegmentProof{Debug: Debug{SaveInputsOnError: true, Dir: dir}}).Execute(context.Background(), in)
	assert.ErrorIs(t, err, boom)
	assert.True(t, runtime.IsFatal(err))

	saved := SegmentInput{}
	if err := ReadDump(filepath.Join(dir, "b12_txn_3_seg_2.msgpack"), &saved); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, in.Segment, saved.Segment)
	assert.Equal(t, in.Txn.TxnIndex, saved.Txn.TxnIndex)

	desc, err := os.ReadFile(filepath.Join(dir, "b12_txn_3_seg_2.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	assert.Contains(t, string(desc), "op: segment_proof")
	assert.Contains(t, string(desc), "boom")
}

func TestDumpFailureKeepsPrimaryError(t *testing.T) {
	c := withCapability(t)
	in := testSegmentInput()

	//a file where the debug dir should be
	notDir := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(notDir, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	c.On("ProveSegment", mock.Anything, in.Txn, in.Segment).Return(nil, boom)

	_, err := (&SegmentProof{Debug: Debug{SaveInputsOnError: true, Dir: notDir}}).Execute(context.Background(), in)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "proving segment 2 of txn 3")
}

func TestNoDumpOnCancel(t *testing.T) {
	c := withCapability(t)
	in := testSegmentInput()
	dir := filepath.Join(t.TempDir(), "dumps")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.On("ProveSegment", mock.Anything, in.Txn, in.Segment).Return(nil, context.Canceled)

	_, err := (&SegmentProof{Debug: Debug{SaveInputsOnError: true, Dir: dir}}).Execute(ctx, in)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestSegmentSelfAgg(t *testing.T) {
	c := withCapability(t)

	leaf := proof.SegmentLeaf(&proof.SegmentProof{Intern: proof.Intern{1}})
	agg := &proof.SegmentAggProof{Intern: proof.Intern{2}}
	c.On("AggregateSegments", mock.Anything, leaf, leaf, true).Return(agg, nil)

	out, err := (&SegmentSelfAggProof{}).Execute(context.Background(), leaf)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, proof.SegmentAgg(agg), out)
}

func TestSegmentAggCombine(t *testing.T) {
	c := withCapability(t)

	a := proof.SegmentLeaf(&proof.SegmentProof{Intern: proof.Intern{1}})
	b := proof.SegmentLeaf(&proof.SegmentProof{Intern: proof.Intern{2}})
	agg := &proof.SegmentAggProof{Intern: proof.Intern{3}}
	c.On("AggregateSegments", mock.Anything, a, b, false).Return(agg, nil)

	out, err := (&SegmentAggProof{}).Combine(context.Background(), a, b)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, proof.SegmentAggKind, out.Kind)
}

func TestTxnAggShape(t *testing.T) {
	withCapability(t)

	leaf := proof.TxnLeaf(&proof.SegmentAggProof{})
	agg := proof.TxnAgg(&proof.TxnAggProof{})

	_, err := (&TxnAggProof{}).Combine(context.Background(), leaf, leaf)
	assert.ErrorIs(t, err, proof.ErrShape)
	assert.True(t, runtime.IsFatal(err))

	_, err = (&TxnAggProof{}).Combine(context.Background(), agg, agg)
	assert.ErrorIs(t, err, proof.ErrShape)
}

func TestTxnAggCombine(t *testing.T) {
	c := withCapability(t)

	prev := &proof.TxnAggProof{PV: proof.PublicValues{TxnEnd: 1}}
	cur := &proof.SegmentAggProof{PV: proof.PublicValues{TxnStart: 1, TxnEnd: 2}}
	next := &proof.TxnAggProof{PV: proof.PublicValues{TxnEnd: 2}}
	c.On("AggregateTxns", mock.Anything, prev, cur).Return(next, nil)

	out, err := (&TxnAggProof{}).Combine(context.Background(), proof.TxnAgg(prev), proof.TxnLeaf(cur))
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, proof.TxnAgg(next), out)
}

func TestTxnSeed(t *testing.T) {
	c := withCapability(t)

	cur := &proof.SegmentAggProof{Intern: proof.Intern{1}}
	agg := &proof.TxnAggProof{Intern: proof.Intern{2}}
	c.On("AggregateTxns", mock.Anything, (*proof.TxnAggProof)(nil), cur).Return(agg, nil)

	out, err := (&TxnSeedProof{}).Execute(context.Background(), cur)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, proof.TxnAggKind, out.Kind)
}

func TestBlockProofDump(t *testing.T) {
	c := withCapability(t)
	dir := t.TempDir()

	prev := &proof.BlockProof{Height: 8}
	agg := &proof.TxnAggProof{PV: proof.PublicValues{BlockNumber: 9}}
	c.On("ProveBlock", mock.Anything, prev, agg).Return(nil, prover.ErrHeight)

	_, err := (&BlockProof{Prev: prev, Debug: Debug{SaveInputsOnError: true, Dir: dir}}).Execute(context.Background(), agg)
	assert.ErrorIs(t, err, prover.ErrHeight)

	pv := proof.PublicValues{}
	if err := ReadDump(filepath.Join(dir, "b9_block.msgpack"), &pv); err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, agg.PV, pv)
}

func TestEmptyPanics(t *testing.T) {
	assert.Panics(t, func() { (&SegmentAggProof{}).Empty() })
	assert.Panics(t, func() { (&TxnAggProof{}).Empty() })
}

func TestSegmentSimulation(t *testing.T) {
	in := testSegmentInput()
	end, err := segment.Execute(in.Txn, in.Segment)
	if err != nil {
		t.Fatal(err)
	}
	in.Segment.End = end

	out, err := (&SegmentSimulation{}).Execute(context.Background(), in)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, end, out)

	in.Segment.End.Cycle++
	_, err = (&SegmentSimulation{}).Execute(context.Background(), in)
	assert.ErrorIs(t, err, prover.ErrVerify)
}

func TestOperationsThroughRuntime(t *testing.T) {
	c := withCapability(t)

	reg := runtime.NewRegistry()
	Register(reg)
	rt := runtime.NewInMemory(reg, 2)
	defer rt.Close()

	prev := &proof.BlockProof{Height: 1}
	agg := &proof.TxnAggProof{PV: proof.PublicValues{BlockNumber: 2}, Intern: proof.Intern{7}}
	c.On("ProveBlock", mock.Anything, mock.Anything, mock.Anything).Return(func(_ context.Context, p *proof.BlockProof, a *proof.TxnAggProof) *proof.BlockProof {
		return &proof.BlockProof{Height: p.Height + 1, Intern: a.Intern}
	}, nil)

	out, err := runtime.Apply[*proof.TxnAggProof, *proof.BlockProof](context.Background(), rt, &BlockProof{Prev: prev}, agg)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, uint64(2), out.Height)
	assert.Equal(t, agg.Intern, out.Intern)
}
