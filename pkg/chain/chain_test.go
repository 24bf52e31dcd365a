package chain

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/prover/hashprover"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
)

func hashOf(n uint64) common.Hash {
	return common.BigToHash(uint256.NewInt(n + 1000).ToBig())
}

type mapSource map[uint64]common.Hash

func (m mapSource) BlockHash(_ context.Context, n uint64) (common.Hash, error) {
	h, ok := m[n]
	if !ok {
		return common.Hash{}, errors.Errorf("unknown block %d", n)
	}
	return h, nil
}

func TestHandoff(t *testing.T) {
	h := NewHandoff()
	p := &proof.BlockProof{Height: 3}

	go func() {
		time.Sleep(5 * time.Millisecond)
		h.Publish(p, nil)
		h.Publish(&proof.BlockProof{Height: 99}, nil)
	}()

	got, err := h.Await(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	assert.Same(t, p, got)

	_, err = h.Await(context.Background())
	assert.ErrorIs(t, err, ErrHandoffConsumed)
}

func TestHandoffResolvedNone(t *testing.T) {
	got, err := Resolved(nil).Await(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestHandoffCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := NewHandoff().Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHashWindowPush(t *testing.T) {
	const (
		height = 300
		size   = 256
	)

	src := mapSource{}
	for i := uint64(0); i <= height+1; i++ {
		src[i] = hashOf(i)
	}

	//window for proving block H+1 holds [H-W+1, H]
	w, err := FetchHashWindow(context.Background(), src, height+1, size)
	if err != nil {
		t.Fatal(err)
	}

	hashes := w.Hashes()
	assert.Len(t, hashes, size)
	assert.Equal(t, hashOf(height-size+1), hashes[0])
	assert.Equal(t, hashOf(height), hashes[size-1])

	w.Push(hashOf(height + 1))

	hashes = w.Hashes()
	assert.Equal(t, size, w.Len())
	assert.Equal(t, hashOf(height-size+2), hashes[0])
	assert.Equal(t, hashOf(height), hashes[size-2])
	assert.Equal(t, hashOf(height+1), hashes[size-1])
}

func TestHashWindowNearGenesis(t *testing.T) {
	src := mapSource{0: hashOf(0), 1: hashOf(1)}

	w, err := FetchHashWindow(context.Background(), src, 2, 4)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, []common.Hash{{}, {}, hashOf(0), hashOf(1)}, w.Hashes())
}

func TestHashWindowFetchError(t *testing.T) {
	_, err := FetchHashWindow(context.Background(), mapSource{}, 10, 2)
	assert.Error(t, err)
}

func TestHashWindowCopies(t *testing.T) {
	in := []common.Hash{hashOf(1), hashOf(2)}
	w := NewHashWindow(in)
	in[0] = common.Hash{}

	out := w.Hashes()
	out[1] = common.Hash{}

	assert.Equal(t, []common.Hash{hashOf(1), hashOf(2)}, w.Hashes())
}

func txnAgg(t *testing.T, block uint64) *proof.TxnAggProof {
	c := hashprover.New()
	ctx := context.Background()

	sp, err := c.ProveSegment(ctx, &trace.TxnProofInput{Meta: trace.BlockMetadata{Number: uintPtr(block)}}, segmentDummy())
	if err != nil {
		t.Fatal(err)
	}
	leaf := proof.SegmentLeaf(sp)
	sa, err := c.AggregateSegments(ctx, leaf, leaf, true)
	if err != nil {
		t.Fatal(err)
	}
	agg, err := c.AggregateTxns(ctx, nil, sa)
	if err != nil {
		t.Fatal(err)
	}
	return agg
}

func linker(t *testing.T) *Linker {
	t.Cleanup(prover.Override(hashprover.New()))

	reg := runtime.NewRegistry()
	ops.Register(reg)
	rt := runtime.NewInMemory(reg, 2)
	t.Cleanup(func() { rt.Close() })

	return NewLinker(rt)
}

func TestLinkChain(t *testing.T) {
	l := linker(t)
	ctx := context.Background()

	first, err := l.Link(ctx, 10, nil, txnAgg(t, 10))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(10), first.Height)

	second, err := l.Link(ctx, 11, Resolved(first), txnAgg(t, 11))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(11), second.Height)
}

func TestLinkHeightMismatch(t *testing.T) {
	l := linker(t)

	_, err := l.Link(context.Background(), 12, Resolved(&proof.BlockProof{Height: 10}), txnAgg(t, 12))
	assert.ErrorIs(t, err, ErrChainLinkage)

	_, err = l.Link(context.Background(), 12, nil, txnAgg(t, 13))
	assert.ErrorIs(t, err, ErrChainLinkage)
}

func TestLinkPreviousFailed(t *testing.T) {
	l := linker(t)

	h := NewHandoff()
	h.Publish(nil, errors.New("block 9 failed"))

	_, err := l.Link(context.Background(), 10, h, txnAgg(t, 10))
	assert.ErrorIs(t, err, ErrChainLinkage)
	assert.Contains(t, err.Error(), "block 9 failed")
}

func uintPtr(n uint64) *uint256.Int {
	return uint256.NewInt(n)
}

func segmentDummy() *segment.Data {
	return &segment.Data{Final: true, Dummy: true}
}
