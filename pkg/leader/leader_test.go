package leader

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/tcfw/chainprover/pkg/chain"
	"github.com/tcfw/chainprover/pkg/ops"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/prover/hashprover"
	"github.com/tcfw/chainprover/pkg/runtime"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
)

func hashOf(n uint64) common.Hash {
	return common.BigToHash(uint256.NewInt(n + 5000).ToBig())
}

func testInput(n uint64, txns, steps int) *BlockProverInput {
	in := &BlockProverInput{
		OtherData: trace.OtherBlockData{
			Meta:          trace.BlockMetadata{Number: uint256.NewInt(n)},
			Hashes:        trace.BlockHashes{CurHash: hashOf(n)},
			PrevStateRoot: hashOf(n - 1),
		},
	}

	for i := 0; i < txns; i++ {
		txn := trace.TxnTrace{Hash: common.BigToHash(uint256.NewInt(n*100 + uint64(i)).ToBig())}
		for j := 0; j < steps; j++ {
			txn.Steps = append(txn.Steps, trace.Step{Cycles: uint32(1 + (i+j)%3), Data: []byte{byte(n), byte(i), byte(j)}})
		}
		in.BlockTrace.Txns = append(in.BlockTrace.Txns, txn)
	}

	return in
}

func testProver(t *testing.T, c prover.Capability, cfg Config) *Prover {
	t.Cleanup(prover.Override(c))

	reg := runtime.NewRegistry()
	ops.Register(reg)
	rt := runtime.NewInMemory(reg, 4)
	t.Cleanup(func() { rt.Close() })

	if cfg.MaxCPULenLog == 0 {
		cfg.MaxCPULenLog = 2
	}

	return New(rt, cfg)
}

func TestProveBlockHeight(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{})
	ctx := context.Background()

	first, err := p.ProveBlock(ctx, testInput(20, 3, 4), nil)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(20), first.Height)

	second, err := p.ProveBlock(ctx, testInput(21, 2, 4), chain.Resolved(first))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, first.Height+1, second.Height)

	_, err = p.ProveBlock(ctx, testInput(23, 1, 1), chain.Resolved(second))
	assert.ErrorIs(t, err, chain.ErrChainLinkage)
}

func TestOneTxnOneSegment(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{MaxCPULenLog: 8})

	in := testInput(3, 1, 1)
	bp, err := p.ProveBlock(context.Background(), in, nil)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, uint64(3), bp.Height)
	assert.Equal(t, 0, bp.PV.TxnStart)
	assert.Equal(t, 1, bp.PV.TxnEnd)
	assert.Equal(t, in.OtherData.PrevStateRoot, bp.PV.Start.StateRoot)
}

func TestBatching(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{BatchSize: 2})

	bp, err := p.ProveBlock(context.Background(), testInput(8, 5, 3), nil)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 5, bp.PV.TxnEnd)
}

func TestBlockNumberOverflow(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{})

	in := testInput(1, 1, 1)
	in.OtherData.Meta.Number = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

	_, err := p.ProveBlock(context.Background(), in, nil)
	assert.ErrorIs(t, err, trace.ErrBlockNumberOverflow)
}

func collect(t *testing.T, p *Prover, inputs []*BlockProverInput, prev *proof.BlockProof) ([]BlockResult, error) {
	var (
		mu  sync.Mutex
		out []BlockResult
	)

	err := p.ProveRange(context.Background(), runtime.SliceIter(inputs), prev, func(r BlockResult) error {
		mu.Lock()
		defer mu.Unlock()
		out = append(out, r)
		return nil
	})

	return out, err
}

func TestPipelinedEqualsSequential(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{BlocksInFlight: 3, TxnsInFlight: 2, SegmentsInFlight: 4})
	ctx := context.Background()

	inputs := []*BlockProverInput{}
	for n := uint64(100); n < 105; n++ {
		inputs = append(inputs, testInput(n, 3, 5))
	}

	results, err := collect(t, p, inputs, nil)
	if err != nil {
		t.Fatal(err)
	}

	var prev *proof.BlockProof
	for i, in := range inputs {
		bp, err := p.ProveBlock(ctx, in, chain.Resolved(prev))
		if err != nil {
			t.Fatal(err)
		}

		if assert.NoError(t, results[i].Err) {
			assert.Equal(t, uint64(100+i), results[i].Number)
			assert.Equal(t, bp.Intern, results[i].Proof.Intern)
			assert.Equal(t, bp.Height, results[i].Proof.Height)
		}
		prev = bp
	}
}

type failingCapability struct {
	*hashprover.Prover
	block uint64
}

func (f *failingCapability) ProveSegment(ctx context.Context, in *trace.TxnProofInput, seg *segment.Data) (*proof.SegmentProof, error) {
	if n, _ := in.Meta.BlockNumber(); n == f.block {
		return nil, errors.New("witness generation failed")
	}
	return f.Prover.ProveSegment(ctx, in, seg)
}

func TestRangeFailureOnlyAffectsDependents(t *testing.T) {
	p := testProver(t, &failingCapability{Prover: hashprover.New(), block: 11}, Config{BlocksInFlight: 2})

	inputs := []*BlockProverInput{testInput(10, 2, 2), testInput(11, 2, 2), testInput(12, 2, 2)}

	results, err := collect(t, p, inputs, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "witness generation failed")

	if assert.GreaterOrEqual(t, len(results), 2) {
		assert.NoError(t, results[0].Err)
		assert.Equal(t, uint64(10), results[0].Proof.Height)
		assert.Error(t, results[1].Err)
	}

	if len(results) == 3 {
		assert.ErrorIs(t, results[2].Err, chain.ErrChainLinkage)
	}
}

type countingIter struct {
	runtime.Iterator[*BlockProverInput]

	mu    sync.Mutex
	pulls int
}

func (c *countingIter) Next() (*BlockProverInput, error) {
	in, err := c.Iterator.Next()
	if err == nil {
		c.mu.Lock()
		c.pulls++
		c.mu.Unlock()
	}
	return in, err
}

func TestRangeStopsStartingBlocksAfterFailure(t *testing.T) {
	inputs := []*BlockProverInput{}
	for n := uint64(10); n < 20; n++ {
		inputs = append(inputs, testInput(n, 1, 2))
	}

	for i := 0; i < 20; i++ {
		p := testProver(t, &failingCapability{Prover: hashprover.New(), block: 11}, Config{BlocksInFlight: 1})
		it := &countingIter{Iterator: runtime.SliceIter(inputs)}

		var results []BlockResult
		err := p.ProveRange(context.Background(), it, nil, func(r BlockResult) error {
			results = append(results, r)
			return nil
		})
		assert.Error(t, err)

		assert.Equal(t, 2, it.pulls)
		if assert.Len(t, results, 2) {
			assert.Equal(t, uint64(11), results[1].Number)
			assert.Error(t, results[1].Err)
		}
	}
}

func TestRangeFailureReportsBlockNumber(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{BlocksInFlight: 1})

	bad := testInput(31, 1, 1)
	bad.OtherData.Meta.Number = new(uint256.Int).Lsh(uint256.NewInt(1), 64)

	results, err := collect(t, p, []*BlockProverInput{testInput(30, 1, 1), bad}, nil)
	assert.ErrorIs(t, err, trace.ErrBlockNumberOverflow)

	if assert.Len(t, results, 2) {
		assert.Equal(t, uint64(31), results[1].Number)
	}

	src := &fakeSource{seen: map[uint64][]common.Hash{}}
	w := chain.NewHashWindow([]common.Hash{hashOf(96), hashOf(97), hashOf(98)})

	var got []BlockResult
	err = p.ProveRange(context.Background(), NewRangeIter(context.Background(), src, 99, 100, w), nil, func(r BlockResult) error {
		got = append(got, r)
		return nil
	})
	assert.Error(t, err)

	if assert.Len(t, got, 1) {
		assert.Equal(t, uint64(99), got[0].Number)
	}
}

func TestRangeWithPreviousProof(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{BlocksInFlight: 2})

	first, err := p.ProveBlock(context.Background(), testInput(49, 1, 2), nil)
	if err != nil {
		t.Fatal(err)
	}

	results, err := collect(t, p, []*BlockProverInput{testInput(50, 1, 2), testInput(51, 1, 2)}, first)
	if err != nil {
		t.Fatal(err)
	}

	assert.Len(t, results, 2)
	assert.Equal(t, uint64(51), results[1].Proof.Height)
}

func TestRangeSinkError(t *testing.T) {
	p := testProver(t, hashprover.New(), Config{BlocksInFlight: 2})

	inputs := []*BlockProverInput{testInput(1, 1, 1), testInput(2, 1, 1), testInput(3, 1, 1)}
	err := p.ProveRange(context.Background(), runtime.SliceIter(inputs), nil, func(BlockResult) error {
		return io.ErrShortWrite
	})

	assert.ErrorIs(t, err, io.ErrShortWrite)
}

func TestTestOnly(t *testing.T) {
	c := hashprover.New()
	p := testProver(t, c, Config{TestOnly: true})

	bp, err := p.ProveBlock(context.Background(), testInput(77, 2, 6), nil)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, uint64(77), bp.Height)
	assert.Equal(t, c.Dummy(), bp.Intern)
}

type fakeSource struct {
	seen map[uint64][]common.Hash
}

func (f *fakeSource) FetchProverInput(_ context.Context, n uint64, prev []common.Hash) (*BlockProverInput, error) {
	if n == 99 {
		return nil, errors.New("rpc down")
	}

	f.seen[n] = prev
	in := testInput(n, 1, 1)
	in.OtherData.Hashes.PrevHashes = prev
	return in, nil
}

func TestRangeIterSlidesWindow(t *testing.T) {
	src := &fakeSource{seen: map[uint64][]common.Hash{}}
	w := chain.NewHashWindow([]common.Hash{hashOf(7), hashOf(8), hashOf(9)})

	it := NewRangeIter(context.Background(), src, 10, 12, w)

	for {
		_, err := it.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			t.Fatal(err)
		}
	}

	assert.Equal(t, []common.Hash{hashOf(7), hashOf(8), hashOf(9)}, src.seen[10])
	assert.Equal(t, []common.Hash{hashOf(8), hashOf(9), hashOf(10)}, src.seen[11])
	assert.Equal(t, []common.Hash{hashOf(9), hashOf(10), hashOf(11)}, src.seen[12])

	_, err := NewRangeIter(context.Background(), src, 99, 100, w).Next()
	assert.Error(t, err)
}
