package leader

import (
	"context"
	"io"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/chain"
	"github.com/tcfw/chainprover/pkg/trace"
)

// BlockProverInput is everything needed to prove one block
type BlockProverInput struct {
	BlockTrace trace.BlockTrace     `json:"block_trace" msgpack:"t"`
	OtherData  trace.OtherBlockData `json:"other_data" msgpack:"o"`
}

func (b *BlockProverInput) BlockNumber() (uint64, error) {
	return b.OtherData.Meta.BlockNumber()
}

// InputSource fetches the prover input of a block. The previous block hashes
// are provided by the caller's window.
type InputSource interface {
	FetchProverInput(ctx context.Context, number uint64, prevHashes []common.Hash) (*BlockProverInput, error)
}

// RangeIter fetches a contiguous range of blocks in order. It owns the hash
// window and slides it forward as each block is fetched.
type RangeIter struct {
	ctx    context.Context
	src    InputSource
	window *chain.HashWindow
	next   uint64
	end    uint64
	done   bool
}

func NewRangeIter(ctx context.Context, src InputSource, from, to uint64, window *chain.HashWindow) *RangeIter {
	return &RangeIter{
		ctx:    ctx,
		src:    src,
		window: window,
		next:   from,
		end:    to,
		done:   from > to,
	}
}

func (r *RangeIter) Next() (*BlockProverInput, error) {
	if r.done {
		return nil, io.EOF
	}

	in, err := r.src.FetchProverInput(r.ctx, r.next, r.window.Hashes())
	if err != nil {
		r.done = true
		return nil, errors.Wrapf(err, "fetching block %d", r.next)
	}

	r.window.Push(in.OtherData.Hashes.CurHash)

	if r.next == r.end {
		r.done = true
	} else {
		r.next++
	}

	return in, nil
}

// Cursor is the number of the block the next call to Next fetches, or the
// block whose fetch failed.
func (r *RangeIter) Cursor() uint64 {
	return r.next
}
