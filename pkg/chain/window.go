package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// HashWindow is a fixed size sliding window of the most recent block hashes,
// oldest first. It is owned by a single goroutine.
type HashWindow struct {
	hashes []common.Hash
}

func NewHashWindow(hashes []common.Hash) *HashWindow {
	w := &HashWindow{hashes: make([]common.Hash, len(hashes))}
	copy(w.hashes, hashes)
	return w
}

// Push drops the oldest hash and appends h
func (w *HashWindow) Push(h common.Hash) {
	if len(w.hashes) == 0 {
		return
	}

	copy(w.hashes, w.hashes[1:])
	w.hashes[len(w.hashes)-1] = h
}

func (w *HashWindow) Hashes() []common.Hash {
	out := make([]common.Hash, len(w.hashes))
	copy(out, w.hashes)
	return out
}

func (w *HashWindow) Len() int {
	return len(w.hashes)
}

// HashSource resolves block hashes by number
type HashSource interface {
	BlockHash(ctx context.Context, number uint64) (common.Hash, error)
}

// FetchHashWindow loads the hashes of the depth blocks preceding start.
// Positions before genesis are left as the zero hash.
func FetchHashWindow(ctx context.Context, src HashSource, start uint64, depth int) (*HashWindow, error) {
	hashes := make([]common.Hash, depth)

	for i := 0; i < depth; i++ {
		back := uint64(depth - i)
		if back > start {
			continue
		}

		h, err := src.BlockHash(ctx, start-back)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching hash of block %d", start-back)
		}
		hashes[i] = h
	}

	return &HashWindow{hashes: hashes}, nil
}
