package trace

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Decode splits a block trace into independently provable transaction batches.
// The state root is threaded through the batches and an empty block is padded
// with a single empty batch.
func Decode(bt *BlockTrace, other *OtherBlockData, batchSize int) ([]*TxnProofInput, error) {
	if batchSize < 1 {
		return nil, ErrInvalidBatchSize
	}

	if _, err := other.Meta.BlockNumber(); err != nil {
		return nil, err
	}

	hashes, err := padHistory(other.Hashes)
	if err != nil {
		return nil, err
	}

	root := other.PrevStateRoot
	inputs := []*TxnProofInput{}

	for i := 0; i < len(bt.Txns); i += batchSize {
		end := i + batchSize
		if end > len(bt.Txns) {
			end = len(bt.Txns)
		}

		in := &TxnProofInput{
			TxnIndex:            i,
			Start:               Registers{StateRoot: root},
			Meta:                other.Meta,
			Hashes:              hashes,
			CheckpointStateRoot: other.CheckpointStateRoot,
		}

		for _, txn := range bt.Txns[i:end] {
			in.TxnHashes = append(in.TxnHashes, txn.Hash)
			for _, s := range txn.Steps {
				in.Steps = append(in.Steps, s)
				root = NextRoot(root, s.Data)
			}
		}

		inputs = append(inputs, in)
	}

	if len(inputs) == 0 {
		inputs = append(inputs, &TxnProofInput{
			Start:               Registers{StateRoot: root},
			Meta:                other.Meta,
			Hashes:              hashes,
			CheckpointStateRoot: other.CheckpointStateRoot,
		})
	}

	return inputs, nil
}

func padHistory(h BlockHashes) (BlockHashes, error) {
	if len(h.PrevHashes) > HistoryDepth {
		return h, errors.Wrapf(ErrHistoryTooLong, "got %d", len(h.PrevHashes))
	}

	prev := make([]common.Hash, HistoryDepth)
	copy(prev[HistoryDepth-len(h.PrevHashes):], h.PrevHashes)

	return BlockHashes{PrevHashes: prev, CurHash: h.CurHash}, nil
}
