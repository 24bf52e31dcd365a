package prover

import (
	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/proof"
)

// CheckSegmentContinuity validates the public values of two adjacent
// segment proofs. A dummy tail combines a proof with itself.
func CheckSegmentContinuity(lhs, rhs proof.PublicValues, isDummyTail bool) error {
	if isDummyTail {
		if lhs != rhs {
			return errors.Wrap(ErrDiscontinuity, "dummy tail must repeat the head")
		}
		return nil
	}

	if lhs.BlockNumber != rhs.BlockNumber || lhs.TxnStart != rhs.TxnStart || lhs.TxnEnd != rhs.TxnEnd {
		return errors.Wrap(ErrDiscontinuity, "segments belong to different transactions")
	}

	if lhs.End != rhs.Start {
		return errors.Wrapf(ErrDiscontinuity, "segment end %s does not match next start %s", lhs.End.StateRoot, rhs.Start.StateRoot)
	}

	return nil
}

func CombineSegmentValues(lhs, rhs proof.PublicValues) proof.PublicValues {
	pv := lhs
	pv.End = rhs.End
	return pv
}

// CheckTxnContinuity validates a transaction aggregate followed by the next
// transaction batch. Cycle counters restart per batch so only state is compared.
func CheckTxnContinuity(prev, cur proof.PublicValues) error {
	if prev.BlockNumber != cur.BlockNumber {
		return errors.Wrapf(ErrDiscontinuity, "block %d followed by block %d", prev.BlockNumber, cur.BlockNumber)
	}

	if prev.TxnEnd != cur.TxnStart {
		return errors.Wrapf(ErrDiscontinuity, "txns end at %d, next starts at %d", prev.TxnEnd, cur.TxnStart)
	}

	if prev.End.StateRoot != cur.Start.StateRoot {
		return errors.Wrap(ErrDiscontinuity, "state root mismatch between txns")
	}

	return nil
}

func CombineTxnValues(prev, cur proof.PublicValues) proof.PublicValues {
	pv := prev
	pv.TxnEnd = cur.TxnEnd
	pv.End = cur.End
	return pv
}

// CheckBlockHeight validates the chain linkage of a new block proof
func CheckBlockHeight(prev *proof.BlockProof, agg proof.PublicValues) error {
	if prev == nil {
		return nil
	}

	if prev.Height+1 != agg.BlockNumber {
		return errors.Wrapf(ErrHeight, "previous height %d, block %d", prev.Height, agg.BlockNumber)
	}

	return nil
}
