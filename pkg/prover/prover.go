//go:generate go run github.com/vektra/mockery/v2 --name Capability

package prover

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
)

var (
	ErrNotInitialized     = errors.New("prover state not initialized")
	ErrAlreadyInitialized = errors.New("prover state already initialized")

	ErrDiscontinuity = errors.New("proof public values are not contiguous")
	ErrHeight        = errors.New("block height does not follow previous proof")
	ErrVerify        = errors.New("proof verification failed")
)

// Capability produces and combines proofs. Implementations must be safe
// for concurrent use.
type Capability interface {
	ProveSegment(ctx context.Context, input *trace.TxnProofInput, seg *segment.Data) (*proof.SegmentProof, error)
	AggregateSegments(ctx context.Context, lhs, rhs proof.SegmentAggregatable, isDummyTail bool) (*proof.SegmentAggProof, error)
	AggregateTxns(ctx context.Context, prev *proof.TxnAggProof, cur *proof.SegmentAggProof) (*proof.TxnAggProof, error)
	ProveBlock(ctx context.Context, prev *proof.BlockProof, agg *proof.TxnAggProof) (*proof.BlockProof, error)
	Dummy() proof.Intern
}

var (
	mu    sync.RWMutex
	state Capability
)

// Init installs the process wide capability. It may only be called once.
func Init(c Capability) error {
	mu.Lock()
	defer mu.Unlock()

	if state != nil {
		return ErrAlreadyInitialized
	}

	state = c

	return nil
}

func Global() (Capability, error) {
	mu.RLock()
	defer mu.RUnlock()

	if state == nil {
		return nil, ErrNotInitialized
	}

	return state, nil
}

// Override replaces the process wide capability until restore is called.
// Intended for tests.
func Override(c Capability) (restore func()) {
	mu.Lock()
	prev := state
	state = c
	mu.Unlock()

	return func() {
		mu.Lock()
		state = prev
		mu.Unlock()
	}
}
