package chain

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/proof"
)

var (
	ErrHandoffConsumed = errors.New("handoff already consumed")
)

// Handoff carries one block proof from the block that produces it to the
// block that chains onto it. It is published once and awaited once.
type Handoff struct {
	ch       chan result
	publish  sync.Once
	consumed chan struct{}
	once     sync.Once
}

type result struct {
	proof *proof.BlockProof
	err   error
}

func NewHandoff() *Handoff {
	return &Handoff{
		ch:       make(chan result, 1),
		consumed: make(chan struct{}),
	}
}

// Resolved returns a handoff that already holds p. A nil p marks the first
// block after a checkpoint.
func Resolved(p *proof.BlockProof) *Handoff {
	h := NewHandoff()
	h.Publish(p, nil)
	return h
}

// Publish hands over the proof or the failure that prevented it. Only the
// first call has any effect.
func (h *Handoff) Publish(p *proof.BlockProof, err error) {
	h.publish.Do(func() {
		h.ch <- result{proof: p, err: err}
	})
}

// Await blocks until the proof is published or ctx is done
func (h *Handoff) Await(ctx context.Context) (*proof.BlockProof, error) {
	select {
	case <-h.consumed:
		return nil, ErrHandoffConsumed
	default:
	}

	select {
	case r := <-h.ch:
		h.once.Do(func() { close(h.consumed) })
		return r.proof, r.err
	case <-h.consumed:
		return nil, ErrHandoffConsumed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
