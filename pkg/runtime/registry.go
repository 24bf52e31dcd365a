package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/internal/metrics"
	"github.com/vmihailenco/msgpack/v5"
)

// Handler executes an encoded task
type Handler func(ctx context.Context, params, input []byte) ([]byte, error)

// Operation maps a single input to a single output
type Operation[I, O any] interface {
	Name() string
	Execute(ctx context.Context, in I) (O, error)
}

// Monoid combines two values of the same type. Combine must be associative
// but the runtime only ever combines left to right.
type Monoid[T any] interface {
	Name() string
	Combine(ctx context.Context, a, b T) (T, error)
	Empty() T
}

// Pair is the input of a monoid combination task
type Pair[T any] struct {
	A T `msgpack:"a"`
	B T `msgpack:"b"`
}

// Registry resolves task operation names to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

func (r *Registry) Handle(name string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[name] = h
}

func (r *Registry) Ops() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		ops = append(ops, k)
	}

	return ops
}

func (r *Registry) Execute(ctx context.Context, t *Task) ([]byte, error) {
	r.mu.RLock()
	h, ok := r.handlers[t.Op]
	r.mu.RUnlock()

	if !ok {
		return nil, Fatal(errors.Wrap(ErrUnknownOp, t.Op), Terminate)
	}

	start := time.Now()
	out, err := h(ctx, t.Params, t.Input)
	metrics.ObserveOp(t.Op, time.Since(start), err)

	return out, err
}

// RegisterOperation exposes an operation to the registry. newOp must return a
// pointer to a fresh operation that task params can be decoded into.
func RegisterOperation[I, O any](r *Registry, newOp func() Operation[I, O]) {
	r.Handle(newOp().Name(), func(ctx context.Context, params, input []byte) ([]byte, error) {
		op := newOp()
		if err := msgpack.Unmarshal(params, op); err != nil {
			return nil, Fatal(errors.Wrap(err, "decoding params"), Terminate)
		}

		var in I
		if err := msgpack.Unmarshal(input, &in); err != nil {
			return nil, Fatal(errors.Wrap(err, "decoding input"), Terminate)
		}

		out, err := op.Execute(ctx, in)
		if err != nil {
			return nil, err
		}

		return encodeOutput(out)
	})
}

// RegisterMonoid exposes a monoid's combination to the registry
func RegisterMonoid[T any](r *Registry, newMonoid func() Monoid[T]) {
	r.Handle(newMonoid().Name(), func(ctx context.Context, params, input []byte) ([]byte, error) {
		m := newMonoid()
		if err := msgpack.Unmarshal(params, m); err != nil {
			return nil, Fatal(errors.Wrap(err, "decoding params"), Terminate)
		}

		var in Pair[T]
		if err := msgpack.Unmarshal(input, &in); err != nil {
			return nil, Fatal(errors.Wrap(err, "decoding input"), Terminate)
		}

		out, err := m.Combine(ctx, in.A, in.B)
		if err != nil {
			return nil, err
		}

		return encodeOutput(out)
	})
}

func encodeOutput(out interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(out)
	if err != nil {
		return nil, Fatal(errors.Wrap(err, "encoding output"), Terminate)
	}

	return b, nil
}
