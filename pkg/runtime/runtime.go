package runtime

import (
	"context"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Runtime executes tasks, locally or on remote workers
type Runtime interface {
	Run(ctx context.Context, t *Task) ([]byte, error)
	Close() error
}

// Apply runs a single operation on a literal input
func Apply[I, O any](ctx context.Context, rt Runtime, op Operation[I, O], in I) (O, error) {
	var out O

	t, err := NewTask(op.Name(), op, in)
	if err != nil {
		return out, Fatal(err, Terminate)
	}

	b, err := rt.Run(ctx, t)
	if err != nil {
		return out, err
	}

	if err := msgpack.Unmarshal(b, &out); err != nil {
		return out, Fatal(errors.Wrapf(err, "decoding %s output", op.Name()), Terminate)
	}

	return out, nil
}

func combine[T any](ctx context.Context, rt Runtime, m Monoid[T], a, b T) (T, error) {
	var out T

	t, err := NewTask(m.Name(), m, &Pair[T]{A: a, B: b})
	if err != nil {
		return out, Fatal(err, Terminate)
	}

	res, err := rt.Run(ctx, t)
	if err != nil {
		return out, err
	}

	if err := msgpack.Unmarshal(res, &out); err != nil {
		return out, Fatal(errors.Wrapf(err, "decoding %s output", m.Name()), Terminate)
	}

	return out, nil
}
