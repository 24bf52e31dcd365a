package runtime

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Iterator yields items until it returns io.EOF
type Iterator[T any] interface {
	Next() (T, error)
}

type sliceIter[T any] struct {
	items []T
	i     int
}

func (s *sliceIter[T]) Next() (T, error) {
	var zero T
	if s.i >= len(s.items) {
		return zero, io.EOF
	}

	v := s.items[s.i]
	s.i++

	return v, nil
}

func SliceIter[T any](items []T) Iterator[T] {
	return &sliceIter[T]{items: items}
}

// Item is a stream value tagged with the position of its source item
type Item[T any] struct {
	Index int
	Value T
}

// Stream is the unordered output of a map directive
type Stream[T any] struct {
	items  chan Item[T]
	err    error
	cancel context.CancelFunc
}

// Items is closed once every item has been produced or the map failed
func (s *Stream[T]) Items() <-chan Item[T] {
	return s.items
}

// Err is only valid once Items has been closed
func (s *Stream[T]) Err() error {
	return s.err
}

// Close aborts any remaining work and waits for it to wind down
func (s *Stream[T]) Close() {
	s.cancel()
	for range s.items {
	}
}

type mapConfig struct {
	limit int
}

type MapOption func(*mapConfig)

// WithLimit bounds the number of items in flight, which also throttles how
// far ahead the source is pulled
func WithLimit(n int) MapOption {
	return func(c *mapConfig) {
		c.limit = n
	}
}

// MapFunc applies fn to every item concurrently. Results are emitted in
// completion order. The first failure cancels all remaining items.
func MapFunc[I, O any](ctx context.Context, it Iterator[I], fn func(ctx context.Context, idx int, in I) (O, error), opts ...MapOption) *Stream[O] {
	cfg := &mapConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	if cfg.limit > 0 {
		g.SetLimit(cfg.limit)
	}

	s := &Stream[O]{
		items:  make(chan Item[O]),
		cancel: cancel,
	}

	go func() {
		defer close(s.items)

		for idx := 0; gctx.Err() == nil; idx++ {
			in, err := it.Next()
			if err == io.EOF {
				break
			} else if err != nil {
				g.Go(func() error { return err })
				break
			}

			i := idx
			g.Go(func() error {
				out, err := fn(gctx, i, in)
				if err != nil {
					return err
				}

				select {
				case s.items <- Item[O]{Index: i, Value: out}:
					return nil
				case <-gctx.Done():
					return gctx.Err()
				}
			})
		}

		s.err = g.Wait()
		if s.err == nil {
			s.err = ctx.Err()
		}
	}()

	return s
}

// Map runs op on the runtime for every item of the iterator
func Map[I, O any](ctx context.Context, rt Runtime, op Operation[I, O], it Iterator[I], opts ...MapOption) *Stream[O] {
	return MapFunc(ctx, it, func(ctx context.Context, _ int, in I) (O, error) {
		return Apply(ctx, rt, op, in)
	}, opts...)
}

// Fold reduces a stream strictly left to right by source index, combining
// as soon as the next contiguous item is available. Folding an empty stream
// yields the monoid's empty value.
func Fold[T any](ctx context.Context, rt Runtime, m Monoid[T], s *Stream[T]) (T, error) {
	defer s.Close()

	var (
		acc     T
		have    bool
		next    int
		pending = map[int]T{}
	)

	for it := range s.Items() {
		pending[it.Index] = it.Value

		for {
			v, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if !have {
				acc, have = v, true
				continue
			}

			var err error
			acc, err = combine(ctx, rt, m, acc, v)
			if err != nil {
				var zero T
				return zero, err
			}
		}
	}

	if err := s.Err(); err != nil {
		var zero T
		return zero, err
	}

	if len(pending) != 0 {
		var zero T
		return zero, errors.Errorf("fold missing item %d", next)
	}

	if !have {
		return m.Empty(), nil
	}

	return acc, nil
}

// Collect gathers a stream into source order
func Collect[T any](s *Stream[T]) ([]T, error) {
	defer s.Close()

	items := []Item[T]{}
	for it := range s.Items() {
		items = append(items, it)
	}

	if err := s.Err(); err != nil {
		return nil, err
	}

	out := make([]T, len(items))
	for _, it := range items {
		out[it.Index] = it.Value
	}

	return out, nil
}
