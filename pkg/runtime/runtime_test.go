package runtime

import (
	"context"
	"io"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
)

type delayOp struct {
	Prefix string `msgpack:"p"`
}

func (d *delayOp) Name() string { return "test_delay" }

func (d *delayOp) Execute(ctx context.Context, in int) (string, error) {
	if in < 0 {
		return "", Fatal(errors.New("negative"), Terminate)
	}

	select {
	case <-time.After(time.Duration(rand.Intn(5)) * time.Millisecond):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	return d.Prefix + strconv.Itoa(in), nil
}

type concat struct{}

func (c *concat) Name() string { return "test_concat" }

func (c *concat) Combine(_ context.Context, a, b string) (string, error) {
	return a + "," + b, nil
}

func (c *concat) Empty() string { return "" }

func testRuntime(t *testing.T) *InMemory {
	reg := NewRegistry()
	RegisterOperation(reg, func() Operation[int, string] { return &delayOp{} })
	RegisterMonoid(reg, func() Monoid[string] { return &concat{} })

	rt := NewInMemory(reg, 4)
	t.Cleanup(func() { rt.Close() })

	return rt
}

func TestApply(t *testing.T) {
	rt := testRuntime(t)

	out, err := Apply[int, string](context.Background(), rt, &delayOp{Prefix: "x"}, 7)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, "x7", out)
}

func TestMapFoldOrdered(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	items := []int{}
	for i := 0; i < 30; i++ {
		items = append(items, i)
	}

	for run := 0; run < 5; run++ {
		s := Map[int, string](ctx, rt, &delayOp{}, SliceIter(items), WithLimit(8))
		out, err := Fold[string](ctx, rt, &concat{}, s)
		if err != nil {
			t.Fatal(err)
		}

		expect := "0"
		for i := 1; i < 30; i++ {
			expect += "," + strconv.Itoa(i)
		}
		assert.Equal(t, expect, out)
	}
}

func TestMapFailureTerminates(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	s := Map[int, string](ctx, rt, &delayOp{}, SliceIter([]int{1, 2, -1, 4}))
	_, err := Fold[string](ctx, rt, &concat{}, s)

	assert.Error(t, err)
	assert.True(t, IsFatal(err))
}

type failingIter struct {
	n int
}

func (f *failingIter) Next() (int, error) {
	f.n++
	if f.n > 2 {
		return 0, errors.New("source broke")
	}
	return f.n, nil
}

func TestMapSourceFailure(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	s := Map[int, string](ctx, rt, &delayOp{}, &failingIter{})
	_, err := Collect(s)

	assert.EqualError(t, err, "source broke")
}

func TestFoldEmpty(t *testing.T) {
	rt := testRuntime(t)
	ctx := context.Background()

	s := Map[int, string](ctx, rt, &delayOp{}, SliceIter([]int{}))
	out, err := Fold[string](ctx, rt, &concat{}, s)

	assert.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestCollectOrdered(t *testing.T) {
	ctx := context.Background()

	s := MapFunc(ctx, SliceIter([]int{3, 2, 1}), func(_ context.Context, idx int, in int) (int, error) {
		time.Sleep(time.Duration(in) * time.Millisecond)
		return in * 10, nil
	})

	out, err := Collect(s)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, []int{30, 20, 10}, out)
}

func TestCancelledContext(t *testing.T) {
	rt := testRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Apply[int, string](ctx, rt, &delayOp{}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestUnknownOp(t *testing.T) {
	rt := testRuntime(t)

	_, err := rt.Run(context.Background(), &Task{Op: "nope"})
	assert.ErrorIs(t, err, ErrUnknownOp)
	assert.True(t, IsFatal(err))
}

func TestClosedRuntime(t *testing.T) {
	rt := NewInMemory(NewRegistry(), 1)
	assert.NoError(t, rt.Close())
	assert.NoError(t, rt.Close())

	_, err := rt.Run(context.Background(), &Task{Op: "x"})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestTaskErrorKeepsFatal(t *testing.T) {
	te := NewTaskError(Fatal(errors.New("bad"), Terminate))
	assert.True(t, te.Fatal)
	assert.True(t, IsFatal(te.Err()))

	te = NewTaskError(io.ErrUnexpectedEOF)
	assert.False(t, IsFatal(te.Err()))
}

func TestTaskID(t *testing.T) {
	a, err := NewTask("op", &delayOp{Prefix: "a"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewTask("op", &delayOp{Prefix: "a"}, 1)
	if err != nil {
		t.Fatal(err)
	}
	c, err := NewTask("op", &delayOp{Prefix: "a"}, 2)
	if err != nil {
		t.Fatal(err)
	}

	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
}
