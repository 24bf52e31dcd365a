package node

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tcfw/chainprover/pkg/runtime"
)

var (
	_ runtime.Runtime = (*Dispatcher)(nil)

	ErrResultMismatch = errors.New("result does not match task")
)

type DispatcherOption func(*Dispatcher)

func WithAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		d.attempts = n
	}
}

func WithBackoff(min, max time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.minBackoff = min
		d.maxBackoff = max
	}
}

// Dispatcher runs tasks on remote worker nodes, round robin. Transport
// failures and non fatal task failures are retried on the next worker.
type Dispatcher struct {
	n       *Node
	workers []peer.ID
	next    atomic.Uint64

	attempts   int
	minBackoff time.Duration
	maxBackoff time.Duration

	closed atomic.Bool
	logger *logrus.Logger
}

func NewDispatcher(n *Node, workers []peer.ID, opts ...DispatcherOption) (*Dispatcher, error) {
	if len(workers) == 0 {
		return nil, runtime.ErrNoWorkers
	}

	d := &Dispatcher{
		n:          n,
		workers:    workers,
		attempts:   3,
		minBackoff: 200 * time.Millisecond,
		maxBackoff: 10 * time.Second,
		logger:     n.logger,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d, nil
}

// DialWorkers connects to each worker address and builds a dispatcher over them
func DialWorkers(ctx context.Context, n *Node, addrs []string, opts ...DispatcherOption) (*Dispatcher, error) {
	workers := []peer.ID{}

	for _, a := range addrs {
		id, err := n.Connect(ctx, a)
		if err != nil {
			n.logger.WithError(err).WithField("addr", a).Warn("skipping worker")
			continue
		}
		workers = append(workers, id)
	}

	return NewDispatcher(n, workers, opts...)
}

func (d *Dispatcher) pick() peer.ID {
	i := d.next.Add(1) - 1
	return d.workers[i%uint64(len(d.workers))]
}

func (d *Dispatcher) Run(ctx context.Context, t *runtime.Task) ([]byte, error) {
	if d.closed.Load() {
		return nil, runtime.ErrClosed
	}

	bo := &backoff.Backoff{
		Min: d.minBackoff,
		Max: d.maxBackoff,
	}

	var lastErr error

	for attempt := 0; attempt < d.attempts; attempt++ {
		w := d.pick()

		out, err := d.runOn(ctx, w, t)
		if err == nil {
			return out, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		var te *runtime.TaskError
		if errors.As(err, &te) && te.Fatal {
			return nil, te.Err()
		}

		lastErr = err

		if attempt == d.attempts-1 {
			break
		}

		dur := bo.Duration()
		d.logger.WithError(err).WithField("op", t.Op).WithField("worker", w.String()).WithField("retry_in", dur).Warn("task attempt failed")

		select {
		case <-time.After(dur):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	var te *runtime.TaskError
	if errors.As(lastErr, &te) {
		return nil, te.Err()
	}

	return nil, errors.Wrapf(lastErr, "dispatching %s", t.Op)
}

func (d *Dispatcher) runOn(ctx context.Context, w peer.ID, t *runtime.Task) ([]byte, error) {
	s, err := d.n.Host().NewStream(ctx, w, TaskProtocolID)
	if err != nil {
		return nil, errors.Wrap(err, "opening task stream")
	}

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.Reset()
		case <-done:
		}
	}()

	b, err := t.Marshal()
	if err != nil {
		s.Reset()
		return nil, err
	}

	rw := newStreamRW(s)

	if err := rw.Write(b); err != nil {
		s.Reset()
		return nil, errors.Wrap(err, "sending task")
	}

	rb, err := rw.Read()
	if err != nil {
		s.Reset()
		return nil, errors.Wrap(err, "reading result")
	}
	s.Close()

	res := &runtime.Result{}
	if err := msgpack.Unmarshal(rb, res); err != nil {
		return nil, errors.Wrap(err, "decoding result")
	}

	if res.ID != t.ID {
		return nil, ErrResultMismatch
	}

	if res.Err != nil {
		return nil, res.Err
	}

	return res.Output, nil
}

// Workers returns how many workers are currently connected
func (d *Dispatcher) Workers() int {
	var c int
	for _, w := range d.workers {
		if d.n.connected(w) {
			c++
		}
	}

	return c
}

func (d *Dispatcher) Close() error {
	d.closed.Store(true)
	return nil
}
