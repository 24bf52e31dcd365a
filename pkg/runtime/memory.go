package runtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

var (
	_ Runtime = (*InMemory)(nil)
)

type InMemoryOption func(*InMemory)

func WithLogger(l *logrus.Logger) InMemoryOption {
	return func(m *InMemory) {
		m.logger = l
	}
}

// InMemory executes tasks on a fixed pool of local workers. Tasks go through
// the same encoding as remote execution.
type InMemory struct {
	reg     *Registry
	workers int
	logger  *logrus.Logger

	jobs   chan *job
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once

	executed atomic.Uint64
	failed   atomic.Uint64
}

type job struct {
	ctx  context.Context
	task *Task
	res  chan jobResult
}

type jobResult struct {
	out []byte
	err error
}

func NewInMemory(reg *Registry, workers int, opts ...InMemoryOption) *InMemory {
	if workers < 1 {
		workers = 1
	}

	m := &InMemory{
		reg:     reg,
		workers: workers,
		logger:  logrus.StandardLogger(),
		jobs:    make(chan *job),
		stopCh:  make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go m.worker(i)
	}

	return m
}

func (m *InMemory) worker(id int) {
	defer m.wg.Done()

	for {
		select {
		case <-m.stopCh:
			return
		case j := <-m.jobs:
			if err := j.ctx.Err(); err != nil {
				j.res <- jobResult{err: err}
				continue
			}

			out, err := m.reg.Execute(j.ctx, j.task)
			m.executed.Add(1)
			if err != nil {
				m.failed.Add(1)
				m.logger.WithError(err).WithField("op", j.task.Op).WithField("worker", id).Debug("task failed")
			}

			j.res <- jobResult{out: out, err: err}
		}
	}
}

func (m *InMemory) Run(ctx context.Context, t *Task) ([]byte, error) {
	j := &job{ctx: ctx, task: t, res: make(chan jobResult, 1)}

	select {
	case m.jobs <- j:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-m.stopCh:
		return nil, ErrClosed
	}

	select {
	case r := <-j.res:
		return r.out, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stats returns the number of executed and failed tasks
func (m *InMemory) Stats() (uint64, uint64) {
	return m.executed.Load(), m.failed.Load()
}

func (m *InMemory) Workers() int {
	return m.workers
}

func (m *InMemory) Close() error {
	m.once.Do(func() {
		close(m.stopCh)
		m.wg.Wait()
	})

	return nil
}
