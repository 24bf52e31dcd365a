package node

import (
	"context"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/tcfw/chainprover/pkg/runtime"
)

const (
	TaskProtocolID protocol.ID = "/chainprover/task/1.0.0"

	readTimeout = 30 * time.Second
)

// worker executes tasks received from a leader, one task per stream
type worker struct {
	reg    *runtime.Registry
	logger *logrus.Logger
}

func newWorker(reg *runtime.Registry, l *logrus.Logger) *worker {
	return &worker{reg: reg, logger: l}
}

func (w *worker) Handle(s network.Stream) {
	l := w.logger.WithField("peer", s.Conn().RemotePeer().String())

	rw := newStreamRW(s)

	s.SetReadDeadline(time.Now().Add(readTimeout))
	b, err := rw.Read()
	if err != nil {
		l.WithError(err).Warn("reading task")
		s.Reset()
		return
	}
	s.SetReadDeadline(time.Time{})

	t := &runtime.Task{}
	if err := t.Unmarshal(b); err != nil {
		l.WithError(err).Warn("decoding task")
		s.Reset()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// the leader resets the stream when it gives up on the task
	go func() {
		var one [1]byte
		if _, err := s.Read(one[:]); err != nil {
			cancel()
		}
	}()

	res := &runtime.Result{ID: t.ID}

	out, err := w.reg.Execute(ctx, t)
	if err != nil {
		l.WithError(err).WithField("op", t.Op).Debug("task failed")
		res.Err = runtime.NewTaskError(err)
	} else {
		res.Output = out
	}

	rb, err := msgpack.Marshal(res)
	if err != nil {
		l.WithError(err).Error("encoding result")
		s.Reset()
		return
	}

	if err := rw.Write(rb); err != nil {
		l.WithError(err).Warn("sending result")
		s.Reset()
		return
	}

	s.Close()
}
