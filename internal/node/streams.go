package node

import (
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/protocol"
)

type handlerSetup func(n *Node) (network.StreamHandler, interface{}, error)

var (
	streamHandlers = map[protocol.ID]handlerSetup{
		TaskProtocolID: newTaskStreamHandler,
	}
)

func (n *Node) setupStreamHandlers() error {
	p2p := n.p2p.host

	for id, handler := range streamHandlers {
		handler, inst, err := handler(n)
		if err != nil {
			return err
		}
		if inst == nil {
			continue
		}

		p2p.SetStreamHandler(id, handler)
		n.handlers[id] = inst
	}

	return nil
}

func newTaskStreamHandler(n *Node) (network.StreamHandler, interface{}, error) {
	if n.registry == nil {
		n.logger.Debug("no registry, not serving tasks")
		return nil, nil, nil
	}

	w := newWorker(n.registry, n.logger)

	return w.Handle, w, nil
}
