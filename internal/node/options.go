package node

import (
	"github.com/sirupsen/logrus"

	"github.com/tcfw/chainprover/pkg/runtime"
)

type NodeOption func(*Node) error

func WithLogger(l *logrus.Logger) NodeOption {
	return func(n *Node) error {
		n.logger = l
		return nil
	}
}

// WithRegistry makes the node serve tasks for the operations in reg
func WithRegistry(reg *runtime.Registry) NodeOption {
	return func(n *Node) error {
		n.registry = reg
		return nil
	}
}
