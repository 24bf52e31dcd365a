package node

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/event"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/chainprover/internal/config"
	"github.com/tcfw/chainprover/pkg/runtime"
)

// Node is a libp2p host that either executes proving tasks for a leader or
// dispatches tasks to worker nodes
type Node struct {
	p2p *p2pHost

	registry *runtime.Registry
	handlers map[protocol.ID]interface{}

	logger *logrus.Logger

	closeOnce sync.Once
}

func (n *Node) Host() host.Host {
	return n.p2p.host
}

func (n *Node) ID() peer.ID {
	return n.p2p.host.ID()
}

// Addrs returns the full dialable addresses of the node
func (n *Node) Addrs() []multiaddr.Multiaddr {
	id, err := multiaddr.NewMultiaddr("/p2p/" + n.ID().String())
	if err != nil {
		return nil
	}

	addrs := []multiaddr.Multiaddr{}
	for _, a := range n.p2p.host.Addrs() {
		addrs = append(addrs, a.Encapsulate(id))
	}

	return addrs
}

func NewNode(ctx context.Context, cfg *config.P2P, opts ...NodeOption) (*Node, error) {
	n := &Node{
		handlers: make(map[protocol.ID]interface{}),
		logger:   logrus.StandardLogger(),
	}

	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}

	var err error
	n.p2p, err = newP2PHost(cfg, n.logger)
	if err != nil {
		return nil, err
	}

	go n.watchEvents()

	if err := n.setupStreamHandlers(); err != nil {
		n.p2p.host.Close()
		return nil, errors.Wrap(err, "attaching stream handlers")
	}

	if err := n.bootstrap(ctx, cfg.BootstrapPeers); err != nil {
		n.p2p.host.Close()
		return nil, errors.Wrap(err, "bootstrapping p2p")
	}

	return n, nil
}

func (n *Node) watchEvents() {
	sub, err := n.p2p.host.EventBus().Subscribe(event.WildcardSubscription)
	if err != nil {
		n.logger.WithError(err).Error("subscribing to p2p events")
		return
	}

	defer sub.Close()
	for e := range sub.Out() {
		switch evt := e.(type) {
		case event.EvtLocalAddressesUpdated:
			for _, addr := range evt.Current {
				if addr.Action != event.Maintained {
					actionStr := "added"
					if addr.Action == event.Removed {
						actionStr = "removed"
					}
					n.logger.WithField("addr", addr.Address.String()).WithField("action", actionStr).Info("updated reachability")
				}
			}
		case event.EvtPeerConnectednessChanged:
			n.logger.WithField("peer", evt.Peer.String()).WithField("state", evt.Connectedness.String()).Debug("peer connectedness changed")
		default:
			n.logger.Debugf("unhandled event %T", evt)
		}
	}
}

// Connect dials a peer by its full multiaddr and returns its ID
func (n *Node) Connect(ctx context.Context, addr string) (peer.ID, error) {
	ma, err := multiaddr.NewMultiaddr(addr)
	if err != nil {
		return "", errors.Wrap(err, "parsing peer multiaddr")
	}

	pi, err := peer.AddrInfoFromP2pAddr(ma)
	if err != nil {
		return "", errors.Wrap(err, "reading peer info")
	}

	if err := n.p2p.host.Connect(ctx, *pi); err != nil {
		return "", errors.Wrapf(err, "connecting to %s", pi.ID)
	}

	n.p2p.connMgr.Protect(pi.ID, "worker")

	return pi.ID, nil
}

func (n *Node) ListenAndServe(ctx context.Context) error {
	n.logger.WithField("addrs", n.Addrs()).WithField("id", n.ID().String()).Info("Starting listening")

	<-ctx.Done()

	return n.Close()
}

func (n *Node) Close() error {
	var err error

	n.closeOnce.Do(func() {
		n.logger.Warn("Shutting down")

		for id := range n.handlers {
			n.p2p.host.RemoveStreamHandler(id)
		}

		err = n.p2p.host.Close()
	})

	return err
}

func (n *Node) bootstrap(ctx context.Context, peers []string) error {
	n.logger.Debugf("bootstrapping P2P host")

	if len(peers) == 0 {
		n.logger.Debug("no bootstrapping peers")
	}

	var wg sync.WaitGroup

	for _, peerAddr := range peers {
		ma, err := multiaddr.NewMultiaddr(peerAddr)
		if err != nil {
			return errors.Wrap(err, "parsing bootstrap multiaddr")
		}

		peerinfo, err := peer.AddrInfoFromP2pAddr(ma)
		if err != nil {
			return errors.Wrap(err, "reading bootstrap peer info")
		}

		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := n.p2p.host.Connect(ctx, *peerinfo); err != nil {
				n.logger.WithField("peer", peerinfo.String()).WithError(err).Warning("failed to connect to bootstrap peer")
			} else {
				n.logger.Debug("Connection established with bootstrap peer:", *peerinfo)
			}
		}()
	}

	wg.Wait()

	return nil
}

func (n *Node) connected(p peer.ID) bool {
	return n.p2p.host.Network().Connectedness(p) == network.Connected
}
