package node

import (
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/p2p/host/peerstore/pstoremem"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tcfw/chainprover/internal/config"
)

type p2pHost struct {
	host host.Host

	peerStore peerstore.Peerstore
	connMgr   *connmgr.BasicConnMgr
}

func newP2PHost(cfg *config.P2P, l *logrus.Logger) (*p2pHost, error) {
	var err error
	h := &p2pHost{}

	id, err := getIdentity(cfg.IdentityFile, l)
	if err != nil {
		return nil, err
	}

	listeningAddrs, err := buildListeningAddrs(cfg)
	if err != nil {
		return nil, err
	}

	h.connMgr, err = connmgr.NewConnManager(
		cfg.Connections.PeersCountLow,
		cfg.Connections.PeersCountHigh,
	)
	if err != nil {
		return nil, err
	}

	h.peerStore, err = pstoremem.NewPeerstore()
	if err != nil {
		return nil, err
	}

	opts := []libp2p.Option{
		id,
		listeningAddrs,
		libp2p.ConnectionManager(h.connMgr),
		libp2p.Peerstore(h.peerStore),
		libp2p.NATPortMap(),
	}

	if cfg.Relay {
		opts = append(opts, libp2p.EnableRelay())
	}

	h.host, err = libp2p.New(opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating libp2p host")
	}

	return h, nil
}

func buildListeningAddrs(cfg *config.P2P) (libp2p.Option, error) {
	maAddrs := []multiaddr.Multiaddr{}

	for _, addr := range cfg.ListenAddrs {
		maddr, err := multiaddr.NewMultiaddr(addr)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing listen addr %s", addr)
		}
		maAddrs = append(maAddrs, maddr)
	}

	return libp2p.ListenAddrs(maAddrs...), nil
}
