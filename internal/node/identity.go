package node

import (
	"crypto/rand"
	"os"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// getIdentity loads the node key from file, creating it on first use. An
// empty path gives the node a throwaway identity.
func getIdentity(file string, l *logrus.Logger) (libp2p.Option, error) {
	if file == "" {
		l.Debugf("using ephemeral Ed25519 identity")

		priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
		if err != nil {
			return nil, errors.Wrap(err, "generating priv key")
		}

		return libp2p.Identity(priv), nil
	}

	_, err := os.Stat(file)
	if errors.Is(err, os.ErrNotExist) {
		if err := generateIdentity(file, l); err != nil {
			return nil, errors.Wrap(err, "creating new identity")
		}
	} else if err != nil {
		return nil, errors.Wrap(err, "checking identity file")
	} else {
		l.Debugf("using existing Ed25519 identity")
	}

	idB, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrap(err, "reading identity file")
	}

	priv, err := crypto.UnmarshalPrivateKey(idB)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshaling private key")
	}

	return libp2p.Identity(priv), nil
}

func generateIdentity(file string, l *logrus.Logger) error {
	l.Debugf("creating a new Ed25519 identity")
	priv, _, err := crypto.GenerateKeyPairWithReader(crypto.Ed25519, -1, rand.Reader)
	if err != nil {
		return errors.Wrap(err, "generating priv key")
	}

	b, err := crypto.MarshalPrivateKey(priv)
	if err != nil {
		return errors.Wrap(err, "marshaling new private key")
	}

	return os.WriteFile(file, b, 0600)
}
