package storage

import (
	"context"
	"encoding/binary"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"github.com/pkg/errors"

	"github.com/tcfw/chainprover/internal/utils/logging"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/storage"
)

var (
	_ storage.ProofStore = (*PebbleStore)(nil)
)

const (
	cacheSize = 1 << 20 * 100
)

type keyType byte

const (
	proofTPrefix keyType = iota + 1
	proofIDTPrefix
	blockHashTPrefix
	latestTPrefix
)

// PebbleStore persists proofs and block hashes in a local pebble database
type PebbleStore struct {
	mu     sync.RWMutex
	db     *pebble.DB
	cache  *pebble.Cache
	closed bool
}

func NewPebbleStore(dir string) (*PebbleStore, error) {
	c := pebble.NewCache(cacheSize)
	tc := pebble.NewTableCache(c, 16, 100)

	db, err := pebble.Open(dir, &pebble.Options{Cache: c, TableCache: tc})
	if err != nil {
		c.Unref()
		return nil, errors.Wrap(err, "opening proof store")
	}

	if err := tc.Unref(); err != nil {
		logging.WithError(err).Warn("releasing table cache")
	}

	logging.Entry().WithField("dir", dir).Debug("opened proof store")

	return &PebbleStore{db: db, cache: c}, nil
}

func (s *PebbleStore) get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	d, done, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, storage.ErrNotFound
	} else if err != nil {
		return nil, err
	}
	defer done.Close()

	out := make([]byte, len(d))
	copy(out, d)

	return out, nil
}

func (s *PebbleStore) PutProof(_ context.Context, p *proof.BlockProof) (cid.Cid, error) {
	d, id, err := storage.EncodeProof(p)
	if err != nil {
		return cid.Undef, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return cid.Undef, storage.ErrClosed
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(typedKey(proofTPrefix, heightKey(p.Height)), d, nil); err != nil {
		return cid.Undef, errors.Wrap(err, "staging proof")
	}
	if err := batch.Set(typedKey(proofIDTPrefix, heightKey(p.Height)), id.Bytes(), nil); err != nil {
		return cid.Undef, errors.Wrap(err, "staging proof id")
	}

	if err := batch.Commit(pebble.Sync); err != nil {
		return cid.Undef, errors.Wrap(err, "committing proof")
	}

	return id, nil
}

func (s *PebbleStore) GetProof(_ context.Context, height uint64) (*proof.BlockProof, error) {
	d, err := s.get(typedKey(proofTPrefix, heightKey(height)))
	if err != nil {
		return nil, err
	}

	return storage.DecodeProof(d)
}

// ProofID returns the content ID recorded for the proof at height
func (s *PebbleStore) ProofID(_ context.Context, height uint64) (cid.Cid, error) {
	d, err := s.get(typedKey(proofIDTPrefix, heightKey(height)))
	if err != nil {
		return cid.Undef, err
	}

	return cid.Cast(d)
}

func (s *PebbleStore) Latest(_ context.Context) (*proof.BlockProof, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrClosed
	}

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{byte(proofTPrefix)},
		UpperBound: []byte{byte(proofTPrefix) + 1},
	})
	if err != nil {
		return nil, errors.Wrap(err, "opening proof iterator")
	}
	defer iter.Close()

	if !iter.Last() {
		return nil, storage.ErrNotFound
	}

	d := append([]byte(nil), iter.Value()...)

	return storage.DecodeProof(d)
}

func (s *PebbleStore) PutBlockHash(_ context.Context, number uint64, h common.Hash) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrClosed
	}

	return s.db.Set(typedKey(blockHashTPrefix, heightKey(number)), h.Bytes(), pebble.NoSync)
}

func (s *PebbleStore) GetBlockHash(_ context.Context, number uint64) (common.Hash, error) {
	d, err := s.get(typedKey(blockHashTPrefix, heightKey(number)))
	if err != nil {
		return common.Hash{}, err
	}

	if len(d) != common.HashLength {
		return common.Hash{}, errors.Errorf("corrupt hash for block %d", number)
	}

	return common.BytesToHash(d), nil
}

func (s *PebbleStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	err := s.db.Close()
	s.cache.Unref()

	return err
}

func heightKey(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

func typedKey(kType keyType, parts ...[]byte) []byte {
	n := 1
	for _, p := range parts {
		n += len(p)
	}

	k := make([]byte, 0, n)
	k = append(k, byte(kType))
	for _, p := range parts {
		k = append(k, p...)
	}

	return k
}
