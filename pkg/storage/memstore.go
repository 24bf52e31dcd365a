package storage

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"github.com/tcfw/chainprover/pkg/proof"
)

var (
	_ ProofStore = (*MemStore)(nil)
)

type MemStore struct {
	mu sync.RWMutex

	objects map[cid.Cid][]byte
	heights map[uint64]cid.Cid
	hashes  map[uint64]common.Hash

	latest    uint64
	hasLatest bool
}

func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[cid.Cid][]byte),
		heights: make(map[uint64]cid.Cid),
		hashes:  make(map[uint64]common.Hash),
	}
}

func (m *MemStore) PutProof(_ context.Context, p *proof.BlockProof) (cid.Cid, error) {
	d, id, err := EncodeProof(p)
	if err != nil {
		return cid.Undef, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.objects[id] = d
	m.heights[p.Height] = id

	if !m.hasLatest || p.Height > m.latest {
		m.latest = p.Height
		m.hasLatest = true
	}

	return id, nil
}

func (m *MemStore) GetProof(_ context.Context, height uint64) (*proof.BlockProof, error) {
	m.mu.RLock()
	id, ok := m.heights[height]
	d := m.objects[id]
	m.mu.RUnlock()

	if !ok || d == nil {
		return nil, ErrNotFound
	}

	return DecodeProof(d)
}

func (m *MemStore) Latest(ctx context.Context) (*proof.BlockProof, error) {
	m.mu.RLock()
	h, ok := m.latest, m.hasLatest
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}

	return m.GetProof(ctx, h)
}

func (m *MemStore) PutBlockHash(_ context.Context, number uint64, h common.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.hashes[number] = h

	return nil
}

func (m *MemStore) GetBlockHash(_ context.Context, number uint64) (common.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	h, ok := m.hashes[number]
	if !ok {
		return common.Hash{}, ErrNotFound
	}

	return h, nil
}

func (m *MemStore) Close() error {
	return nil
}
