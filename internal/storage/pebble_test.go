package storage

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/storage"
)

func openTestStore(t *testing.T) *PebbleStore {
	s, err := NewPebbleStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}

func TestPebbleProofs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.Latest(ctx)
	assert.Equal(t, storage.ErrNotFound, err)

	for _, h := range []uint64{255, 256, 3} {
		obj := &proof.BlockProof{Height: h, Intern: proof.Intern{byte(h)}, PV: proof.PublicValues{BlockNumber: h}}

		id, err := s.PutProof(ctx, obj)
		if err != nil {
			t.Fatal(err)
		}

		got, err := s.ProofID(ctx, h)
		if err != nil {
			t.Fatal(err)
		}
		assert.Equal(t, id, got)
	}

	p, err := s.GetProof(ctx, 255)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, proof.Intern{255}, p.Intern)

	l, err := s.Latest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(256), l.Height)

	_, err = s.GetProof(ctx, 4)
	assert.Equal(t, storage.ErrNotFound, err)
}

func TestPebbleReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	h := common.HexToHash("0x1234")
	assert.NoError(t, s.PutBlockHash(ctx, 77, h))
	_, err = s.PutProof(ctx, &proof.BlockProof{Height: 77, PV: proof.PublicValues{BlockNumber: 77}})
	assert.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = s.GetBlockHash(ctx, 77)
	assert.Equal(t, storage.ErrClosed, err)

	s, err = NewPebbleStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	got, err := s.GetBlockHash(ctx, 77)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, h, got)

	p, err := storage.PreviousProof(ctx, s, 78)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, uint64(77), p.Height)
}
