package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/vmihailenco/msgpack/v5"
)

// ProofStore keeps finished block proofs and a cache of block hashes
type ProofStore interface {
	PutProof(context.Context, *proof.BlockProof) (cid.Cid, error)
	GetProof(ctx context.Context, height uint64) (*proof.BlockProof, error)
	Latest(context.Context) (*proof.BlockProof, error)

	PutBlockHash(ctx context.Context, number uint64, h common.Hash) error
	GetBlockHash(ctx context.Context, number uint64) (common.Hash, error)

	Close() error
}

// EncodeProof returns the stored form of a proof and its content ID
func EncodeProof(p *proof.BlockProof) ([]byte, cid.Cid, error) {
	d, err := msgpack.Marshal(p)
	if err != nil {
		return nil, cid.Undef, errors.Wrap(err, "marshalling proof")
	}

	h, err := multihash.Sum(d, multihash.SHA3_256, multihash.DefaultLengths[multihash.SHA3_256])
	if err != nil {
		return nil, cid.Undef, errors.Wrap(err, "hashing proof")
	}

	return d, cid.NewCidV1(cid.Raw, h), nil
}

func DecodeProof(d []byte) (*proof.BlockProof, error) {
	p := &proof.BlockProof{}
	if err := msgpack.Unmarshal(d, p); err != nil {
		return nil, errors.Wrap(err, "unmarshalling proof")
	}

	return p, nil
}

// PreviousProof resolves the proof a range starting at start should link to.
// A missing proof means the range starts from a checkpoint.
func PreviousProof(ctx context.Context, s ProofStore, start uint64) (*proof.BlockProof, error) {
	if start == 0 {
		return nil, nil
	}

	p, err := s.GetProof(ctx, start-1)
	if err == ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return p, nil
}
