package snark

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	bnmimc "github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
	"github.com/pkg/errors"
)

// transitionCircuit proves knowledge of the link between two committed
// public value digests
type transitionCircuit struct {
	Start      frontend.Variable `gnark:",public"`
	End        frontend.Variable `gnark:",public"`
	Commitment frontend.Variable `gnark:",public"`

	Link frontend.Variable
}

func (c *transitionCircuit) Define(api frontend.API) error {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return err
	}

	h.Write(c.Start, c.End, c.Link)
	api.AssertIsEqual(h.Sum(), c.Commitment)

	return nil
}

func toField(b []byte) *big.Int {
	var e fr.Element
	e.SetBytes(b)
	return e.BigInt(new(big.Int))
}

func commit(vals ...*big.Int) (*big.Int, error) {
	h := bnmimc.NewMiMC()
	for _, v := range vals {
		var e fr.Element
		e.SetBigInt(v)
		b := e.Bytes()
		if _, err := h.Write(b[:]); err != nil {
			return nil, errors.Wrap(err, "hashing field element")
		}
	}

	return new(big.Int).SetBytes(h.Sum(nil)), nil
}
