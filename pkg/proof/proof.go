package proof

import (
	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/trace"
)

var (
	ErrShape = errors.New("unexpected proof variant")
)

// Intern is an opaque proof produced by a proving capability
type Intern []byte

// PublicValues are the values a proof commits to
type PublicValues struct {
	BlockNumber uint64          `json:"block_number" msgpack:"b"`
	TxnStart    int             `json:"txn_start" msgpack:"ts"`
	TxnEnd      int             `json:"txn_end" msgpack:"te"`
	Start       trace.Registers `json:"start" msgpack:"s"`
	End         trace.Registers `json:"end" msgpack:"e"`
}

type SegmentProof struct {
	Intern Intern       `json:"intern" msgpack:"i"`
	PV     PublicValues `json:"public_values" msgpack:"p"`
}

type SegmentAggProof struct {
	Intern Intern       `json:"intern" msgpack:"i"`
	PV     PublicValues `json:"public_values" msgpack:"p"`
}

type TxnAggProof struct {
	Intern Intern       `json:"intern" msgpack:"i"`
	PV     PublicValues `json:"public_values" msgpack:"p"`
}

// BlockProof is the final proof of a block, chained to its predecessor
type BlockProof struct {
	Height uint64       `json:"b_height" msgpack:"h"`
	Intern Intern       `json:"intern" msgpack:"i"`
	PV     PublicValues `json:"public_values" msgpack:"p"`
}
