package trace

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// HistoryDepth is the number of previous block hashes made available to a block
const HistoryDepth = 256

var (
	ErrMalformedStep       = errors.New("malformed step")
	ErrBlockNumberOverflow = errors.New("block number overflows u64")
	ErrInvalidBatchSize    = errors.New("batch size must be at least 1")
	ErrHistoryTooLong      = errors.New("too many previous block hashes")
)

// Registers is the execution checkpoint captured at segment boundaries
type Registers struct {
	Cycle     uint64      `json:"cycle" msgpack:"c"`
	StateRoot common.Hash `json:"state_root" msgpack:"r"`
}

// Apply executes a single step
func (r Registers) Apply(s Step) (Registers, error) {
	if s.Cycles == 0 {
		return r, errors.Wrap(ErrMalformedStep, "zero cycle step")
	}

	return Registers{
		Cycle:     r.Cycle + uint64(s.Cycles),
		StateRoot: NextRoot(r.StateRoot, s.Data),
	}, nil
}

// NextRoot folds step data into a state root
func NextRoot(root common.Hash, data []byte) common.Hash {
	return crypto.Keccak256Hash(root[:], data)
}

type Step struct {
	Cycles uint32        `json:"cycles" msgpack:"c"`
	Data   hexutil.Bytes `json:"data" msgpack:"d"`
}

type TxnTrace struct {
	Hash  common.Hash `json:"hash" msgpack:"h"`
	Steps []Step      `json:"steps" msgpack:"s"`
}

type BlockTrace struct {
	Txns []TxnTrace `json:"txn_info" msgpack:"t"`
}

type BlockMetadata struct {
	Number      *uint256.Int   `json:"block_number" msgpack:"n"`
	Timestamp   uint64         `json:"block_timestamp" msgpack:"t"`
	Beneficiary common.Address `json:"block_beneficiary" msgpack:"b"`
	GasLimit    uint64         `json:"block_gaslimit" msgpack:"gl"`
	GasUsed     uint64         `json:"block_gas_used" msgpack:"gu"`
	BaseFee     *uint256.Int   `json:"block_base_fee,omitempty" msgpack:"bf"`
	ChainID     uint64         `json:"chain_id" msgpack:"c"`
}

func (m *BlockMetadata) BlockNumber() (uint64, error) {
	if m.Number == nil {
		return 0, nil
	}
	if !m.Number.IsUint64() {
		return 0, ErrBlockNumberOverflow
	}

	return m.Number.Uint64(), nil
}

type BlockHashes struct {
	PrevHashes []common.Hash `json:"prev_hashes" msgpack:"p"`
	CurHash    common.Hash   `json:"cur_hash" msgpack:"c"`
}

type OtherBlockData struct {
	Meta                BlockMetadata `json:"b_data" msgpack:"m"`
	Hashes              BlockHashes   `json:"b_hashes" msgpack:"h"`
	CheckpointStateRoot common.Hash   `json:"checkpoint_state_trie_root" msgpack:"cp"`
	PrevStateRoot       common.Hash   `json:"prev_state_root" msgpack:"ps"`
}

// TxnProofInput is everything needed to prove one batch of transactions
// in isolation
type TxnProofInput struct {
	TxnIndex            int           `json:"txn_index" msgpack:"i"`
	TxnHashes           []common.Hash `json:"txn_hashes" msgpack:"th"`
	Steps               []Step        `json:"steps" msgpack:"s"`
	Start               Registers     `json:"start" msgpack:"st"`
	Meta                BlockMetadata `json:"meta" msgpack:"m"`
	Hashes              BlockHashes   `json:"hashes" msgpack:"h"`
	CheckpointStateRoot common.Hash   `json:"checkpoint_state_root" msgpack:"cp"`
}

// TxnEnd is the exclusive upper bound of the transactions in the batch
func (t *TxnProofInput) TxnEnd() int {
	return t.TxnIndex + len(t.TxnHashes)
}
