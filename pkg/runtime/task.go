package runtime

import (
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Task is a self contained unit of work: the operation name, its parameters
// and its input, all msgpack encoded
type Task struct {
	ID     string `msgpack:"id"`
	Op     string `msgpack:"op"`
	Params []byte `msgpack:"p"`
	Input  []byte `msgpack:"i"`
}

type Result struct {
	ID     string     `msgpack:"id"`
	Output []byte     `msgpack:"o"`
	Err    *TaskError `msgpack:"e,omitempty"`
}

func NewTask(op string, params interface{}, input interface{}) (*Task, error) {
	p, err := msgpack.Marshal(params)
	if err != nil {
		return nil, errors.Wrap(err, "encoding params")
	}

	in, err := msgpack.Marshal(input)
	if err != nil {
		return nil, errors.Wrap(err, "encoding input")
	}

	t := &Task{Op: op, Params: p, Input: in}

	id, err := taskID(t)
	if err != nil {
		return nil, err
	}
	t.ID = id

	return t, nil
}

func taskID(t *Task) (string, error) {
	d, err := msgpack.Marshal(t)
	if err != nil {
		return "", errors.Wrap(err, "encoding task")
	}

	h, err := multihash.Sum(d, multihash.SHA2_256, -1)
	if err != nil {
		return "", errors.Wrap(err, "hashing task")
	}

	return cid.NewCidV1(cid.Raw, h).String(), nil
}

func (t *Task) Marshal() ([]byte, error) {
	b, err := msgpack.Marshal(t)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling task")
	}

	return b, nil
}

func (t *Task) Unmarshal(b []byte) error {
	return msgpack.Unmarshal(b, t)
}
