package segment

import (
	"io"

	"github.com/pkg/errors"
	"github.com/tcfw/chainprover/pkg/trace"
)

const (
	MinCPULenLog = 1
	MaxCPULenLog = 32
)

var (
	ErrSegmentation     = errors.New("segmentation failed")
	ErrInvalidCPULenLog = errors.New("invalid max cpu len log")
)

// Data describes one bounded chunk of a transaction's execution
type Data struct {
	Index     int             `json:"index" msgpack:"i"`
	Start     trace.Registers `json:"start" msgpack:"s"`
	End       trace.Registers `json:"end" msgpack:"e"`
	StepStart int             `json:"step_start" msgpack:"ss"`
	StepEnd   int             `json:"step_end" msgpack:"se"`
	Final     bool            `json:"final" msgpack:"f"`
	Dummy     bool            `json:"dummy" msgpack:"d"`
}

// Source lazily splits a transaction into segments. Only the current
// checkpoint is held between calls.
type Source struct {
	input  *trace.TxnProofInput
	maxLen uint64

	regs  trace.Registers
	step  int
	index int
	done  bool
}

func NewSource(input *trace.TxnProofInput, maxCPULenLog int) (*Source, error) {
	if maxCPULenLog < MinCPULenLog || maxCPULenLog > MaxCPULenLog {
		return nil, errors.Wrapf(ErrInvalidCPULenLog, "%d", maxCPULenLog)
	}

	return &Source{
		input:  input,
		maxLen: uint64(1) << maxCPULenLog,
		regs:   input.Start,
	}, nil
}

// Next returns the next segment or io.EOF once the transaction is exhausted
func (s *Source) Next() (*Data, error) {
	if s.done {
		return nil, io.EOF
	}

	steps := s.input.Steps

	if len(steps) == 0 {
		s.done = true
		return &Data{
			Start: s.regs,
			End:   s.regs,
			Final: true,
			Dummy: true,
		}, nil
	}

	d := &Data{
		Index:     s.index,
		Start:     s.regs,
		StepStart: s.step,
	}

	var used uint64
	for s.step < len(steps) {
		st := steps[s.step]
		if st.Cycles == 0 {
			s.done = true
			return nil, errors.Wrapf(ErrSegmentation, "txn %d step %d has no cycles", s.input.TxnIndex, s.step)
		}
		if uint64(st.Cycles) > s.maxLen {
			s.done = true
			return nil, errors.Wrapf(ErrSegmentation, "txn %d step %d needs %d cycles, segment limit is %d", s.input.TxnIndex, s.step, st.Cycles, s.maxLen)
		}
		if used+uint64(st.Cycles) > s.maxLen {
			break
		}

		next, err := s.regs.Apply(st)
		if err != nil {
			s.done = true
			return nil, errors.Wrap(ErrSegmentation, err.Error())
		}

		s.regs = next
		used += uint64(st.Cycles)
		s.step++
	}

	d.End = s.regs
	d.StepEnd = s.step
	d.Final = s.step == len(steps)
	s.done = d.Final
	s.index++

	return d, nil
}

// All drains a fresh source
func All(input *trace.TxnProofInput, maxCPULenLog int) ([]*Data, error) {
	src, err := NewSource(input, maxCPULenLog)
	if err != nil {
		return nil, err
	}

	segs := []*Data{}
	for {
		d, err := src.Next()
		if err == io.EOF {
			return segs, nil
		} else if err != nil {
			return nil, err
		}
		segs = append(segs, d)
	}
}

// Execute replays a segment from its start registers
func Execute(input *trace.TxnProofInput, d *Data) (trace.Registers, error) {
	if d.StepStart < 0 || d.StepEnd > len(input.Steps) || d.StepStart > d.StepEnd {
		return trace.Registers{}, errors.Wrapf(ErrSegmentation, "segment %d step range [%d,%d) out of bounds", d.Index, d.StepStart, d.StepEnd)
	}

	regs := d.Start
	for _, st := range input.Steps[d.StepStart:d.StepEnd] {
		next, err := regs.Apply(st)
		if err != nil {
			return regs, errors.Wrapf(err, "replaying segment %d", d.Index)
		}
		regs = next
	}

	return regs, nil
}
