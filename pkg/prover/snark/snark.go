// Package snark implements the proving capability with Groth16 proofs over
// BN254. Every proof is a transition between digests of its public values;
// children are verified natively before they are combined.
package snark

import (
	"bytes"
	"context"
	"io"
	"math/big"
	"os"
	"path/filepath"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	gnarklogger "github.com/consensys/gnark/logger"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/prover"
	"github.com/tcfw/chainprover/pkg/segment"
	"github.com/tcfw/chainprover/pkg/trace"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/crypto/sha3"
)

const (
	curve = ecc.BN254

	ccsFile = "transition.r1cs"
	pkFile  = "transition.pk"
	vkFile  = "transition.vk"
)

var (
	_ prover.Capability = (*Prover)(nil)
)

type Persistence string

const (
	PersistenceNone Persistence = "none"
	PersistenceDisk Persistence = "disk"
)

type Option func(*Prover) error

func WithPersistence(p Persistence, dir string) Option {
	return func(pr *Prover) error {
		switch p {
		case PersistenceNone, PersistenceDisk:
		default:
			return errors.Errorf("unknown persistence %q", p)
		}

		pr.persistence = p
		pr.dir = dir
		return nil
	}
}

func WithLogger(l *logrus.Logger) Option {
	return func(pr *Prover) error {
		pr.logger = l
		return nil
	}
}

type Prover struct {
	persistence Persistence
	dir         string
	logger      *logrus.Logger

	ccs constraint.ConstraintSystem
	pk  groth16.ProvingKey
	vk  groth16.VerifyingKey
}

type envelope struct {
	Proof      []byte `msgpack:"p"`
	Commitment []byte `msgpack:"c"`
}

func New(opts ...Option) (*Prover, error) {
	p := &Prover{
		persistence: PersistenceNone,
		logger:      logrus.StandardLogger(),
	}

	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}

	gnarklogger.Disable()

	if p.persistence == PersistenceDisk {
		loaded, err := p.load()
		if err != nil {
			return nil, errors.Wrap(err, "loading circuit keys")
		}
		if loaded {
			p.logger.WithField("dir", p.dir).Debug("loaded circuit keys")
			return p, nil
		}
	}

	if err := p.setup(); err != nil {
		return nil, err
	}

	if p.persistence == PersistenceDisk {
		if err := p.save(); err != nil {
			return nil, errors.Wrap(err, "persisting circuit keys")
		}
	}

	return p, nil
}

func (p *Prover) setup() error {
	p.logger.Debug("compiling transition circuit")

	ccs, err := frontend.Compile(curve.ScalarField(), r1cs.NewBuilder, &transitionCircuit{})
	if err != nil {
		return errors.Wrap(err, "compiling circuit")
	}

	pk, vk, err := groth16.Setup(ccs)
	if err != nil {
		return errors.Wrap(err, "groth16 setup")
	}

	p.ccs, p.pk, p.vk = ccs, pk, vk

	return nil
}

func (p *Prover) load() (bool, error) {
	if _, err := os.Stat(filepath.Join(p.dir, vkFile)); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	ccs := groth16.NewCS(curve)
	pk := groth16.NewProvingKey(curve)
	vk := groth16.NewVerifyingKey(curve)

	files := map[string]io.ReaderFrom{
		ccsFile: ccs,
		pkFile:  pk,
		vkFile:  vk,
	}

	for name, obj := range files {
		f, err := os.Open(filepath.Join(p.dir, name))
		if err != nil {
			return false, err
		}
		_, err = obj.ReadFrom(f)
		f.Close()
		if err != nil {
			return false, errors.Wrapf(err, "reading %s", name)
		}
	}

	p.ccs, p.pk, p.vk = ccs, pk, vk

	return true, nil
}

func (p *Prover) save() error {
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return err
	}

	files := map[string]io.WriterTo{
		ccsFile: p.ccs,
		pkFile:  p.pk,
		vkFile:  p.vk,
	}

	for name, obj := range files {
		var buf bytes.Buffer
		if _, err := obj.WriteTo(&buf); err != nil {
			return errors.Wrapf(err, "encoding %s", name)
		}
		if err := os.WriteFile(filepath.Join(p.dir, name), buf.Bytes(), 0600); err != nil {
			return err
		}
	}

	return nil
}

func (p *Prover) ProveSegment(ctx context.Context, input *trace.TxnProofInput, seg *segment.Data) (*proof.SegmentProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	end, err := segment.Execute(input, seg)
	if err != nil {
		return nil, err
	}
	if end != seg.End {
		return nil, errors.Wrapf(prover.ErrVerify, "segment %d end registers differ from execution", seg.Index)
	}

	n, err := input.Meta.BlockNumber()
	if err != nil {
		return nil, err
	}

	pv := proof.PublicValues{
		BlockNumber: n,
		TxnStart:    input.TxnIndex,
		TxnEnd:      input.TxnEnd(),
		Start:       seg.Start,
		End:         end,
	}

	intern, err := p.prove(pv, input.Steps[seg.StepStart:seg.StepEnd])
	if err != nil {
		return nil, err
	}

	return &proof.SegmentProof{Intern: intern, PV: pv}, nil
}

func (p *Prover) AggregateSegments(ctx context.Context, lhs, rhs proof.SegmentAggregatable, isDummyTail bool) (*proof.SegmentAggProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lpv, lIntern, err := p.openSegment(lhs)
	if err != nil {
		return nil, errors.Wrap(err, "lhs")
	}
	rpv, rIntern, err := p.openSegment(rhs)
	if err != nil {
		return nil, errors.Wrap(err, "rhs")
	}

	if err := prover.CheckSegmentContinuity(lpv, rpv, isDummyTail); err != nil {
		return nil, err
	}

	pv := prover.CombineSegmentValues(lpv, rpv)
	intern, err := p.prove(pv, lIntern, rIntern)
	if err != nil {
		return nil, err
	}

	return &proof.SegmentAggProof{Intern: intern, PV: pv}, nil
}

func (p *Prover) AggregateTxns(ctx context.Context, prev *proof.TxnAggProof, cur *proof.SegmentAggProof) (*proof.TxnAggProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.verify(cur.PV, cur.Intern); err != nil {
		return nil, errors.Wrap(err, "txn proof")
	}

	if prev == nil {
		intern, err := p.prove(cur.PV, cur.Intern)
		if err != nil {
			return nil, err
		}
		return &proof.TxnAggProof{Intern: intern, PV: cur.PV}, nil
	}

	if err := p.verify(prev.PV, prev.Intern); err != nil {
		return nil, errors.Wrap(err, "txn aggregate")
	}

	if err := prover.CheckTxnContinuity(prev.PV, cur.PV); err != nil {
		return nil, err
	}

	pv := prover.CombineTxnValues(prev.PV, cur.PV)
	intern, err := p.prove(pv, prev.Intern, cur.Intern)
	if err != nil {
		return nil, err
	}

	return &proof.TxnAggProof{Intern: intern, PV: pv}, nil
}

func (p *Prover) ProveBlock(ctx context.Context, prev *proof.BlockProof, agg *proof.TxnAggProof) (*proof.BlockProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := p.verify(agg.PV, agg.Intern); err != nil {
		return nil, errors.Wrap(err, "txn aggregate")
	}

	if err := prover.CheckBlockHeight(prev, agg.PV); err != nil {
		return nil, err
	}

	children := []interface{}{agg.Intern}
	if prev != nil {
		if err := p.verify(prev.PV, prev.Intern); err != nil {
			return nil, errors.Wrap(err, "previous block proof")
		}
		children = append(children, prev.Intern)
	}

	intern, err := p.prove(agg.PV, children...)
	if err != nil {
		return nil, err
	}

	return &proof.BlockProof{Height: agg.PV.BlockNumber, Intern: intern, PV: agg.PV}, nil
}

func (p *Prover) Dummy() proof.Intern {
	return proof.Intern{}
}

func (p *Prover) openSegment(s proof.SegmentAggregatable) (proof.PublicValues, proof.Intern, error) {
	pv, err := s.PublicValues()
	if err != nil {
		return pv, nil, err
	}
	intern, err := s.Intern()
	if err != nil {
		return pv, nil, err
	}

	return pv, intern, p.verify(pv, intern)
}

func (p *Prover) prove(pv proof.PublicValues, children ...interface{}) (proof.Intern, error) {
	start, end, err := publicInputs(pv)
	if err != nil {
		return nil, err
	}

	lb, err := msgpack.Marshal(children)
	if err != nil {
		return nil, errors.Wrap(err, "encoding children")
	}
	ld := sha3.Sum256(lb)
	link := toField(ld[:])

	c, err := commit(start, end, link)
	if err != nil {
		return nil, err
	}

	w, err := frontend.NewWitness(&transitionCircuit{Start: start, End: end, Commitment: c, Link: link}, curve.ScalarField())
	if err != nil {
		return nil, errors.Wrap(err, "building witness")
	}

	pr, err := groth16.Prove(p.ccs, p.pk, w)
	if err != nil {
		return nil, errors.Wrap(err, "proving transition")
	}

	var buf bytes.Buffer
	if _, err := pr.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(err, "encoding proof")
	}

	b, err := msgpack.Marshal(&envelope{Proof: buf.Bytes(), Commitment: c.Bytes()})
	if err != nil {
		return nil, errors.Wrap(err, "encoding envelope")
	}

	return proof.Intern(b), nil
}

func (p *Prover) verify(pv proof.PublicValues, intern proof.Intern) error {
	env := &envelope{}
	if err := msgpack.Unmarshal(intern, env); err != nil {
		return errors.Wrap(prover.ErrVerify, err.Error())
	}

	start, end, err := publicInputs(pv)
	if err != nil {
		return err
	}

	pr := groth16.NewProof(curve)
	if _, err := pr.ReadFrom(bytes.NewReader(env.Proof)); err != nil {
		return errors.Wrap(prover.ErrVerify, err.Error())
	}

	pub, err := frontend.NewWitness(&transitionCircuit{
		Start:      start,
		End:        end,
		Commitment: new(big.Int).SetBytes(env.Commitment),
	}, curve.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return errors.Wrap(err, "building public witness")
	}

	if err := groth16.Verify(pr, p.vk, pub); err != nil {
		return errors.Wrap(prover.ErrVerify, err.Error())
	}

	return nil
}

// publicInputs maps public values onto the circuit's start and end digests.
// The end digest binds every public value.
func publicInputs(pv proof.PublicValues) (*big.Int, *big.Int, error) {
	sb, err := msgpack.Marshal(pv.Start)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encoding start registers")
	}
	eb, err := msgpack.Marshal(pv)
	if err != nil {
		return nil, nil, errors.Wrap(err, "encoding public values")
	}

	s := sha3.Sum256(sb)
	e := sha3.Sum256(eb)

	return toField(s[:]), toField(e[:]), nil
}
