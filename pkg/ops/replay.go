package ops

import (
	"context"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/tcfw/chainprover/pkg/proof"
	"github.com/tcfw/chainprover/pkg/runtime"
)

var (
	ErrNotReplayable = errors.New("saved inputs cannot be replayed")
)

// ReadDumpInfo loads the description saved next to a failed operation's inputs
func ReadDumpInfo(path string) (*DumpInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading description")
	}

	info := &DumpInfo{}
	if err := yaml.Unmarshal(b, info); err != nil {
		return nil, errors.Wrap(err, "decoding description")
	}

	return info, nil
}

// Replay re-runs a failed operation from its saved description through rt.
// Only operations whose full inputs were saved can be replayed.
func Replay(ctx context.Context, rt runtime.Runtime, descPath string) (string, error) {
	info, err := ReadDumpInfo(descPath)
	if err != nil {
		return "", err
	}

	payload := filepath.Join(filepath.Dir(descPath), info.Payload)

	var t *runtime.Task

	switch info.Op {
	case SegmentProofOp, SegmentSimulationOp:
		in := SegmentInput{}
		if err := ReadDump(payload, &in); err != nil {
			return info.Op, errors.Wrap(err, "reading payload")
		}

		var params interface{} = &SegmentProof{}
		if info.Op == SegmentSimulationOp {
			params = &SegmentSimulation{}
		}

		t, err = runtime.NewTask(info.Op, params, in)
	case SegmentAggProofOp, SegmentSelfAggProofOp:
		in := runtime.Pair[proof.SegmentAggregatable]{}
		if err := ReadDump(payload, &in); err != nil {
			return info.Op, errors.Wrap(err, "reading payload")
		}

		if info.Op == SegmentSelfAggProofOp {
			t, err = runtime.NewTask(info.Op, &SegmentSelfAggProof{}, in.A)
		} else {
			t, err = runtime.NewTask(info.Op, &SegmentAggProof{}, &in)
		}
	default:
		return info.Op, errors.Wrap(ErrNotReplayable, info.Op)
	}

	if err != nil {
		return info.Op, err
	}

	if _, err := rt.Run(ctx, t); err != nil {
		return info.Op, err
	}

	return info.Op, nil
}
