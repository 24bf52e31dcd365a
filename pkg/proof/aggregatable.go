package proof

import "github.com/pkg/errors"

type SegmentKind uint8

const (
	SegmentLeafKind SegmentKind = iota + 1
	SegmentAggKind
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentLeafKind:
		return "segment"
	case SegmentAggKind:
		return "segment_agg"
	default:
		return "unknown"
	}
}

// SegmentAggregatable is either a single segment proof or an aggregate over
// a contiguous run of segments
type SegmentAggregatable struct {
	Kind SegmentKind      `msgpack:"k"`
	Leaf *SegmentProof    `msgpack:"l,omitempty"`
	Agg  *SegmentAggProof `msgpack:"a,omitempty"`
}

func SegmentLeaf(p *SegmentProof) SegmentAggregatable {
	return SegmentAggregatable{Kind: SegmentLeafKind, Leaf: p}
}

func SegmentAgg(p *SegmentAggProof) SegmentAggregatable {
	return SegmentAggregatable{Kind: SegmentAggKind, Agg: p}
}

func (s SegmentAggregatable) PublicValues() (PublicValues, error) {
	switch s.Kind {
	case SegmentLeafKind:
		if s.Leaf != nil {
			return s.Leaf.PV, nil
		}
	case SegmentAggKind:
		if s.Agg != nil {
			return s.Agg.PV, nil
		}
	}

	return PublicValues{}, errors.Wrapf(ErrShape, "malformed %s", s.Kind)
}

func (s SegmentAggregatable) Intern() (Intern, error) {
	switch s.Kind {
	case SegmentLeafKind:
		if s.Leaf != nil {
			return s.Leaf.Intern, nil
		}
	case SegmentAggKind:
		if s.Agg != nil {
			return s.Agg.Intern, nil
		}
	}

	return nil, errors.Wrapf(ErrShape, "malformed %s", s.Kind)
}

func (s SegmentAggregatable) AsAgg() (*SegmentAggProof, error) {
	if s.Kind != SegmentAggKind || s.Agg == nil {
		return nil, errors.Wrapf(ErrShape, "expected segment_agg, got %s", s.Kind)
	}

	return s.Agg, nil
}

type TxnKind uint8

const (
	TxnLeafKind TxnKind = iota + 1
	TxnAggKind
)

func (k TxnKind) String() string {
	switch k {
	case TxnLeafKind:
		return "txn"
	case TxnAggKind:
		return "txn_agg"
	default:
		return "unknown"
	}
}

// TxnAggregatable is either the proof of a single transaction batch or an
// aggregate over a prefix of the block's transactions
type TxnAggregatable struct {
	Kind TxnKind          `msgpack:"k"`
	Leaf *SegmentAggProof `msgpack:"l,omitempty"`
	Agg  *TxnAggProof     `msgpack:"a,omitempty"`
}

func TxnLeaf(p *SegmentAggProof) TxnAggregatable {
	return TxnAggregatable{Kind: TxnLeafKind, Leaf: p}
}

func TxnAgg(p *TxnAggProof) TxnAggregatable {
	return TxnAggregatable{Kind: TxnAggKind, Agg: p}
}

func (t TxnAggregatable) PublicValues() (PublicValues, error) {
	switch t.Kind {
	case TxnLeafKind:
		if t.Leaf != nil {
			return t.Leaf.PV, nil
		}
	case TxnAggKind:
		if t.Agg != nil {
			return t.Agg.PV, nil
		}
	}

	return PublicValues{}, errors.Wrapf(ErrShape, "malformed %s", t.Kind)
}

func (t TxnAggregatable) AsAgg() (*TxnAggProof, error) {
	if t.Kind != TxnAggKind || t.Agg == nil {
		return nil, errors.Wrapf(ErrShape, "expected txn_agg, got %s", t.Kind)
	}

	return t.Agg, nil
}

func (t TxnAggregatable) AsLeaf() (*SegmentAggProof, error) {
	if t.Kind != TxnLeafKind || t.Leaf == nil {
		return nil, errors.Wrapf(ErrShape, "expected txn, got %s", t.Kind)
	}

	return t.Leaf, nil
}
