package cli

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// BlockNumbers is a single block or an inclusive range of blocks
type BlockNumbers struct {
	Start uint64
	End   uint64
}

func (b BlockNumbers) Len() uint64 {
	return b.End - b.Start + 1
}

// ParseBlockNumbers accepts "N" or "A..=B"
func ParseBlockNumbers(s string) (BlockNumbers, error) {
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return BlockNumbers{Start: v, End: v}, nil
	}

	parts := strings.Split(s, "..=")
	if len(parts) != 2 {
		return BlockNumbers{}, errors.Errorf("expected a single value or a range, but instead got %q", s)
	}

	start, err := strconv.ParseUint(parts[0], 10, 64)
	if err != nil {
		return BlockNumbers{}, errors.Wrapf(err, "parsing range start %q", parts[0])
	}

	end, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return BlockNumbers{}, errors.Wrapf(err, "parsing range end %q", parts[1])
	}

	if end < start {
		return BlockNumbers{}, errors.Errorf("range %q ends before it starts", s)
	}

	return BlockNumbers{Start: start, End: end}, nil
}
