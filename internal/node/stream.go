package node

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

const maxFrameSize = 256 << 20

var (
	ErrFrameTooLarge = errors.New("frame too large")
)

// streamRW reads and writes length prefixed frames
type streamRW struct {
	rw *bufio.ReadWriter
}

func newStreamRW(s io.ReadWriter) *streamRW {
	return &streamRW{
		rw: bufio.NewReadWriter(bufio.NewReader(s), bufio.NewWriter(s)),
	}
}

func (c *streamRW) Write(b []byte) error {
	if len(b) > maxFrameSize {
		return ErrFrameTooLarge
	}

	var l [4]byte
	binary.LittleEndian.PutUint32(l[:], uint32(len(b)))

	if _, err := c.rw.Write(l[:]); err != nil {
		return errors.Wrap(err, "transmitting len")
	}

	if _, err := c.rw.Write(b); err != nil {
		return errors.Wrap(err, "transmitting data")
	}

	return c.rw.Flush()
}

func (c *streamRW) Read() ([]byte, error) {
	var l [4]byte
	if _, err := io.ReadFull(c.rw, l[:]); err != nil {
		return nil, err
	}

	n := binary.LittleEndian.Uint32(l[:])
	if n > maxFrameSize {
		return nil, ErrFrameTooLarge
	}

	b := make([]byte, n)
	if _, err := io.ReadFull(c.rw, b); err != nil {
		return nil, errors.Wrap(err, "reading frame")
	}

	return b, nil
}
