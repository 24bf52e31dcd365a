package proofio

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/tcfw/chainprover/pkg/proof"
)

// FileName is the name a block's proof is written under
func FileName(height uint64) string {
	return fmt.Sprintf("b%d.zkproof", height)
}

// Write writes p as JSON to dir, or to w when dir is empty
func Write(dir string, w io.Writer, p *proof.BlockProof) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encoding proof")
	}

	if dir == "" {
		_, err := w.Write(append(b, '\n'))
		return "", err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "creating output dir")
	}

	path := filepath.Join(dir, FileName(p.Height))
	if err := os.WriteFile(path, b, 0644); err != nil {
		return "", errors.Wrap(err, "writing proof")
	}

	return path, nil
}

// Read loads a proof previously written by Write
func Read(path string) (*proof.BlockProof, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading proof file")
	}

	p := &proof.BlockProof{}
	if err := json.Unmarshal(b, p); err != nil {
		return nil, errors.Wrap(err, "decoding proof file")
	}

	return p, nil
}
