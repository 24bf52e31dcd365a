package proofio

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tcfw/chainprover/pkg/proof"
)

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	p := &proof.BlockProof{Height: 42, Intern: proof.Intern{9, 8, 7}, PV: proof.PublicValues{BlockNumber: 42, TxnEnd: 3}}

	path, err := Write(dir, nil, p)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, filepath.Join(dir, "b42.zkproof"), path)

	got, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, p, got)
}

func TestWriteStdout(t *testing.T) {
	var buf bytes.Buffer

	path, err := Write("", &buf, &proof.BlockProof{Height: 1})
	assert.NoError(t, err)
	assert.Empty(t, path)
	assert.Contains(t, buf.String(), `"b_height":1`)
}
